// Package authz implements the flat role check used to guard operations.
// There is no role hierarchy: an admin is not implicitly a user, and
// membership in the allowed set is the only test.
package authz

import (
	apperrors "github.com/utafrali/AuthGo/pkg/errors"
)

// Authorize checks whether a subject with the given role may perform an
// operation restricted to the allowed roles. An empty allowed set means any
// authenticated subject qualifies. An empty role means the subject is not
// authenticated.
func Authorize(role string, allowed ...string) error {
	if role == "" {
		return apperrors.Unauthorized("not authenticated")
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return apperrors.Forbidden("insufficient permissions")
}
