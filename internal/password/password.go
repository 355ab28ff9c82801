package password

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/AuthGo/pkg/errors"
)

// DefaultCost is the bcrypt cost used when none is configured. Tests use a
// lower cost for speed.
const DefaultCost = 12

// MinLength is the minimum accepted password length.
const MinLength = 8

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the given bcrypt cost. Costs outside the
// bcrypt-supported range fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash derives a bcrypt digest from the plaintext password.
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify checks a plaintext password against a stored digest. A mismatch is
// not an error: it returns (false, nil). A digest that cannot be parsed
// returns a malformed-hash error, since that signals stored-data corruption
// rather than a bad credential.
func (h *Hasher) Verify(digest, plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, apperrors.MalformedHash(err)
}

// ValidateStrength checks that a candidate password meets the minimum
// complexity requirements: at least MinLength characters with an uppercase
// letter, a lowercase letter, and a digit.
func ValidateStrength(plaintext string) error {
	if len(plaintext) < MinLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", MinLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range plaintext {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
