package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/AuthGo/pkg/middleware"
	"github.com/utafrali/AuthGo/internal/service"
)

// UserHandler handles HTTP requests for the authenticated user's own account.
type UserHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// Me handles GET /api/v1/users/me
//
// The account is re-read from the store rather than echoed back from token
// claims, so a deactivation after issuance is reflected immediately.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: user})
}
