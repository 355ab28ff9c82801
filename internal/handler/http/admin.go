package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/AuthGo/pkg/middleware"
	"github.com/utafrali/AuthGo/internal/authz"
	"github.com/utafrali/AuthGo/internal/domain"
	"github.com/utafrali/AuthGo/internal/service"
)

// AdminHandler handles HTTP requests for account administration endpoints.
type AdminHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, logger: logger}
}

// requireAdmin checks the caller's role from the request context. The handlers
// enforce it themselves so they remain safe even if mounted without the
// role-gating middleware.
func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if err := authz.Authorize(middleware.RoleFromContext(r.Context()), domain.RoleAdmin); err != nil {
		writeAppError(w, r, err, h.logger)
		return false
	}
	return true
}

// GetUser handles GET /api/v1/admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "user id is required"},
		})
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: user})
}

// DeactivateUser handles POST /api/v1/admin/users/{id}/deactivate
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "user id is required"},
		})
		return
	}

	user, err := h.service.DeactivateUser(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: user})
}

// ActivateUser handles POST /api/v1/admin/users/{id}/activate
func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "user id is required"},
		})
		return
	}

	user, err := h.service.ActivateUser(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: user})
}
