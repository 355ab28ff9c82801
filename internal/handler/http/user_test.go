package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/AuthGo/pkg/errors"
	"github.com/utafrali/AuthGo/pkg/middleware"
	"github.com/utafrali/AuthGo/internal/domain"
)

// setupUserRouter mirrors the production /users routes with a fake validator.
func setupUserRouter(handler *UserHandler, userID string) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(middleware.Auth(fakeTokenValidator(userID, domain.RoleUser)))
		r.Get("/me", handler.Me)
	})
	return r
}

// setupUserRouterNoAuth omits the auth middleware so unauthenticated requests
// can be tested.
func setupUserRouterNoAuth(handler *UserHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Get("/me", handler.Me)
	})
	return r
}

func TestMe_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	refreshRepo := new(mockRefreshTokenRepo)
	svc := handlerTestService(t, userRepo, refreshRepo)
	router := setupUserRouter(NewUserHandler(svc, handlerTestLogger()), testUserID)

	userRepo.On("GetByID", mock.Anything, testUserID).Return(sampleAccount(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	userRepo.AssertExpectations(t)
}

func TestMe_Unauthorized(t *testing.T) {
	userRepo := new(mockUserRepo)
	refreshRepo := new(mockRefreshTokenRepo)
	svc := handlerTestService(t, userRepo, refreshRepo)
	router := setupUserRouterNoAuth(NewUserHandler(svc, handlerTestLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

func TestMe_AccountDeactivatedAfterIssuance(t *testing.T) {
	userRepo := new(mockUserRepo)
	refreshRepo := new(mockRefreshTokenRepo)
	svc := handlerTestService(t, userRepo, refreshRepo)
	router := setupUserRouter(NewUserHandler(svc, handlerTestLogger()), testUserID)

	inactive := sampleAccount(t)
	inactive.IsActive = false
	userRepo.On("GetByID", mock.Anything, testUserID).Return(inactive, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ACCOUNT_INACTIVE", resp.Error.Code)
}

func TestMe_AccountVanished(t *testing.T) {
	userRepo := new(mockUserRepo)
	refreshRepo := new(mockRefreshTokenRepo)
	svc := handlerTestService(t, userRepo, refreshRepo)
	router := setupUserRouter(NewUserHandler(svc, handlerTestLogger()), testUserID)

	userRepo.On("GetByID", mock.Anything, testUserID).Return(nil, apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_ACCESS_TOKEN", resp.Error.Code)
}

func TestMe_InternalError(t *testing.T) {
	userRepo := new(mockUserRepo)
	refreshRepo := new(mockRefreshTokenRepo)
	svc := handlerTestService(t, userRepo, refreshRepo)
	router := setupUserRouter(NewUserHandler(svc, handlerTestLogger()), testUserID)

	userRepo.On("GetByID", mock.Anything, testUserID).Return(nil, assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
