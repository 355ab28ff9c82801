package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/AuthGo/pkg/errors"
	"github.com/utafrali/AuthGo/internal/domain"
	"github.com/utafrali/AuthGo/internal/event"
	"github.com/utafrali/AuthGo/internal/password"
	"github.com/utafrali/AuthGo/internal/repository"
	"github.com/utafrali/AuthGo/internal/token"
)

// AuthService implements the credential and token lifecycle: registration,
// login, refresh token rotation, revocation, and account administration.
type AuthService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	tokens           *token.Manager
	hasher           *password.Hasher
	producer         *event.Producer
	logger           *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	tokens *token.Manager,
	hasher *password.Hasher,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		tokens:           tokens,
		hasher:           hasher,
		producer:         producer,
		logger:           logger,
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// --- Credential operations ---

// Register creates a new user account, hashes the password, and returns the
// user with a freshly issued token pair.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.FirstName == "" {
		return nil, nil, apperrors.InvalidInput("first name is required")
	}
	if input.LastName == "" {
		return nil, nil, apperrors.InvalidInput("last name is required")
	}
	if err := password.ValidateStrength(input.Password); err != nil {
		return nil, nil, err
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: hashed,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, nil, err
		}
		return nil, nil, apperrors.Persistence(err)
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Login authenticates a user with email and password. The password is
// verified before the active-status check so a caller probing a deactivated
// account with a wrong password learns nothing about its status.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.InvalidCredentials()
		}
		return nil, nil, apperrors.Persistence(err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, input.Password)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored password hash is malformed",
			slog.String("user_id", user.ID),
		)
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperrors.InvalidCredentials()
	}

	if !user.IsActive {
		return nil, nil, apperrors.AccountInactive()
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Refresh rotates a refresh token: the presented token is verified, revoked,
// and replaced by a new pair. Each stored token can be rotated at most once;
// of two concurrent refreshes only one wins.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	tokenHash := token.Hash(refreshToken)
	stored, err := s.refreshTokenRepo.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidRefreshToken()
		}
		return nil, apperrors.Persistence(err)
	}

	// Revoked and unknown tokens are indistinguishable to the caller.
	if stored.IsRevoked() {
		return nil, apperrors.InvalidRefreshToken()
	}

	if stored.IsExpired(time.Now().UTC()) {
		return nil, apperrors.RefreshTokenExpired()
	}

	// Single-use rotation: the compare-and-set revoke has exactly one winner.
	// Losing the race means another request already consumed this token.
	if err := s.refreshTokenRepo.Revoke(ctx, tokenHash); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidRefreshToken()
		}
		return nil, apperrors.Persistence(err)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidRefreshToken()
		}
		return nil, apperrors.Persistence(err)
	}

	if !user.IsActive {
		return nil, apperrors.AccountInactive()
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens rotated",
		slog.String("user_id", user.ID),
	)

	return tokens, nil
}

// Logout revokes the presented refresh token. Logout is idempotent: revoking
// a token that is unknown, already revoked, or expired succeeds silently.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.InvalidInput("refresh token is required")
	}

	tokenHash := token.Hash(refreshToken)
	if err := s.refreshTokenRepo.Revoke(ctx, tokenHash); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return apperrors.Persistence(err)
	}

	s.logger.InfoContext(ctx, "refresh token revoked")

	return nil
}

// CurrentUser resolves the subject of a validated access token to a live
// account. The user is re-read from the store so a deactivation that happened
// after the token was issued is honored immediately.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidAccessToken()
		}
		return nil, apperrors.Persistence(err)
	}

	if !user.IsActive {
		return nil, apperrors.AccountInactive()
	}

	return user, nil
}

// ChangePassword replaces the caller's password after verifying the current
// one, then revokes every live refresh token so all other sessions must
// re-authenticate.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := password.ValidateStrength(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidAccessToken()
		}
		return apperrors.Persistence(err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.InvalidCredentials()
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = hashed
	if err := s.userRepo.Update(ctx, user); err != nil {
		return apperrors.Persistence(err)
	}

	if err := s.refreshTokenRepo.RevokeByUserID(ctx, user.ID); err != nil {
		return apperrors.Persistence(err)
	}

	// Publish password changed event (non-blocking on failure).
	if err := s.producer.PublishUserPasswordChanged(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// --- Administration operations ---

// GetUser retrieves a user by ID, regardless of active status.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, apperrors.Persistence(err)
	}
	return user, nil
}

// DeactivateUser marks an account inactive and revokes all its live refresh
// tokens. Deactivating an already-inactive account is a no-op.
func (s *AuthService) DeactivateUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, apperrors.Persistence(err)
	}

	if !user.IsActive {
		return user, nil
	}

	user.IsActive = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperrors.Persistence(err)
	}

	if err := s.refreshTokenRepo.RevokeByUserID(ctx, user.ID); err != nil {
		return nil, apperrors.Persistence(err)
	}

	// Publish deactivation event (non-blocking on failure).
	if err := s.producer.PublishUserDeactivated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deactivated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user deactivated",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// ActivateUser re-enables a deactivated account. Previously revoked refresh
// tokens stay revoked; the user must log in again.
func (s *AuthService) ActivateUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, apperrors.Persistence(err)
	}

	if user.IsActive {
		return user, nil
	}

	user.IsActive = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperrors.Persistence(err)
	}

	s.logger.InfoContext(ctx, "user activated",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// PurgeExpiredTokens deletes stored refresh token records whose expiry is in
// the past. It is invoked periodically by the application janitor.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.refreshTokenRepo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, apperrors.Persistence(err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired refresh tokens",
			slog.Int64("count", n),
		)
	}
	return n, nil
}

// --- Helpers ---

// issueTokenPair creates an access/refresh token pair and stores the refresh
// token hash. Issuance is all-or-nothing: if the hash cannot be stored, no
// pair is returned.
func (s *AuthService) issueTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, expiresAt, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.refreshTokenRepo.Create(ctx, user.ID, token.Hash(refreshToken), expiresAt); err != nil {
		return nil, apperrors.Persistence(err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}
