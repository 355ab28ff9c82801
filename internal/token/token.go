package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/utafrali/AuthGo/pkg/errors"
)

// issuer identifies tokens minted by this service.
const issuer = "auth-service"

// AccessClaims are the JWT claims carried by an access token.
type AccessClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are the JWT claims carried by a refresh token. Refresh tokens
// carry only the subject; email and role are re-read from the store on rotation.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access and refresh tokens. The two token kinds
// are signed with distinct secrets so a refresh token can never be presented
// where an access token is expected, and vice versa.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewManager creates a token manager. Both secrets must be non-empty and must
// differ from each other.
func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("token: access and refresh secrets must be non-empty")
	}
	if subtle.ConstantTimeCompare([]byte(accessSecret), []byte(refreshSecret)) == 1 {
		return nil, fmt.Errorf("token: access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token: token lifetimes must be positive")
	}

	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

// GenerateAccessToken creates a signed access token embedding the user's
// identity and role.
func (m *Manager) GenerateAccessToken(userID, email, role string) (string, error) {
	now := time.Now().UTC()
	claims := &AccessClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// GenerateRefreshToken creates a signed refresh token for the user and returns
// it along with its expiry, which callers persist alongside the token hash.
func (m *Manager) GenerateRefreshToken(userID string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.refreshTTL)
	claims := &RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateAccessToken verifies the signature, expiry, and structure of an
// access token. All failures collapse into the same invalid-access-token
// error so callers cannot distinguish why verification failed.
func (m *Manager) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.accessSecret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, apperrors.InvalidAccessToken()
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return nil, apperrors.InvalidAccessToken()
	}

	return claims, nil
}

// ValidateRefreshToken verifies a refresh token. Expiry is reported as a
// distinct error from all other verification failures: the JWT exp mirrors
// the stored record's expiry, so masking it as a generic invalid-token error
// would hide an expected lifecycle outcome.
func (m *Manager) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.refreshSecret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.RefreshTokenExpired()
		}
		return nil, apperrors.InvalidRefreshToken()
	}

	claims, ok := parsed.Claims.(*RefreshClaims)
	if !ok || !parsed.Valid {
		return nil, apperrors.InvalidRefreshToken()
	}

	return claims, nil
}

// Hash returns the SHA-256 hex digest of a token. Only digests are stored, so
// a leaked database cannot be replayed as live refresh tokens.
func Hash(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
