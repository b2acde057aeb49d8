package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/models"
)

const (
	defaultAccessTokenTTL  = 30 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 15 * 24 * time.Hour
)

// Claims as they are encoded into the token payload
type tokenClaims struct {
	jwt.RegisteredClaims
	Type   models.TokenType `json:"type"`
	UserID int64            `json:"user_id"`
}

// Answers whether the token with jti was revoked before its natural expiry
type revocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used. Only HMAC algorithms are accepted
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock. time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	// Secret key to sign tokens
	key []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time

	revocation revocationChecker
}

func New(cfg Config, revocation revocationChecker) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
		revocation: revocation,
	}, nil
}

func (m *TokenManager) ttl(tokenType models.TokenType) (time.Duration, error) {
	switch tokenType {
	case models.TokenTypeAccess:
		return m.accessTTL, nil
	case models.TokenTypeRefresh:
		return m.refreshTTL, nil
	default:
		return 0, fmt.Errorf("unknown token type %q", tokenType)
	}
}

// Issue signed token of given type for the user
func (m *TokenManager) Issue(userID int64, tokenType models.TokenType) (models.IssuedToken, error) {
	var issued models.IssuedToken

	ttl, err := m.ttl(tokenType)
	if err != nil {
		return issued, err
	}

	now := m.now().UTC().Truncate(time.Second)
	claims := models.TokenClaims{
		ID:        uuid.NewString(),
		Type:      tokenType,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	token := jwt.NewWithClaims(
		m.alg,
		tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        claims.ID,
				IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
				ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			},
			Type:   claims.Type,
			UserID: claims.UserID,
		},
	)
	value, err := token.SignedString(m.key)
	if err != nil {
		return issued, fmt.Errorf("error while signing %s token. Err: %w", tokenType, err)
	}

	return models.IssuedToken{Value: value, Claims: claims}, nil
}

// Issue access and refresh tokens for the user
func (m *TokenManager) IssuePair(userID int64) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := m.Issue(userID, models.TokenTypeAccess)
	if err != nil {
		return pair, err
	}

	refresh, err := m.Issue(userID, models.TokenTypeRefresh)
	if err != nil {
		return pair, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Verify token and return its claims
//
// Checks go in order: signature, expiry, type, revocation.
// Local checks fail fast before the revocation store round-trip.
func (m *TokenManager) Verify(ctx context.Context, value string, expected models.TokenType) (models.TokenClaims, error) {
	var claims models.TokenClaims

	decoded, err := m.decode(value)
	if err != nil {
		return claims, err
	}

	if decoded.ExpiresAt == nil || m.now().After(decoded.ExpiresAt.Time) {
		return claims, apperrors.ErrTokenExpired
	}

	if decoded.Type != expected {
		return claims, fmt.Errorf("%w: expected %q, got %q", apperrors.ErrTokenWrongType, expected, decoded.Type)
	}

	revoked, err := m.revocation.IsRevoked(ctx, decoded.ID)
	if err != nil {
		return claims, err
	}
	if revoked {
		return claims, apperrors.ErrTokenRevoked
	}

	claims = models.TokenClaims{
		ID:        decoded.ID,
		Type:      decoded.Type,
		UserID:    decoded.UserID,
		ExpiresAt: decoded.ExpiresAt.UTC(),
	}
	if decoded.IssuedAt != nil {
		claims.IssuedAt = decoded.IssuedAt.UTC()
	}

	return claims, nil
}

// Check signature and structure only
// Claims validation is disabled: expiry and type are checked by Verify itself
func (m *TokenManager) decode(value string) (*tokenClaims, error) {
	claims := &tokenClaims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenDecode, err)
	}

	return claims, nil
}
