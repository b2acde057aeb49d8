package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/models"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "X-Auth-Token"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type tokenManager interface {
	IssuePair(userID int64) (models.TokenPair, error)
	Verify(ctx context.Context, value string, expected models.TokenType) (models.TokenClaims, error)
}

type revocationStore interface {
	Revoke(ctx context.Context, claims models.TokenClaims) error
}

type userService interface {
	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	VerifyCredentials(ctx context.Context, identifier string, password string) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if user not exists
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
}

type Config struct {
	// Header to read access token from and its auth scheme
	// If not set than default is used
	AccessHeaderName string
	AccessAuthScheme string

	// Cookie to keep refresh token in
	// If not set than default is used
	RefreshCookieName string

	// Drop Secure attribute of refresh cookie
	// Only for local development over plain http
	CookieInsecure bool

	// Clock. time.Now if not set
	Now func() time.Time
}

// Session lifecycle: login, logout and tokens renewal
type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
	cookieSecure      bool
	now               func() time.Time

	tokens     tokenManager
	revocation revocationStore
	users      userService
}

func NewService(cfg Config, tokens tokenManager, revocation revocationStore, users userService) (*AuthService, error) {
	if tokens == nil || revocation == nil || users == nil {
		return nil, errors.New("token manager, revocation store and user service must not be nil")
	}

	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		cookieSecure:      !cfg.CookieInsecure,
		now:               cfg.Now,
		tokens:            tokens,
		revocation:        revocation,
		users:             users,
	}, nil
}

// Login user by username or email and issue new token pair
func (s *AuthService) Login(ctx context.Context, identifier string, password string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.users.VerifyCredentials(ctx, identifier, password)
	if err != nil {
		return user, pair, err
	}

	if !user.IsActive {
		return user, pair, apperrors.ErrUserInactive
	}

	pair, err = s.tokens.IssuePair(user.ID)
	if err != nil {
		return user, pair, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	return user, pair, nil
}

// Revoke both tokens of the session
// Both have to be valid, otherwise nothing is revoked
func (s *AuthService) Logout(ctx context.Context, access string, refresh string) error {
	if access == "" || refresh == "" {
		return apperrors.ErrTokenNotProvided
	}

	refreshClaims, err := s.tokens.Verify(ctx, refresh, models.TokenTypeRefresh)
	if err != nil {
		return err
	}

	accessClaims, err := s.tokens.Verify(ctx, access, models.TokenTypeAccess)
	if err != nil {
		return err
	}

	// Refresh first: if the store fails in between only the short lived access token survives
	if err := s.revocation.Revoke(ctx, refreshClaims); err != nil {
		return err
	}

	return s.revocation.Revoke(ctx, accessClaims)
}

// Exchange refresh token for new pair
// Old refresh token revoked only after new pair issued
// Access tokens issued before stay valid until their own expiry
func (s *AuthService) RenewTokens(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	if refresh == "" {
		return pair, apperrors.ErrTokenNotProvided
	}

	claims, err := s.tokens.Verify(ctx, refresh, models.TokenTypeRefresh)
	if err != nil {
		return pair, err
	}

	pair, err = s.tokens.IssuePair(claims.UserID)
	if err != nil {
		return pair, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	if err := s.revocation.Revoke(ctx, claims); err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Check access token and return its user id
func (s *AuthService) RequireValidAccessToken(ctx context.Context, access string) (int64, error) {
	if access == "" {
		return 0, apperrors.ErrTokenNotProvided
	}

	claims, err := s.tokens.Verify(ctx, access, models.TokenTypeAccess)
	if err != nil {
		return 0, err
	}

	return claims.UserID, nil
}

// Authenticate request by access token and return its user
// Deleted user answered with apperrors.ErrUserNotFound, suspended with apperrors.ErrUserInactive
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	var user models.User

	access, err := s.AccessFromRequest(r)
	if err != nil {
		return user, err
	}

	userID, err := s.RequireValidAccessToken(ctx, access)
	if err != nil {
		return user, err
	}

	user, err = s.users.GetUserByID(ctx, userID)
	if err != nil {
		return user, err
	}

	if !user.IsActive {
		return user, apperrors.ErrUserInactive
	}

	return user, nil
}

// Read access token from "Authorization: Bearer <token>" header
// Scheme is case-insensitive
func (s *AuthService) AccessFromRequest(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get(s.accessHeaderName))
	if header == "" {
		return "", apperrors.ErrTokenNotProvided
	}

	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, s.accessAuthScheme) || token == "" {
		return "", fmt.Errorf("%w: header is not in %q format", apperrors.ErrTokenDecode, s.accessAuthScheme+" <token>")
	}

	return token, nil
}

// Read refresh token from cookie
func (s *AuthService) RefreshFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", apperrors.ErrTokenNotProvided
	}

	return cookie.Value, nil
}

// Set refresh token cookie. The cookie lives as long as the token
func (s *AuthService) SetRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken) {
	maxAge := int(refresh.Claims.ExpiresAt.Sub(s.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    refresh.Value,
		Path:     "/",
		Expires:  refresh.Claims.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Ask client to drop refresh token cookie
func (s *AuthService) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
