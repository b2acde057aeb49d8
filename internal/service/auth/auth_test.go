package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/models"
	"github.com/nkiryanov/blog/internal/repository/redis"
	"github.com/nkiryanov/blog/internal/service/auth/revocation"
	"github.com/nkiryanov/blog/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/blog/internal/testutil"
)

// Manually moved clock shared by all components under test
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

// In-memory users with plain text passwords
type usersFake struct {
	users     map[int64]models.User
	passwords map[int64]string
}

func (f *usersFake) add(u models.User, password string) {
	f.users[u.ID] = u
	f.passwords[u.ID] = password
}

func (f *usersFake) VerifyCredentials(_ context.Context, identifier string, password string) (models.User, error) {
	for id, u := range f.users {
		if (u.Username == identifier || u.Email == identifier) && f.passwords[id] == password {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrInvalidCredentials
}

func (f *usersFake) GetUserByID(_ context.Context, userID int64) (models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return u, apperrors.ErrUserNotFound
	}
	return u, nil
}

// Count calls to token manager
type tokensSpy struct {
	*tokenmanager.TokenManager
	issues   int
	verifies int
}

func (s *tokensSpy) IssuePair(userID int64) (models.TokenPair, error) {
	s.issues++
	return s.TokenManager.IssuePair(userID)
}

func (s *tokensSpy) Verify(ctx context.Context, value string, expected models.TokenType) (models.TokenClaims, error) {
	s.verifies++
	return s.TokenManager.Verify(ctx, value, expected)
}

// Count calls to revocation store
// Calls after failAfter ones fail as unavailable store, zero means never fail
type revocationSpy struct {
	*revocation.Store
	revokes   int
	failAfter int
}

func (s *revocationSpy) Revoke(ctx context.Context, claims models.TokenClaims) error {
	s.revokes++
	if s.failAfter > 0 && s.revokes > s.failAfter {
		return fmt.Errorf("%w: connection reset", apperrors.ErrRevocationUnavailable)
	}
	return s.Store.Revoke(ctx, claims)
}

type env struct {
	clock   *clock
	redis   testutil.Redis
	users   *usersFake
	tokens  *tokensSpy
	revoked *revocationSpy
	service *AuthService
}

func newEnv(t *testing.T) env {
	t.Helper()

	c := &clock{now: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
	r := testutil.StartRedis(t)

	store := revocation.New(revocation.Config{Now: c.Now}, &redis.BlacklistRepo{RDB: r.Client})
	manager, err := tokenmanager.New(
		tokenmanager.Config{
			SecretKey:  "test-secret-key",
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 21600 * time.Minute,
			Now:        c.Now,
		},
		store,
	)
	require.NoError(t, err, "token manager should be created without errors")

	users := &usersFake{users: map[int64]models.User{}, passwords: map[int64]string{}}
	users.add(models.User{ID: 1, Username: "alice", Email: "alice@example.com", IsActive: true}, "alice-password")
	users.add(models.User{ID: 2, Username: "bob", Email: "bob@example.com", IsActive: false}, "bob-password")

	tokens := &tokensSpy{TokenManager: manager}
	revoked := &revocationSpy{Store: store}

	s, err := NewService(Config{Now: c.Now}, tokens, revoked, users)
	require.NoError(t, err, "auth service should be created without errors")

	return env{clock: c, redis: r, users: users, tokens: tokens, revoked: revoked, service: s}
}

func Test_Auth(t *testing.T) {
	t.Parallel()

	t.Run("new auth service defaults", func(t *testing.T) {
		e := newEnv(t)

		s, err := NewService(Config{}, e.tokens, e.revoked, e.users)
		require.NoError(t, err)

		require.Equal(t, defaultAccessHeaderName, s.accessHeaderName, "default access header name should be set")
		require.Equal(t, defaultAccessAuthScheme, s.accessAuthScheme, "default access auth")
		require.Equal(t, defaultRefreshCookieName, s.refreshCookieName, "default refresh cookie name should be set")
		require.True(t, s.cookieSecure, "cookie should be secure by default")
		require.NotNil(t, s.now)
	})

	t.Run("new auth service fails without dependencies", func(t *testing.T) {
		_, err := NewService(Config{}, nil, nil, nil)

		require.Error(t, err)
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("by username or email", func(t *testing.T) {
			for _, identifier := range []string{"alice", "alice@example.com"} {
				t.Run(identifier, func(t *testing.T) {
					e := newEnv(t)

					user, pair, err := e.service.Login(t.Context(), identifier, "alice-password")

					require.NoError(t, err)
					assert.Equal(t, int64(1), user.ID)
					assert.Equal(t, int64(1), pair.Access.Claims.UserID)
					assert.Equal(t, int64(1), pair.Refresh.Claims.UserID)
					assert.Equal(t, models.TokenTypeAccess, pair.Access.Claims.Type)
					assert.Equal(t, models.TokenTypeRefresh, pair.Refresh.Claims.Type)
					assert.Zero(t, e.revoked.revokes, "login must not touch revocation store")
					assert.Empty(t, e.redis.Server.Keys())
				})
			}
		})

		t.Run("invalid credentials", func(t *testing.T) {
			tests := []struct {
				name       string
				identifier string
				password   string
			}{
				{"wrong password", "alice", "wrong"},
				{"unknown user", "carol", "alice-password"},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					e := newEnv(t)

					_, _, err := e.service.Login(t.Context(), tt.identifier, tt.password)

					require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
					assert.Zero(t, e.tokens.issues)
				})
			}
		})

		t.Run("inactive user", func(t *testing.T) {
			e := newEnv(t)

			_, _, err := e.service.Login(t.Context(), "bob", "bob-password")

			require.ErrorIs(t, err, apperrors.ErrUserInactive)
			assert.Zero(t, e.tokens.issues, "no tokens for suspended user")
		})
	})

	t.Run("Logout", func(t *testing.T) {
		t.Run("invalidates both tokens", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)

			err = e.service.Logout(t.Context(), pair.Access.Value, pair.Refresh.Value)
			require.NoError(t, err)

			_, err = e.tokens.TokenManager.Verify(t.Context(), pair.Access.Value, models.TokenTypeAccess)
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
			_, err = e.tokens.TokenManager.Verify(t.Context(), pair.Refresh.Value, models.TokenTypeRefresh)
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)

			// Entries live until tokens expiry
			assert.Equal(t, 30*time.Minute, e.redis.Server.TTL("jwt-bl:"+pair.Access.Claims.ID))
			assert.Equal(t, 21600*time.Minute, e.redis.Server.TTL("jwt-bl:"+pair.Refresh.Claims.ID))
		})

		t.Run("second logout fails cleanly", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)
			require.NoError(t, e.service.Logout(t.Context(), pair.Access.Value, pair.Refresh.Value))
			keys := e.redis.Server.Keys()

			err = e.service.Logout(t.Context(), pair.Access.Value, pair.Refresh.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
			assert.True(t, apperrors.IsAuthFailure(err))
			assert.Equal(t, keys, e.redis.Server.Keys(), "store must stay unchanged")
			assert.Equal(t, 2, e.revoked.revokes, "second logout must not revoke anything")
		})

		t.Run("token not provided", func(t *testing.T) {
			tests := []struct {
				name    string
				access  string
				refresh string
			}{
				{"no refresh", "access-token", ""},
				{"no access", "", "refresh-token"},
				{"nothing", "", ""},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					e := newEnv(t)

					err := e.service.Logout(t.Context(), tt.access, tt.refresh)

					require.ErrorIs(t, err, apperrors.ErrTokenNotProvided)
					assert.Zero(t, e.tokens.verifies)
					assert.Zero(t, e.tokens.issues)
					assert.Zero(t, e.revoked.revokes)
				})
			}
		})

		t.Run("invalid access keeps refresh usable", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)

			err = e.service.Logout(t.Context(), "garbage", pair.Refresh.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenDecode)
			assert.Zero(t, e.revoked.revokes, "nothing revoked if any token is invalid")
			_, err = e.tokens.TokenManager.Verify(t.Context(), pair.Refresh.Value, models.TokenTypeRefresh)
			assert.NoError(t, err)
		})

		t.Run("tokens swapped", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)

			err = e.service.Logout(t.Context(), pair.Refresh.Value, pair.Access.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenWrongType)
			assert.Zero(t, e.revoked.revokes)
		})

		t.Run("store down", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)
			e.redis.Server.Close()

			err = e.service.Logout(t.Context(), pair.Access.Value, pair.Refresh.Value)

			require.ErrorIs(t, err, apperrors.ErrRevocationUnavailable)
			assert.False(t, apperrors.IsAuthFailure(err))
		})

		t.Run("store fails after first revoke", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)
			e.revoked.failAfter = 1

			err = e.service.Logout(t.Context(), pair.Access.Value, pair.Refresh.Value)

			require.ErrorIs(t, err, apperrors.ErrRevocationUnavailable)
			assert.Equal(t, 2, e.revoked.revokes)

			// Long lived refresh token goes first and is revoked already
			_, err = e.service.RenewTokens(t.Context(), pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)

			// Access token survives until its own expiry
			userID, err := e.service.RequireValidAccessToken(t.Context(), pair.Access.Value)
			require.NoError(t, err)
			assert.Equal(t, int64(1), userID)

			e.clock.now = e.clock.now.Add(30*time.Minute + time.Second)
			_, err = e.service.RequireValidAccessToken(t.Context(), pair.Access.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenExpired)
		})
	})

	t.Run("RenewTokens", func(t *testing.T) {
		t.Run("rotates refresh token only", func(t *testing.T) {
			e := newEnv(t)
			_, old, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)

			pair, err := e.service.RenewTokens(t.Context(), old.Refresh.Value)
			require.NoError(t, err)

			_, err = e.tokens.TokenManager.Verify(t.Context(), pair.Refresh.Value, models.TokenTypeRefresh)
			require.NoError(t, err, "new refresh token should be valid")
			_, err = e.tokens.TokenManager.Verify(t.Context(), pair.Access.Value, models.TokenTypeAccess)
			require.NoError(t, err, "new access token should be valid")
			_, err = e.tokens.TokenManager.Verify(t.Context(), old.Refresh.Value, models.TokenTypeRefresh)
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked, "old refresh token should be revoked")
			_, err = e.tokens.TokenManager.Verify(t.Context(), old.Access.Value, models.TokenTypeAccess)
			require.NoError(t, err, "old access token is not part of renewal")

			assert.Equal(t, 1, e.revoked.revokes)
		})

		t.Run("revoked refresh can't be reused", func(t *testing.T) {
			e := newEnv(t)
			_, old, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)
			_, err = e.service.RenewTokens(t.Context(), old.Refresh.Value)
			require.NoError(t, err)

			_, err = e.service.RenewTokens(t.Context(), old.Refresh.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
			assert.Equal(t, 2, e.tokens.issues, "login and first renewal only")
		})

		t.Run("access token not accepted", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)

			_, err = e.service.RenewTokens(t.Context(), pair.Access.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenWrongType)
			assert.Zero(t, e.revoked.revokes)
		})

		t.Run("token not provided", func(t *testing.T) {
			e := newEnv(t)

			_, err := e.service.RenewTokens(t.Context(), "")

			require.ErrorIs(t, err, apperrors.ErrTokenNotProvided)
			assert.Zero(t, e.tokens.verifies)
			assert.Zero(t, e.tokens.issues)
			assert.Zero(t, e.revoked.revokes)
		})

		t.Run("store down keeps old refresh", func(t *testing.T) {
			e := newEnv(t)
			_, old, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)
			e.redis.Server.Close()

			pair, err := e.service.RenewTokens(t.Context(), old.Refresh.Value)

			require.ErrorIs(t, err, apperrors.ErrRevocationUnavailable)
			assert.Empty(t, pair.Access.Value, "new pair must not be handed out")
			assert.Zero(t, e.revoked.revokes, "fails on revocation check before revoke")
		})
	})

	t.Run("session scenario", func(t *testing.T) {
		e := newEnv(t)
		start := e.clock.now
		at := func(d time.Duration) { e.clock.now = start.Add(d) }

		_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
		require.NoError(t, err)
		assert.Equal(t, start.Add(30*time.Minute), pair.Access.Claims.ExpiresAt)
		assert.Equal(t, start.Add(21600*time.Minute), pair.Refresh.Claims.ExpiresAt)

		at(10 * time.Minute)
		renewed, err := e.service.RenewTokens(t.Context(), pair.Refresh.Value)
		require.NoError(t, err)
		assert.Equal(t, start.Add(40*time.Minute), renewed.Access.Claims.ExpiresAt)
		assert.Equal(t, start.Add(21610*time.Minute), renewed.Refresh.Claims.ExpiresAt)

		at(10*time.Minute + time.Second)
		_, err = e.tokens.TokenManager.Verify(t.Context(), pair.Refresh.Value, models.TokenTypeRefresh)
		require.ErrorIs(t, err, apperrors.ErrTokenRevoked)

		at(25 * time.Minute)
		userID, err := e.service.RequireValidAccessToken(t.Context(), pair.Access.Value)
		require.NoError(t, err)
		assert.Equal(t, int64(1), userID)

		at(35 * time.Minute)
		_, err = e.service.RequireValidAccessToken(t.Context(), pair.Access.Value)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
		_, err = e.service.RequireValidAccessToken(t.Context(), renewed.Access.Value)
		require.NoError(t, err, "renewed access token lives until its own expiry")
	})

	t.Run("Authenticate", func(t *testing.T) {
		request := func(header string) *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			return r
		}

		t.Run("ok", func(t *testing.T) {
			for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
				t.Run(scheme, func(t *testing.T) {
					e := newEnv(t)
					_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
					require.NoError(t, err)

					user, err := e.service.Authenticate(t.Context(), request(scheme+" "+pair.Access.Value))

					require.NoError(t, err)
					assert.Equal(t, "alice", user.Username)
				})
			}
		})

		t.Run("header problems", func(t *testing.T) {
			tests := []struct {
				name   string
				header string
				err    error
			}{
				{"no header", "", apperrors.ErrTokenNotProvided},
				{"no scheme", "just-token", apperrors.ErrTokenDecode},
				{"other scheme", "Basic dXNlcjpwd2Q=", apperrors.ErrTokenDecode},
				{"no token", "Bearer ", apperrors.ErrTokenDecode},
				{"garbage token", "Bearer garbage", apperrors.ErrTokenDecode},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					e := newEnv(t)

					_, err := e.service.Authenticate(t.Context(), request(tt.header))

					require.ErrorIs(t, err, tt.err)
					assert.True(t, apperrors.IsAuthFailure(err))
				})
			}
		})

		t.Run("refresh token not accepted", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)

			_, err = e.service.Authenticate(t.Context(), request("Bearer "+pair.Refresh.Value))

			require.ErrorIs(t, err, apperrors.ErrTokenWrongType)
		})

		t.Run("deleted user", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)
			delete(e.users.users, 1)

			_, err = e.service.Authenticate(t.Context(), request("Bearer "+pair.Access.Value))

			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})

		t.Run("suspended after login", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)
			alice := e.users.users[1]
			alice.IsActive = false
			e.users.users[1] = alice

			_, err = e.service.Authenticate(t.Context(), request("Bearer "+pair.Access.Value))

			require.ErrorIs(t, err, apperrors.ErrUserInactive)
		})
	})

	t.Run("refresh cookie", func(t *testing.T) {
		t.Run("set", func(t *testing.T) {
			e := newEnv(t)
			_, pair, err := e.service.Login(t.Context(), "alice", "alice-password")
			require.NoError(t, err)
			w := httptest.NewRecorder()

			e.service.SetRefreshCookie(w, pair.Refresh)

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			cookie := cookies[0]
			assert.Equal(t, "X-Auth-Token", cookie.Name)
			assert.Equal(t, pair.Refresh.Value, cookie.Value)
			assert.Equal(t, "/", cookie.Path)
			assert.True(t, cookie.HttpOnly, "refresh cookie should be HttpOnly")
			assert.True(t, cookie.Secure, "refresh cookie should be Secure")
			assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
			assert.Equal(t, int((21600 * time.Minute).Seconds()), cookie.MaxAge)
			assert.True(t, pair.Refresh.Claims.ExpiresAt.Equal(cookie.Expires))
		})

		t.Run("insecure for local development", func(t *testing.T) {
			e := newEnv(t)
			s, err := NewService(Config{CookieInsecure: true, Now: e.clock.Now}, e.tokens, e.revoked, e.users)
			require.NoError(t, err)
			w := httptest.NewRecorder()

			s.SetRefreshCookie(w, models.IssuedToken{Value: "token", Claims: models.TokenClaims{ExpiresAt: e.clock.now.Add(time.Hour)}})

			require.Len(t, w.Result().Cookies(), 1)
			assert.False(t, w.Result().Cookies()[0].Secure)
		})

		t.Run("clear", func(t *testing.T) {
			e := newEnv(t)
			w := httptest.NewRecorder()

			e.service.ClearRefreshCookie(w)

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "X-Auth-Token", cookies[0].Name)
			assert.Empty(t, cookies[0].Value)
			assert.Equal(t, -1, cookies[0].MaxAge)
		})

		t.Run("read", func(t *testing.T) {
			e := newEnv(t)
			r := httptest.NewRequest(http.MethodPost, "/api/user/renew-tokens", nil)
			r.AddCookie(&http.Cookie{Name: "X-Auth-Token", Value: "refresh-value"})

			got, err := e.service.RefreshFromRequest(r)

			require.NoError(t, err)
			assert.Equal(t, "refresh-value", got)
		})

		t.Run("read missing", func(t *testing.T) {
			e := newEnv(t)
			r := httptest.NewRequest(http.MethodPost, "/api/user/renew-tokens", nil)

			_, err := e.service.RefreshFromRequest(r)

			require.ErrorIs(t, err, apperrors.ErrTokenNotProvided)
		})
	})
}
