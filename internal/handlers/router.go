package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/blog/internal/handlers/middleware"
	"github.com/nkiryanov/blog/internal/logger"
	"github.com/nkiryanov/blog/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)
	withSuperuser := func(h http.Handler) http.Handler {
		return chain(h, withAuth, middleware.SuperuserMiddleware)
	}

	apiuser := http.NewServeMux()

	apiuser.Handle("POST /register", handleRegister(userService, logger))
	apiuser.Handle("POST /login", handleLogin(authService, logger))
	apiuser.Handle("POST /logout", handleLogout(authService, logger))
	apiuser.Handle("POST /renew-tokens", handleRenewTokens(authService, logger))
	apiuser.Handle("GET /me", withAuth(handleUserMe()))
	apiuser.Handle("PUT /password", withAuth(handleUpdatePassword(userService, logger)))

	apiadmin := http.NewServeMux()
	apiadmin.Handle("GET /users/{id}", withSuperuser(handleAdminGetUser(userService, logger)))
	apiadmin.Handle("PATCH /users/{id}", withSuperuser(handleAdminUpdateUser(userService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))
	root.Handle("/api/admin/", http.StripPrefix("/api/admin", apiadmin))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Login user with username or email
	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	// Has to return apperrors.ErrUserInactive if user suspended
	Login(ctx context.Context, identifier string, password string) (models.User, models.TokenPair, error)

	// Revoke access and refresh tokens of the session
	Logout(ctx context.Context, access string, refresh string) error

	// Exchange refresh token for new pair
	RenewTokens(ctx context.Context, refresh string) (models.TokenPair, error)

	// Get request and return user if it authenticated or error
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)

	// Get tokens from request
	// Have to return apperrors.ErrTokenNotProvided if token missed
	AccessFromRequest(r *http.Request) (string, error)
	RefreshFromRequest(r *http.Request) (string, error)

	// Set or drop refresh token cookie
	SetRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken)
	ClearRefreshCookie(w http.ResponseWriter)
}

type userService interface {
	// Has to return apperrors.ErrUserAlreadyExists if username or email taken
	CreateUser(ctx context.Context, username string, email string, password string) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if user not exists
	GetUserByID(ctx context.Context, userID int64) (models.User, error)

	// Has to return apperrors.ErrWrongPassword if old password doesn't match
	UpdatePassword(ctx context.Context, userID int64, oldPassword string, newPassword string) error

	// Has to return apperrors.ErrPermissionDenied if actor changes own flags
	UpdateFlags(ctx context.Context, actorID int64, userID int64, flags models.UserFlags) (models.User, error)
}
