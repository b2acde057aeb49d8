package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/handlers/render"
	"github.com/nkiryanov/blog/internal/logger"
)

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func handleRegister(userService userService, l logger.Logger) http.Handler {
	type request struct {
		Username        string `json:"username" validate:"required,min=3,max=64,username"`
		Email           string `json:"email" validate:"required,email,max=254"`
		Password        string `json:"password" validate:"required,min=8,max=64,nowhitespace"`
		ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := userService.CreateUser(r.Context(), data.Username, data.Email, data.Password)

		switch {
		case err == nil:
			render.Created(w, userResponse{ID: user.ID, Username: user.Username})
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			l.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Identifier string `json:"identifier" validate:"required,max=254"`
		Password   string `json:"password" validate:"required,max=64"`
	}
	type token struct {
		AccessToken string `json:"access_token"`
	}
	type response struct {
		User  userResponse `json:"user"`
		Token token        `json:"token"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := authService.Login(r.Context(), data.Identifier, data.Password)

		switch {
		case err == nil:
			authService.SetRefreshCookie(w, pair.Refresh)
			render.JSON(w, response{
				User:  userResponse{ID: user.ID, Username: user.Username},
				Token: token{AccessToken: pair.Access.Value},
			})
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrUserInactive):
			render.ServiceError(w, "Inactive user", http.StatusForbidden)
		default:
			l.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Missed tokens are passed as empty and rejected by the service
		access, err := authService.AccessFromRequest(r)
		if err != nil && !errors.Is(err, apperrors.ErrTokenNotProvided) {
			renderAuthError(w, l, err)
			return
		}
		refresh, _ := authService.RefreshFromRequest(r)

		err = authService.Logout(r.Context(), access, refresh)
		if err != nil {
			renderAuthError(w, l, err)
			return
		}

		authService.ClearRefreshCookie(w)
		render.JSON(w, response{Message: "Successfully logged out."})
	})
}

func handleRenewTokens(authService authService, l logger.Logger) http.Handler {
	type response struct {
		AccessToken string `json:"access_token"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, _ := authService.RefreshFromRequest(r)

		pair, err := authService.RenewTokens(r.Context(), refresh)
		if err != nil {
			renderAuthError(w, l, err)
			return
		}

		authService.SetRefreshCookie(w, pair.Refresh)
		render.JSON(w, response{AccessToken: pair.Access.Value})
	})
}

// Log concrete reason and render uniform auth error
func renderAuthError(w http.ResponseWriter, l logger.Logger, err error) {
	switch {
	case apperrors.IsAuthFailure(err):
		l.Info("Authentication failed", "reason", err)
	default:
		l.Error("Authentication error", "error", err)
	}

	render.AuthError(w, err)
}
