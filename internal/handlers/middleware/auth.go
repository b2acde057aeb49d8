package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/handlers/render"
	"github.com/nkiryanov/blog/internal/handlers/userctx"
	"github.com/nkiryanov/blog/internal/models"
)

type authService interface {
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)
}

// Put authenticated user to request context or answer with auth error
func AuthMiddleware(as authService, l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Authenticate(r.Context(), r)
			if err != nil {
				if errors.Is(err, apperrors.ErrRevocationUnavailable) {
					l.Error("authentication failed", "path", r.URL.Path, "error", err)
				} else {
					l.Info("authentication failed", "path", r.URL.Path, "reason", err)
				}
				render.AuthError(w, err)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Let only superusers through. Must be used after AuthMiddleware
func SuperuserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !user.IsSuperuser {
			render.ServiceError(w, "Permission denied", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
