package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/handlers/render"
	"github.com/nkiryanov/blog/internal/handlers/userctx"
	"github.com/nkiryanov/blog/internal/logger"
)

func handleUserMe() http.Handler {
	type response struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{ID: user.ID, Username: user.Username, Email: user.Email})
	})
}

func handleUpdatePassword(userService userService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword     string `json:"old_password" validate:"required,max=64"`
		Password        string `json:"password" validate:"required,min=8,max=64,nowhitespace"`
		ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = userService.UpdatePassword(r.Context(), user.ID, data.OldPassword, data.Password)

		switch {
		case err == nil:
			render.Accepted(w, response{Message: "Password updated successfully."})
		case errors.Is(err, apperrors.ErrWrongPassword):
			render.ServiceError(w, "Old password is invalid", http.StatusBadRequest)
		default:
			l.Error("Failed to update password", "user_id", user.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
