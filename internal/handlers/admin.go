package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/handlers/render"
	"github.com/nkiryanov/blog/internal/handlers/userctx"
	"github.com/nkiryanov/blog/internal/logger"
	"github.com/nkiryanov/blog/internal/models"
)

type adminUserResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

func newAdminUserResponse(user models.User) adminUserResponse {
	return adminUserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt,
	}
}

func pathUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func handleAdminGetUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUserID(r)
		if !ok {
			render.ServiceError(w, "Invalid user id", http.StatusBadRequest)
			return
		}

		user, err := userService.GetUserByID(r.Context(), id)

		switch {
		case err == nil:
			render.JSON(w, newAdminUserResponse(user))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Suspend, reactivate, promote or demote user
func handleAdminUpdateUser(userService userService, l logger.Logger) http.Handler {
	type request struct {
		IsActive    *bool `json:"is_active"`
		IsSuperuser *bool `json:"is_superuser"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		id, ok := pathUserID(r)
		if !ok {
			render.ServiceError(w, "Invalid user id", http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if data.IsActive == nil && data.IsSuperuser == nil {
			render.ServiceError(w, "Nothing to update", http.StatusBadRequest)
			return
		}

		user, err := userService.UpdateFlags(r.Context(), admin.ID, id, models.UserFlags{
			IsActive:    data.IsActive,
			IsSuperuser: data.IsSuperuser,
		})

		switch {
		case err == nil:
			l.Info("User flags updated", "admin_id", admin.ID, "user_id", id, "is_active", user.IsActive, "is_superuser", user.IsSuperuser)
			render.JSON(w, newAdminUserResponse(user))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrPermissionDenied):
			render.ServiceError(w, "Can't change own flags", http.StatusForbidden)
		default:
			l.Error("Failed to update user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
