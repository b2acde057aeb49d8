package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is suspended")
	ErrInvalidCredentials = errors.New("invalid username, email or password")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrWrongPassword      = errors.New("old password is invalid")

	// Token failures. All of them mean "authentication failed" for the client,
	// the concrete one is for logs only
	ErrTokenDecode      = errors.New("token decode failed")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenWrongType   = errors.New("invalid token type")
	ErrTokenRevoked     = errors.New("token revoked")
	ErrTokenNotProvided = errors.New("token not provided")

	// Revocation store is not reachable. Infrastructure failure, not an auth one
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
)

// IsAuthFailure reports whether err is one of the token failures
// that must be answered with "unauthorized"
func IsAuthFailure(err error) bool {
	for _, target := range []error{
		ErrTokenDecode,
		ErrTokenExpired,
		ErrTokenWrongType,
		ErrTokenRevoked,
		ErrTokenNotProvided,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
