package auth

import "bookshelf/internal/apperr"

var (
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	ErrUnauthenticated    = apperr.New(apperr.KindUnauthorized, "UNAUTHENTICATED", "missing bearer token")
	ErrInvalidToken       = apperr.New(apperr.KindUnauthorized, "INVALID_TOKEN", "invalid or expired token")
	ErrAdminOnly          = apperr.Forbidden("ADMIN_ONLY", "admin only")
	ErrUserExists         = apperr.Conflict("USER_EXISTS", "user already exists")
	ErrAlreadySetUp       = apperr.Conflict("ALREADY_SET_UP", "users already exist")
	ErrUserNotFound       = apperr.NotFound("USER_NOT_FOUND", "user not found")
	ErrInvalidRole        = apperr.Validation("INVALID_ROLE", "role must be admin or user")
	ErrMissingCredentials = apperr.Validation("MISSING_CREDENTIALS", "username and password required")
)
