// Package apperrors holds the sentinel errors shared by stores, services
// and transport layers. Handlers map them onto HTTP statuses and socket
// acknowledgements; anything not in this set is treated as internal.
package apperrors

import "errors"

var (
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
)
