package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrUserExists         = errors.New("user_exists")
	ErrUnauthorized       = errors.New("unauthorized")
)
