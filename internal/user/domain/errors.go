package domain

import "errors"

var (
	ErrNotFound      = errors.New("user_not_found")
	ErrInvalidUserID = errors.New("invalid_user_id")
	ErrEmailTaken    = errors.New("email_taken")
)
