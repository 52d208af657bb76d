package domain

import "errors"

var (
	ErrNotFound = errors.New("subscription_not_found")
)
