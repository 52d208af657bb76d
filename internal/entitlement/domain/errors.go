package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user_not_found")
	ErrInvalidUserID   = errors.New("invalid_user_id")
	ErrInvalidCourseID = errors.New("invalid_course_id")
)
