package domain

import "errors"

var (
	ErrNotFound        = errors.New("course_not_found")
	ErrInvalidCourseID = errors.New("invalid_course_id")
	ErrInvalidCursor   = errors.New("invalid_page_token")
)
