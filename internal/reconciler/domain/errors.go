package domain

import "errors"

var (
	ErrMissingMetadata           = errors.New("missing_metadata")
	ErrUserNotFound              = errors.New("user_not_found")
	ErrCourseNotFound            = errors.New("course_not_found")
	ErrSubscriptionNotFound      = errors.New("subscription_not_found")
	ErrSubscriptionOwnerMismatch = errors.New("subscription_owner_mismatch")
	ErrConcurrentUpdate          = errors.New("concurrent_update")
)

var consistencyFaults = []error{
	ErrMissingMetadata,
	ErrUserNotFound,
	ErrCourseNotFound,
	ErrSubscriptionNotFound,
	ErrSubscriptionOwnerMismatch,
	ErrConcurrentUpdate,
}
