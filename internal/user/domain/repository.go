package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindByExternalCustomerID(ctx context.Context, db *gorm.DB, externalCustomerID string) (*User, error)
	// SetExternalCustomerID links the processor customer only if none is
	// stored yet and reports whether the row changed.
	SetExternalCustomerID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalCustomerID string, now time.Time) (bool, error)
	SetCurrentSubscription(ctx context.Context, db *gorm.DB, id, subscriptionID snowflake.ID, now time.Time) error
	// ClearCurrentSubscription unsets the reference only while it still
	// points at subscriptionID.
	ClearCurrentSubscription(ctx context.Context, db *gorm.DB, id, subscriptionID snowflake.ID, now time.Time) (bool, error)
}
