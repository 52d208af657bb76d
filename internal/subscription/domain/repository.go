package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// UpsertResult reports whether a compare-and-swap upsert landed.
type UpsertResult int

const (
	UpsertOK UpsertResult = iota
	UpsertConflict
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalSubscriptionID string) (*Subscription, error)
	// Upsert inserts sub when expectedLastTS is nil and no row exists for its
	// external id, or overwrites the mutable fields when the stored
	// last_event_ts still equals *expectedLastTS. Any other state is a
	// conflict.
	Upsert(ctx context.Context, db *gorm.DB, sub *Subscription, expectedLastTS *int64) (UpsertResult, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
