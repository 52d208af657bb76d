package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent stores p unless a purchase with the same external
	// checkout id exists. It reports whether a row was inserted.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, p *Purchase) (bool, error)
	FindByUserAndCourse(ctx context.Context, db *gorm.DB, userID, courseID snowflake.ID) (*Purchase, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Purchase, error)
}
