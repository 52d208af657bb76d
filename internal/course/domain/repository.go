package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, course *Course) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Course, error)
	// List returns up to limit courses ordered by id, starting after afterID.
	List(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*Course, error)
}
