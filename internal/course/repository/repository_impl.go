package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() coursedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, course *coursedomain.Course) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO courses (id, title, description, image_url, price_cents, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		course.ID,
		course.Title,
		course.Description,
		course.ImageURL,
		course.PriceCents,
		course.Currency,
		course.CreatedAt,
		course.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*coursedomain.Course, error) {
	var course coursedomain.Course
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, description, image_url, price_cents, currency, created_at, updated_at
		 FROM courses
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&course).Error
	if err != nil {
		return nil, err
	}
	if course.ID == 0 {
		return nil, nil
	}
	return &course, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*coursedomain.Course, error) {
	var courses []*coursedomain.Course
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, description, image_url, price_cents, currency, created_at, updated_at
		 FROM courses
		 WHERE id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		afterID,
		limit,
	).Scan(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}
