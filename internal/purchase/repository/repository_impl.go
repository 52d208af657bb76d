package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	purchasedomain "github.com/smallbiznis/coursepass/internal/purchase/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() purchasedomain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, p *purchasedomain.Purchase) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByUserAndCourse(ctx context.Context, db *gorm.DB, userID, courseID snowflake.ID) (*purchasedomain.Purchase, error) {
	var item purchasedomain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, course_id, amount, currency, external_checkout_id, purchased_at, created_at
		 FROM purchases
		 WHERE user_id = ? AND course_id = ?
		 ORDER BY purchased_at ASC
		 LIMIT 1`,
		userID,
		courseID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]purchasedomain.Purchase, error) {
	var items []purchasedomain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, course_id, amount, currency, external_checkout_id, purchased_at, created_at
		 FROM purchases
		 WHERE user_id = ?
		 ORDER BY purchased_at DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
