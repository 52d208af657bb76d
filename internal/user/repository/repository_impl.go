package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

const userColumns = `id, email, name, password_hash, role, external_customer_id,
	current_subscription_id, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (
			id, email, name, password_hash, role, external_customer_id,
			current_subscription_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.ExternalCustomerID,
		user.CurrentSubscriptionID,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByExternalCustomerID(ctx context.Context, db *gorm.DB, externalCustomerID string) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE external_customer_id = ? LIMIT 1`,
		externalCustomerID,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) SetExternalCustomerID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalCustomerID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET external_customer_id = ?, updated_at = ?
		 WHERE id = ? AND external_customer_id IS NULL`,
		externalCustomerID,
		now,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetCurrentSubscription(ctx context.Context, db *gorm.DB, id, subscriptionID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET current_subscription_id = ?, updated_at = ?
		 WHERE id = ?`,
		subscriptionID,
		now,
		id,
	).Error
}

func (r *repo) ClearCurrentSubscription(ctx context.Context, db *gorm.DB, id, subscriptionID snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET current_subscription_id = NULL, updated_at = ?
		 WHERE id = ? AND current_subscription_id = ?`,
		now,
		id,
		subscriptionID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
