package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, user_id, external_subscription_id, status, plan_interval,
	current_period_start, current_period_end, cancel_at_period_end, last_event_ts,
	created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ? LIMIT 1`,
		id,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE external_subscription_id = ? LIMIT 1`,
		externalSubscriptionID,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription, expectedLastTS *int64) (subscriptiondomain.UpsertResult, error) {
	if expectedLastTS == nil {
		res := db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(sub)
		if res.Error != nil {
			return subscriptiondomain.UpsertConflict, res.Error
		}
		if res.RowsAffected == 0 {
			return subscriptiondomain.UpsertConflict, nil
		}
		return subscriptiondomain.UpsertOK, nil
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, plan_interval = ?, current_period_start = ?, current_period_end = ?,
			cancel_at_period_end = ?, last_event_ts = ?, updated_at = ?
		 WHERE external_subscription_id = ? AND last_event_ts = ?`,
		sub.Status,
		sub.PlanInterval,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.LastEventTS,
		sub.UpdatedAt,
		sub.ExternalSubscriptionID,
		*expectedLastTS,
	)
	if res.Error != nil {
		return subscriptiondomain.UpsertConflict, res.Error
	}
	if res.RowsAffected == 0 {
		return subscriptiondomain.UpsertConflict, nil
	}
	return subscriptiondomain.UpsertOK, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM subscriptions WHERE id = ?`,
		id,
	).Error
}
