// Package storetest opens throwaway in-memory SQLite databases carrying the
// coursepass schema for repository and service tests.
package storetest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	subscriptiondomain "github.com/smallbiznis/coursepass/internal/subscription/domain"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Schema mirrors the postgres migrations using SQLite types.
var Schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student',
		external_customer_id TEXT UNIQUE,
		current_subscription_id INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE courses (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		price_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE subscriptions (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		external_subscription_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		plan_interval TEXT NOT NULL,
		current_period_start DATETIME NOT NULL,
		current_period_end DATETIME NOT NULL,
		cancel_at_period_end BOOLEAN NOT NULL DEFAULT 0,
		last_event_ts INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	// sqlite leaves these foreign keys unenforced.
	`CREATE TABLE purchases (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id),
		course_id INTEGER NOT NULL REFERENCES courses (id),
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		external_checkout_id TEXT NOT NULL UNIQUE,
		purchased_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX idx_purchases_user_course ON purchases (user_id, course_id)`,
	`CREATE TABLE billing_events (
		id INTEGER PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT 'pending',
		reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		received_at DATETIME NOT NULL,
		processed_at DATETIME,
		UNIQUE (provider, provider_event_id)
	)`,
}

// Open returns a fresh database with Schema applied. A single connection is
// used so concurrent tests serialize the way a row lock would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// SeedUser inserts a user, linked to externalCustomerID when it is not empty.
func SeedUser(t testing.TB, db *gorm.DB, id snowflake.ID, email, externalCustomerID string) userdomain.User {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	user := userdomain.User{
		ID:        id,
		Email:     email,
		Name:      email,
		Role:      userdomain.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if externalCustomerID != "" {
		user.ExternalCustomerID = &externalCustomerID
	}
	if err := db.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, external_customer_id, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.Role, user.ExternalCustomerID, user.CreatedAt, user.UpdatedAt,
	).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func SeedCourse(t testing.TB, db *gorm.DB, id snowflake.ID, title string, priceCents int64) coursedomain.Course {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	course := coursedomain.Course{
		ID:         id,
		Title:      title,
		PriceCents: priceCents,
		Currency:   "usd",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Exec(
		`INSERT INTO courses (id, title, description, image_url, price_cents, currency, created_at, updated_at)
		 VALUES (?, ?, '', '', ?, ?, ?, ?)`,
		course.ID, course.Title, course.PriceCents, course.Currency, course.CreatedAt, course.UpdatedAt,
	).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return course
}

// SeedSubscription inserts sub and points its owner's current reference at it.
func SeedSubscription(t testing.TB, db *gorm.DB, sub subscriptiondomain.Subscription) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO subscriptions (id, user_id, external_subscription_id, status, plan_interval,
			current_period_start, current_period_end, cancel_at_period_end, last_event_ts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.ExternalSubscriptionID, sub.Status, sub.PlanInterval,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.LastEventTS,
		sub.CreatedAt, sub.UpdatedAt,
	).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	if err := db.Exec(`UPDATE users SET current_subscription_id = ? WHERE id = ?`, sub.ID, sub.UserID).Error; err != nil {
		t.Fatalf("link subscription: %v", err)
	}
}

func Count(t testing.TB, db *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM ` + table).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
