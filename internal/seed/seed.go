package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepass/internal/auth/password"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	userdomain "github.com/smallbiznis/coursepass/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DemoUserEmail    = "demo@coursepass.local"
	demoUserPassword = "coursepass-demo"
	demoUserName     = "Demo Learner"
)

var demoCourses = []coursedomain.Course{
	{
		Title:       "Go in Production",
		Description: "Services, observability and deployment with Go.",
		ImageURL:    "https://images.coursepass.local/go-in-production.png",
		PriceCents:  4900,
		Currency:    "usd",
	},
	{
		Title:       "Postgres for Application Developers",
		Description: "Schema design, indexing and transactions.",
		ImageURL:    "https://images.coursepass.local/postgres.png",
		PriceCents:  3900,
		Currency:    "usd",
	},
}

// EnsureDemoData seeds a demo learner and a small course catalog. Rows that
// already exist are left untouched.
func EnsureDemoData(db *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var userCount int64
		if err := tx.Model(&userdomain.User{}).Where("email = ?", DemoUserEmail).Count(&userCount).Error; err != nil {
			return err
		}
		if userCount == 0 {
			hashed, err := password.Hash(demoUserPassword)
			if err != nil {
				return err
			}
			user := userdomain.User{
				ID:           node.Generate(),
				Email:        DemoUserEmail,
				Name:         demoUserName,
				PasswordHash: hashed,
				Role:         userdomain.RoleStudent,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			log.Info("seeded demo user", zap.String("email", DemoUserEmail))
		}

		for _, course := range demoCourses {
			var count int64
			if err := tx.Model(&coursedomain.Course{}).Where("title = ?", course.Title).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			course.ID = node.Generate()
			course.CreatedAt = now
			course.UpdatedAt = now
			if err := tx.Create(&course).Error; err != nil {
				return err
			}
			log.Info("seeded course", zap.String("title", course.Title))
		}
		return nil
	})
}
