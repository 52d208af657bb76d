package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Purchase records one completed one-time course checkout. Rows are never
// updated or deleted.
type Purchase struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID             snowflake.ID `json:"user_id" gorm:"not null;index:idx_purchases_user_course"`
	CourseID           snowflake.ID `json:"course_id" gorm:"not null;index:idx_purchases_user_course"`
	Amount             int64        `json:"amount" gorm:"not null"`
	Currency           string       `json:"currency" gorm:"type:varchar(8);not null"`
	ExternalCheckoutID string       `json:"external_checkout_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	PurchasedAt        time.Time    `json:"purchased_at" gorm:"not null"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
}

func (Purchase) TableName() string { return "purchases" }
