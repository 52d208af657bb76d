package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User is the account that owns purchases and at most one current
// subscription. ExternalCustomerID is write-once.
type User struct {
	ID                    snowflake.ID  `json:"id" gorm:"primaryKey"`
	Email                 string        `json:"email" gorm:"type:varchar(320);not null;uniqueIndex"`
	Name                  string        `json:"name" gorm:"type:text;not null"`
	PasswordHash          string        `json:"-" gorm:"type:text;not null"`
	Role                  string        `json:"role" gorm:"type:varchar(32);not null;default:student"`
	ExternalCustomerID    *string       `json:"external_customer_id,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	CurrentSubscriptionID *snowflake.ID `json:"current_subscription_id,omitempty" gorm:"index"`
	CreatedAt             time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt             time.Time     `json:"updated_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (u *User) HasExternalCustomer() bool {
	return u != nil && u.ExternalCustomerID != nil && *u.ExternalCustomerID != ""
}
