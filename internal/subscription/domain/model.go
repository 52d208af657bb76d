// Package domain contains the subscription record reconciled from processor
// events.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status values are passed through from the processor. Only StatusActive
// grants access.
const (
	StatusTrialing   = "trialing"
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusUnpaid     = "unpaid"
	StatusIncomplete = "incomplete"
)

const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Subscription is one recurring billing relationship. LastEventTS holds the
// UnixNano timestamp of the newest event applied to the row.
type Subscription struct {
	ID                     snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID                 snowflake.ID `json:"user_id" gorm:"not null;index"`
	ExternalSubscriptionID string       `json:"external_subscription_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Status                 string       `json:"status" gorm:"type:varchar(32);not null"`
	PlanInterval           string       `json:"plan_interval" gorm:"type:varchar(16);not null"`
	CurrentPeriodStart     time.Time    `json:"current_period_start" gorm:"not null"`
	CurrentPeriodEnd       time.Time    `json:"current_period_end" gorm:"not null"`
	CancelAtPeriodEnd      bool         `json:"cancel_at_period_end" gorm:"not null;default:false"`
	LastEventTS            int64        `json:"-" gorm:"column:last_event_ts;not null"`
	CreatedAt              time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time    `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == StatusActive
}
