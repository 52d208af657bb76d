package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Journal results. A record stays pending until reconciliation reaches a
// terminal outcome; failed records are retried on the next delivery.
const (
	ResultPending = "pending"
	ResultApplied = "applied"
	ResultIgnored = "ignored"
	ResultFailed  = "failed"
)

// EventRecord journals one verified provider event.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_billing_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_billing_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:varchar(64);not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	Result          string         `json:"result" gorm:"type:varchar(16);not null;default:pending"`
	Reason          string         `json:"reason" gorm:"type:varchar(64);not null;default:''"`
	Error           string         `json:"error" gorm:"type:text;not null;default:''"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "billing_events" }

// Done reports whether the event reached an outcome that must not be
// re-applied.
func (r *EventRecord) Done() bool {
	return r != nil && r.ProcessedAt != nil && (r.Result == ResultApplied || r.Result == ResultIgnored)
}
