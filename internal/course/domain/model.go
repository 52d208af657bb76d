package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Course struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Title       string       `json:"title" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text;not null"`
	ImageURL    string       `json:"image_url" gorm:"type:text;not null"`
	PriceCents  int64        `json:"price_cents" gorm:"not null"`
	Currency    string       `json:"currency" gorm:"type:varchar(8);not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Course) TableName() string { return "courses" }
