package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by entities keyed by a UUID string.
type Base struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// All lists every model for auto-migration.
func All() []any {
	return []any{
		&CommentModel{},
		&SubscriberModel{},
		&NewsletterQueueModel{},
		&NewsletterDeliveryModel{},
		&VisitModel{},
	}
}
