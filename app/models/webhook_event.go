package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent stores every inbound gateway event exactly once, keyed by the
// gateway event id. A row is either unprocessed (processed=false, no error)
// or terminal (processed=true, error set or empty). Rows are never deleted.
type WebhookEvent struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID   string `gorm:"type:varchar(255);not null;uniqueIndex" json:"event_id"`
	EventType string `gorm:"type:varchar(100);not null;index" json:"event_type"`
	// Payload keeps the raw gateway JSON for audit and replay.
	Payload      string     `gorm:"type:longtext;not null" json:"payload"`
	Signature    string     `gorm:"type:varchar(512)" json:"-"`
	Processed    bool       `gorm:"default:false;not null;index" json:"processed"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`

	// Best-effort cross-references scraped from the payload for debugging and
	// for chained-event backfill. May be empty.
	SubscriptionID string `gorm:"type:varchar(255);index" json:"subscription_id,omitempty"`
	PaymentID      string `gorm:"type:varchar(255);index" json:"payment_id,omitempty"`
	UserID         uint   `gorm:"default:0;index" json:"user_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
