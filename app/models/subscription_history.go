package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cancellation reasons recorded in the history trail.
const (
	CancelReasonUserRequested = "User Requested"
	CancelReasonWebhook       = "Webhook Cancellation"
	CancelReasonUpgrade       = "Upgrade to New Plan (Webhook)"
)

// SubscriptionHistory is an append-only audit snapshot written whenever a
// subscription transitions to Cancelled. Never mutated after insert.
type SubscriptionHistory struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	SubscriptionID string     `gorm:"type:varchar(255);not null;index" json:"subscription_id"`
	UserID         uint       `gorm:"not null;index" json:"user_id"`
	RazorpayPlanID string     `gorm:"type:varchar(255)" json:"razorpay_plan_id"`
	PlanAmount     float64    `gorm:"default:0" json:"plan_amount"`
	CancelledDate  time.Time  `gorm:"not null" json:"cancelled_date"`
	CancelReason   string     `gorm:"column:cancelled_reason;type:varchar(255);default:'User Requested'" json:"cancelled_reason"`
	StartDate      *time.Time `gorm:"column:subscription_start_date" json:"subscription_start_date,omitempty"`
	EndDate        *time.Time `gorm:"column:subscription_end_date" json:"subscription_end_date,omitempty"`
	IsActive       bool       `gorm:"default:true" json:"is_active"`
	CardID         string     `gorm:"type:varchar(255)" json:"-"`
	TotalCount     int        `json:"total_count"`
	Notes          string     `gorm:"type:text" json:"-"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (h *SubscriptionHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// NewSubscriptionHistory snapshots a subscription row at cancellation time.
func NewSubscriptionHistory(sub *Subscription, reason string) *SubscriptionHistory {
	return &SubscriptionHistory{
		SubscriptionID: sub.RazorpaySubscriptionID,
		UserID:         sub.UserID,
		RazorpayPlanID: sub.RazorpayPlanID,
		PlanAmount:     sub.PlanAmount,
		CancelledDate:  time.Now().UTC(),
		CancelReason:   reason,
		StartDate:      sub.StartDate,
		EndDate:        sub.EndDate,
		IsActive:       true,
		CardID:         sub.CardID,
		TotalCount:     sub.TotalCount,
		Notes:          sub.Notes,
	}
}
