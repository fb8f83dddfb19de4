package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription lifecycle states. Pending is the initial state created by the
// synchronous checkout path; Active/Authenticated are confirmed by the
// gateway; Cancelled and Failed are terminal.
const (
	SubscriptionStatusPending       = "Pending"
	SubscriptionStatusAuthenticated = "Authenticated"
	SubscriptionStatusActive        = "Active"
	SubscriptionStatusCancelled     = "Cancelled"
	SubscriptionStatusFailed        = "Failed"
)

// EntitlingStatuses are the states in which a subscription grants access.
// Across all rows of a user at most one may be in one of these states once
// the deferred cancellation coordinator has run.
var EntitlingStatuses = []string{SubscriptionStatusActive, SubscriptionStatusAuthenticated}

// Subscription is one local subscription attempt against the gateway.
type Subscription struct {
	ID                     string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID                 uint       `gorm:"default:0;index" json:"user_id"`
	RazorpayPlanID         string     `gorm:"type:varchar(255);default:'';index" json:"razorpay_plan_id"`
	PlanAmount             float64    `gorm:"default:0" json:"plan_amount"`
	RazorpaySubscriptionID string     `gorm:"type:varchar(255);default:'';index" json:"razorpay_subscription_id"`
	RazorpaySignatureID    string     `gorm:"type:varchar(255);default:''" json:"-"`
	Status                 string     `gorm:"column:subscription_status;type:varchar(50);default:'Pending';index" json:"subscription_status"`
	StartDate              *time.Time `gorm:"column:subscription_start_date" json:"subscription_start_date,omitempty"`
	EndDate                *time.Time `gorm:"column:subscription_end_date" json:"subscription_end_date,omitempty"`
	NextBillingDate        *time.Time `json:"next_billing_date,omitempty"`
	IsActive               bool       `gorm:"default:false;index" json:"is_active"`
	IsAddOn                bool       `gorm:"default:false" json:"is_add_on"`
	ShortURL               string     `gorm:"type:varchar(255);default:''" json:"short_url"`
	CardID                 string     `gorm:"type:varchar(255);default:''" json:"-"`
	TotalCount             int        `gorm:"default:12" json:"total_count"`
	CustomerNotify         bool       `gorm:"default:true" json:"customer_notify"`
	OfferID                string     `gorm:"type:varchar(255);default:''" json:"-"`
	IPAddress              string     `gorm:"type:varchar(50);default:''" json:"-"`
	// Addons and Notes store gateway JSON verbatim.
	Addons      string    `gorm:"type:text" json:"-"`
	Notes       string    `gorm:"type:text" json:"-"`
	CreatedAt   time.Time `gorm:"column:created_date;autoCreateTime" json:"created_date"`
	UpdatedDate time.Time `gorm:"autoUpdateTime" json:"updated_date"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal reports whether the subscription reached a terminal state. No
// transition ever leaves a terminal state.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCancelled || s.Status == SubscriptionStatusFailed
}

// Entitles reports whether this row currently grants access.
func (s *Subscription) Entitles() bool {
	return s.IsActive && (s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusAuthenticated)
}
