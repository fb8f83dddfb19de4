package models

import "time"

// BillingInfo stores the payer details a user submitted at checkout plus the
// gateway identifiers of their latest activated subscription.
type BillingInfo struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	UserID                 uint      `gorm:"not null;index" json:"user_id"`
	FirstName              string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName               string    `gorm:"type:varchar(100)" json:"last_name"`
	Email                  string    `gorm:"type:varchar(120);not null" json:"email"`
	PhoneNumber            string    `gorm:"type:varchar(20);not null" json:"phone_number"`
	Address                string    `gorm:"type:text" json:"address"`
	RazorpayPlanID         string    `gorm:"type:varchar(255)" json:"razorpay_plan_id"`
	RazorpaySubscriptionID string    `gorm:"type:varchar(255)" json:"razorpay_subscription_id"`
	Amount                 float64   `gorm:"default:0" json:"amount"`
	PlanID                 uint      `gorm:"default:0" json:"plan_id"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
}
