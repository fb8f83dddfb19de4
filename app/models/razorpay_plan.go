package models

import "time"

// Billing period values reported by the gateway. Free text in practice, the
// lifecycle engine substring-matches against these.
const (
	BillingPeriodMonthly = "monthly"
	BillingPeriodYearly  = "yearly"
)

// RazorpaySubscriptionPlan mirrors a gateway-side billing plan. Created lazily
// by the checkout path on first use and reused thereafter; the entitlement
// linker resolves the internal Plan through PlanName.
type RazorpaySubscriptionPlan struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PlanName       string    `gorm:"type:varchar(255);index:ux_razorpay_plans_user_plan,unique,priority:2" json:"plan_name"`
	UserID         uint      `gorm:"not null;index:ux_razorpay_plans_user_plan,unique,priority:1" json:"user_id"`
	RazorpayPlanID string    `gorm:"type:varchar(255);index" json:"razorpay_plan_id"`
	Period         string    `gorm:"type:varchar(50);index:ux_razorpay_plans_user_plan,unique,priority:3" json:"period"`
	Interval       int       `gorm:"not null;index:ux_razorpay_plans_user_plan,unique,priority:4" json:"interval"`
	Amount         float64   `gorm:"not null" json:"amount"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	IsRenewalPlan  bool      `gorm:"default:false" json:"is_renewal_plan"`
	ProRatedAmount float64   `gorm:"default:0" json:"pro_rated_amount"`
	CreatedAt      time.Time `gorm:"column:created_date;autoCreateTime" json:"created_date"`
}
