package models

import "time"

// Built-in plan names. Remote Razorpay plan names are free text and are
// resolved against these by the entitlement linker.
const (
	PlanNameFree       = "Free"
	PlanNamePro        = "Pro"
	PlanNameEnterprise = "Enterprise"
)

// UnlimitedQuota marks a limit column as "no cap".
const UnlimitedQuota = -1

// Plan is the internal entitlement catalog: feature limits and permissions a
// user is granted. Reference data; subscriptions never point here directly,
// they resolve via the remote plan mirror's name at activation time.
type Plan struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Name     string  `gorm:"type:varchar(50);not null;uniqueIndex" json:"name"`
	PriceUSD float64 `gorm:"default:0" json:"price_usd"`
	PriceINR float64 `gorm:"default:0" json:"price_inr"`

	// Limits, -1 for unlimited.
	MaxLinks         int `gorm:"default:5" json:"max_links"`
	MaxQRs           int `gorm:"default:2" json:"max_qrs"`
	MaxCustomLinks   int `gorm:"default:2" json:"max_custom_links"`
	MaxQRWithLogo    int `gorm:"default:0" json:"max_qr_with_logo"`
	MaxEditableLinks int `gorm:"default:0" json:"max_editable_links"`

	// Permissions.
	AllowQRStyling      bool `gorm:"default:false" json:"allow_qr_styling"`
	AllowAnalytics      bool `gorm:"default:false" json:"allow_analytics"`
	ShowIndividualStats bool `gorm:"default:false" json:"show_individual_stats"`
	AllowAPIAccess      bool `gorm:"default:false" json:"allow_api_access"`

	// none, basic, detailed
	AnalyticsLevel string `gorm:"type:varchar(20);default:'none'" json:"analytics_level"`

	// Razorpay plan defaults used when the checkout path lazily creates the
	// remote counterpart.
	Period   string `gorm:"type:varchar(50)" json:"period"`
	Interval int    `gorm:"default:1" json:"interval"`
	Item     string `gorm:"type:text" json:"-"`
	Notes    string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFree reports whether this is the default free entitlement.
func (p *Plan) IsFree() bool {
	return p.Name == PlanNameFree
}

// DefaultPlans returns the seed catalog. Limits mirror the product tiers:
// the free tier is intentionally tight, paid tiers raise every cap.
func DefaultPlans() []Plan {
	return []Plan{
		{
			Name:             PlanNameFree,
			MaxLinks:         5,
			MaxQRs:           2,
			MaxCustomLinks:   3,
			MaxQRWithLogo:    0,
			MaxEditableLinks: 0,
			AnalyticsLevel:   "none",
		},
		{
			Name:                PlanNamePro,
			PriceUSD:            9,
			PriceINR:            499,
			MaxLinks:            200,
			MaxQRs:              150,
			MaxCustomLinks:      100,
			MaxQRWithLogo:       50,
			MaxEditableLinks:    5,
			AllowQRStyling:      true,
			AllowAnalytics:      true,
			ShowIndividualStats: true,
			AnalyticsLevel:      "basic",
			Period:              "monthly",
			Interval:            1,
		},
		{
			Name:                PlanNameEnterprise,
			PriceUSD:            29,
			PriceINR:            1999,
			MaxLinks:            1000,
			MaxQRs:              750,
			MaxCustomLinks:      500,
			MaxQRWithLogo:       UnlimitedQuota,
			MaxEditableLinks:    50,
			AllowQRStyling:      true,
			AllowAnalytics:      true,
			ShowIndividualStats: true,
			AllowAPIAccess:      true,
			AnalyticsLevel:      "detailed",
			Period:              "monthly",
			Interval:            1,
		},
	}
}
