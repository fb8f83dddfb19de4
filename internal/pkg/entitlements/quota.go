package entitlements

import (
	"encoding/json"

	"github.com/nikhilsawlani/SnapLink/app/models"
)

// Limits are the effective per-user caps used by the feature gates.
// A value of -1 means unlimited.
type Limits struct {
	MaxLinks         int `json:"max_links"`
	MaxQRs           int `json:"max_qrs"`
	MaxCustomLinks   int `json:"max_custom_links"`
	MaxQRWithLogo    int `json:"max_qr_with_logo"`
	MaxEditableLinks int `json:"max_editable_links"`
}

// customOverrides mirrors the optional per-user limit overrides stored as
// JSON on the user row. Pointer fields so absent keys fall through to the
// plan defaults.
type customOverrides struct {
	MaxLinks         *int `json:"max_links"`
	MaxQRs           *int `json:"max_qrs"`
	MaxCustomLinks   *int `json:"max_custom_links"`
	MaxQRWithLogo    *int `json:"max_qr_with_logo"`
	MaxEditableLinks *int `json:"max_editable_links"`
}

// EffectiveLimits combines the plan catalog caps with any per-user custom
// overrides. Malformed override JSON is ignored rather than failing a
// feature gate.
func EffectiveLimits(user *models.User, plan *models.Plan) Limits {
	limits := Limits{
		MaxLinks:         plan.MaxLinks,
		MaxQRs:           plan.MaxQRs,
		MaxCustomLinks:   plan.MaxCustomLinks,
		MaxQRWithLogo:    plan.MaxQRWithLogo,
		MaxEditableLinks: plan.MaxEditableLinks,
	}
	if user == nil || user.CustomLimits == "" {
		return limits
	}

	var overrides customOverrides
	if err := json.Unmarshal([]byte(user.CustomLimits), &overrides); err != nil {
		return limits
	}
	if overrides.MaxLinks != nil {
		limits.MaxLinks = *overrides.MaxLinks
	}
	if overrides.MaxQRs != nil {
		limits.MaxQRs = *overrides.MaxQRs
	}
	if overrides.MaxCustomLinks != nil {
		limits.MaxCustomLinks = *overrides.MaxCustomLinks
	}
	if overrides.MaxQRWithLogo != nil {
		limits.MaxQRWithLogo = *overrides.MaxQRWithLogo
	}
	if overrides.MaxEditableLinks != nil {
		limits.MaxEditableLinks = *overrides.MaxEditableLinks
	}
	return limits
}

func withinQuota(used, limit int) bool {
	if limit == models.UnlimitedQuota {
		return true
	}
	return used < limit
}

// CanCreateLink reports whether the user may create one more short link.
// Counters are permanent within a billing period: deleting a link does not
// return quota.
func CanCreateLink(user *models.User, plan *models.Plan) bool {
	return withinQuota(user.UsageLinks, EffectiveLimits(user, plan).MaxLinks)
}

// CanCreateQR reports whether the user may create one more QR code.
func CanCreateQR(user *models.User, plan *models.Plan) bool {
	return withinQuota(user.UsageQRs, EffectiveLimits(user, plan).MaxQRs)
}

// CanCreateCustomLink reports whether the user may claim one more custom
// short code.
func CanCreateCustomLink(user *models.User, plan *models.Plan) bool {
	return withinQuota(user.UsageCustomLinks, EffectiveLimits(user, plan).MaxCustomLinks)
}

// CanCreateQRWithLogo reports whether the user may create one more logo QR.
func CanCreateQRWithLogo(user *models.User, plan *models.Plan) bool {
	return withinQuota(user.UsageQRWithLogo, EffectiveLimits(user, plan).MaxQRWithLogo)
}

// CanEditLink reports whether the user may edit one more short link.
func CanEditLink(user *models.User, plan *models.Plan) bool {
	return withinQuota(user.UsageEditableLinks, EffectiveLimits(user, plan).MaxEditableLinks)
}

// ConsumeLink records a created short link against the quota.
func ConsumeLink(user *models.User) { user.UsageLinks++ }

// ConsumeQR records a created QR code against the quota.
func ConsumeQR(user *models.User) { user.UsageQRs++ }

// ConsumeCustomLink records a claimed custom short code against the quota.
func ConsumeCustomLink(user *models.User) { user.UsageCustomLinks++ }

// ConsumeQRWithLogo records a created logo QR against the quota.
func ConsumeQRWithLogo(user *models.User) { user.UsageQRWithLogo++ }

// ConsumeEdit records a link edit against the quota.
func ConsumeEdit(user *models.User) { user.UsageEditableLinks++ }
