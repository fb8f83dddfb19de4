package models

import "time"

// Url is one short link owned by a user. Creation and redirect handling live
// outside this service; the row exists so the quota gates have something to
// count against and so a downgrade can flag links exceeding the new caps.
type Url struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	ShortCode string `gorm:"type:varchar(50);not null;uniqueIndex" json:"short_code"`
	TargetURL string `gorm:"type:text;not null" json:"target_url"`

	// Feature flags deciding which quota counter the creation consumed.
	IsCustom   bool `gorm:"default:false" json:"is_custom"`
	IsEditable bool `gorm:"default:false" json:"is_editable"`
	HasQR      bool `gorm:"default:false" json:"has_qr"`
	QRWithLogo bool `gorm:"default:false" json:"qr_with_logo"`

	ClickCount uint       `gorm:"default:0" json:"click_count"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
