package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User holds account data plus the entitlement state owned by the billing
// engine: the linked internal plan, permanent usage counters and optional
// custom limit overrides.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Organization string `gorm:"type:varchar(200);default:''" json:"organization" validate:"max=200"`
	Email        string `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Phone        string `gorm:"type:varchar(20);default:''" json:"-"`
	Password     string `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role         string `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status       string `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`

	// Entitlement linkage. PlanID is zero until the first activation links a plan.
	PlanID uint `gorm:"default:0;index" json:"plan_id"`

	// CustomLimits holds admin-granted per-user overrides as opaque JSON. They
	// are cleared on plan change unless PermanentCustomLimits pins them.
	CustomLimits          string `gorm:"type:text" json:"-"`
	PermanentCustomLimits bool   `gorm:"default:false" json:"-"`

	// Usage counters are permanent within a billing period. They only ever
	// increase; deleting the underlying resource does not decrement them.
	// Only the plan linker resets them (plan change, renewal, downgrade).
	UsageLinks         int `gorm:"default:0" json:"usage_links"`
	UsageQRs           int `gorm:"default:0" json:"usage_qrs"`
	UsageCustomLinks   int `gorm:"default:0" json:"usage_custom_links"`
	UsageQRWithLogo    int `gorm:"default:0" json:"usage_qr_with_logo"`
	UsageEditableLinks int `gorm:"default:0" json:"usage_editable_links"`

	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:     username,
		Email:    email,
		Password: pw,
		Role:     ROLE_USER,
		Status:   STATUS_INACTIVE,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// ResetUsageCounters zeroes all permanent usage counters. Called by the plan
// linker on plan change and renewal; never called from resource deletion.
func (u *User) ResetUsageCounters() {
	u.UsageLinks = 0
	u.UsageQRs = 0
	u.UsageCustomLinks = 0
	u.UsageQRWithLogo = 0
	u.UsageEditableLinks = 0
}

// ClearCustomLimits drops per-user overrides unless they are pinned permanent.
func (u *User) ClearCustomLimits() {
	if u.PermanentCustomLimits {
		return
	}
	u.CustomLimits = ""
}
