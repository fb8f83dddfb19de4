package checkout

import (
	"gorm.io/gorm"

	"github.com/nikhilsawlani/SnapLink/app/models"
)

// Repository provides DB operations used by the checkout service.
type Repository interface {
	FindRemotePlan(userID uint, name, period string, interval int) (*models.RazorpaySubscriptionPlan, error)
	CreateRemotePlan(plan *models.RazorpaySubscriptionPlan) error
	FindPendingSubscription(userID uint, remotePlanID string) (*models.Subscription, error)
	SaveSubscription(sub *models.Subscription) error
	LatestSubscription(userID uint) (*models.Subscription, error)
	GetUser(userID uint) (*models.User, error)
	FindPlanByID(planID uint) (*models.Plan, error)
	CreateBillingInfo(info *models.BillingInfo) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a checkout repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindRemotePlan(userID uint, name, period string, interval int) (*models.RazorpaySubscriptionPlan, error) {
	var plan models.RazorpaySubscriptionPlan
	err := r.db.
		Where("user_id = ? AND plan_name = ? AND period = ? AND `interval` = ?", userID, name, period, interval).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) CreateRemotePlan(plan *models.RazorpaySubscriptionPlan) error {
	return r.db.Create(plan).Error
}

func (r *gormRepository) FindPendingSubscription(userID uint, remotePlanID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("user_id = ? AND razorpay_plan_id = ? AND subscription_status = ?",
			userID, remotePlanID, models.SubscriptionStatusPending).
		Order("created_date DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) LatestSubscription(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("created_date DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetUser(userID uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) FindPlanByID(planID uint) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.First(&plan, planID).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) CreateBillingInfo(info *models.BillingInfo) error {
	return r.db.Create(info).Error
}
