package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nikhilsawlani/SnapLink/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(eventID string, processingError string) error
	FindSubscriptionIDByPaymentID(paymentID string) (string, error)

	FindSubscriptionByRemoteID(remoteSubscriptionID string) (*models.Subscription, error)
	SaveSubscription(sub *models.Subscription) error
	ListOtherEntitledSubscriptions(userID uint, excludeLocalID string) ([]models.Subscription, error)
	CreateSubscriptionHistory(history *models.SubscriptionHistory) error

	FindRemotePlanByRemoteID(remotePlanID string) (*models.RazorpaySubscriptionPlan, error)
	ListPlans() ([]models.Plan, error)
	FindPlanByName(name string) (*models.Plan, error)

	GetUser(userID uint) (*models.User, error)
	SaveUser(user *models.User) error

	LatestBillingInfo(userID uint) (*models.BillingInfo, error)
	SaveBillingInfo(info *models.BillingInfo) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateWebhookEventIfNotExists inserts the event unless a row with the same
// event id already exists. The unique index on event_id is the sole
// cross-process idempotency guard, so the insert uses ON CONFLICT DO NOTHING
// and reports whether this call created the row.
func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(eventID string, processingError string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed":     true,
		"processed_at":  &now,
		"error_message": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", eventID).Updates(updates).Error
}

// FindSubscriptionIDByPaymentID backfills a missing subscription id from a
// prior stored event that shares the same payment id. Chained event
// sequences often carry the subscription entity in only one delivery.
func (r *gormRepository) FindSubscriptionIDByPaymentID(paymentID string) (string, error) {
	var prior models.WebhookEvent
	err := r.db.
		Where("payment_id = ? AND subscription_id <> ''", paymentID).
		Order("created_at DESC").
		First(&prior).Error
	if err != nil {
		return "", err
	}
	return prior.SubscriptionID, nil
}

func (r *gormRepository) FindSubscriptionByRemoteID(remoteSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("razorpay_subscription_id = ?", remoteSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) ListOtherEntitledSubscriptions(userID uint, excludeLocalID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("user_id = ? AND is_active = ? AND id <> ?", userID, true, excludeLocalID).
		Where("subscription_status IN ?", models.EntitlingStatuses).
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) CreateSubscriptionHistory(history *models.SubscriptionHistory) error {
	return r.db.Create(history).Error
}

func (r *gormRepository) FindRemotePlanByRemoteID(remotePlanID string) (*models.RazorpaySubscriptionPlan, error) {
	var plan models.RazorpaySubscriptionPlan
	err := r.db.Where("razorpay_plan_id = ?", remotePlanID).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) ListPlans() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Find(&plans).Error
	return plans, err
}

func (r *gormRepository) FindPlanByName(name string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("name = ?", name).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) GetUser(userID uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SaveUser(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *gormRepository) LatestBillingInfo(userID uint) (*models.BillingInfo, error) {
	var info models.BillingInfo
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").First(&info).Error
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *gormRepository) SaveBillingInfo(info *models.BillingInfo) error {
	return r.db.Save(info).Error
}
