package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nikhilsawlani/SnapLink/app/models"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/billing"
)

// Process-wide creation guards, one per remote operation type. Two
// near-simultaneous requests from the same user must not create duplicate
// remote plans or subscriptions; the guard serializes the check-then-create
// against the gateway. Process-local: a multi-instance deployment needs a
// distributed lock or a DB unique constraint to keep the same guarantee.
var (
	planCreateMu         sync.Mutex
	subscriptionCreateMu sync.Mutex
)

// Service drives the synchronous checkout path: lazily creating the remote
// plan mirror and the Pending subscription the webhook path later confirms.
type Service struct {
	repo    Repository
	gateway billing.Gateway
	log     zerolog.Logger
}

// NewService creates a checkout service from injected collaborators.
func NewService(repo Repository, gateway billing.Gateway) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		log:     zerolog.New(os.Stderr).With().Timestamp().Str("component", "checkout").Logger(),
	}
}

// NewServiceFromDB creates a checkout service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway billing.Gateway) *Service {
	return NewService(NewRepository(db), gateway)
}

// WithLogger replaces the service logger. Returns the service for chaining.
func (s *Service) WithLogger(log zerolog.Logger) *Service {
	s.log = log
	return s
}

// PlanRequest describes the remote billing plan the user is subscribing to.
type PlanRequest struct {
	UserID   uint
	Name     string
	Period   string
	Interval int
	Amount   float64 // major currency units
}

// SubscriptionRequest is the input of the synchronous create-subscription
// call the payer's checkout flow makes.
type SubscriptionRequest struct {
	UserID         uint
	Plan           PlanRequest
	TotalCount     int
	CustomerNotify bool
	Billing        *BillingDetails
}

// BillingDetails are the optional payer details captured at checkout.
type BillingDetails struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
}

// CheckoutResult carries the identifiers the payer's checkout flow needs.
type CheckoutResult struct {
	SubscriptionID         string `json:"subscription_id"`
	RazorpaySubscriptionID string `json:"razorpay_subscription_id"`
	RazorpayPlanID         string `json:"razorpay_plan_id"`
	ShortURL               string `json:"short_url"`
	Reused                 bool   `json:"reused"`
}

// GetOrCreateRemotePlan returns the remote plan mirror for (user, name,
// period, interval), creating the gateway plan lazily on first use. The
// plan guard serializes concurrent attempts so only one remote plan is
// ever created per key.
func (s *Service) GetOrCreateRemotePlan(ctx context.Context, in PlanRequest) (*models.RazorpaySubscriptionPlan, error) {
	if in.UserID == 0 || in.Name == "" {
		return nil, errors.New("user_id and plan name are required")
	}
	if in.Interval <= 0 {
		in.Interval = 1
	}

	planCreateMu.Lock()
	defer planCreateMu.Unlock()

	existing, err := s.repo.FindRemotePlan(in.UserID, in.Name, in.Period, in.Interval)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	remoteID, err := s.gateway.CreatePlan(ctx, billing.CreatePlanInput{
		Period:   in.Period,
		Interval: in.Interval,
		ItemName: in.Name,
		AmountP:  int64(in.Amount * 100),
		Currency: "INR",
		Notes:    map[string]string{"user_id": strconv.FormatUint(uint64(in.UserID), 10)},
	})
	if err != nil {
		return nil, err
	}

	plan := &models.RazorpaySubscriptionPlan{
		PlanName:       in.Name,
		UserID:         in.UserID,
		RazorpayPlanID: remoteID,
		Period:         in.Period,
		Interval:       in.Interval,
		Amount:         in.Amount,
		IsActive:       true,
	}
	if err := s.repo.CreateRemotePlan(plan); err != nil {
		return nil, err
	}
	s.log.Info().
		Uint("user_id", in.UserID).
		Str("razorpay_plan_id", remoteID).
		Str("plan_name", in.Name).
		Msg("created remote plan")
	return plan, nil
}

// CreateSubscription creates (or reuses) the Pending subscription for the
// user and plan and returns the checkout identifiers. The subscription
// guard serializes concurrent attempts; an existing Pending row for the
// same (user, plan) is reused rather than duplicated, so retried checkouts
// never create a second remote subscription.
func (s *Service) CreateSubscription(ctx context.Context, in SubscriptionRequest) (*CheckoutResult, error) {
	if in.UserID == 0 {
		return nil, errors.New("user_id is required")
	}
	in.Plan.UserID = in.UserID
	if in.TotalCount <= 0 {
		in.TotalCount = 12
	}

	remotePlan, err := s.GetOrCreateRemotePlan(ctx, in.Plan)
	if err != nil {
		return nil, fmt.Errorf("resolve remote plan: %w", err)
	}

	subscriptionCreateMu.Lock()
	defer subscriptionCreateMu.Unlock()

	pending, err := s.repo.FindPendingSubscription(in.UserID, remotePlan.RazorpayPlanID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if pending != nil && pending.RazorpaySubscriptionID != "" {
		return &CheckoutResult{
			SubscriptionID:         pending.ID,
			RazorpaySubscriptionID: pending.RazorpaySubscriptionID,
			RazorpayPlanID:         pending.RazorpayPlanID,
			ShortURL:               pending.ShortURL,
			Reused:                 true,
		}, nil
	}

	user, err := s.repo.GetUser(in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	notes := map[string]string{
		"user_id": strconv.FormatUint(uint64(user.ID), 10),
		"email":   user.Email,
	}
	remote, err := s.gateway.CreateSubscription(ctx, billing.CreateSubscriptionInput{
		RemotePlanID:   remotePlan.RazorpayPlanID,
		TotalCount:     in.TotalCount,
		Quantity:       1,
		CustomerNotify: in.CustomerNotify,
		Notes:          notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create remote subscription: %w", err)
	}

	notesJSON, _ := json.Marshal(notes)
	if pending == nil {
		pending = &models.Subscription{}
	}
	pending.UserID = in.UserID
	pending.RazorpayPlanID = remotePlan.RazorpayPlanID
	pending.PlanAmount = in.Plan.Amount
	pending.RazorpaySubscriptionID = remote.ID
	pending.Status = models.SubscriptionStatusPending
	pending.IsActive = false
	pending.ShortURL = remote.ShortURL
	pending.TotalCount = in.TotalCount
	pending.CustomerNotify = in.CustomerNotify
	pending.Notes = string(notesJSON)
	if err := s.repo.SaveSubscription(pending); err != nil {
		return nil, err
	}

	if in.Billing != nil {
		info := &models.BillingInfo{
			UserID:                 in.UserID,
			FirstName:              in.Billing.FirstName,
			LastName:               in.Billing.LastName,
			Email:                  in.Billing.Email,
			PhoneNumber:            in.Billing.PhoneNumber,
			Address:                in.Billing.Address,
			RazorpayPlanID:         remotePlan.RazorpayPlanID,
			RazorpaySubscriptionID: remote.ID,
			Amount:                 in.Plan.Amount,
		}
		if err := s.repo.CreateBillingInfo(info); err != nil {
			s.log.Warn().Err(err).Uint("user_id", in.UserID).Msg("failed to store billing info")
		}
	}

	s.log.Info().
		Uint("user_id", in.UserID).
		Str("razorpay_subscription_id", remote.ID).
		Msg("created pending subscription")

	return &CheckoutResult{
		SubscriptionID:         pending.ID,
		RazorpaySubscriptionID: remote.ID,
		RazorpayPlanID:         remotePlan.RazorpayPlanID,
		ShortURL:               remote.ShortURL,
	}, nil
}

// SubscriptionStatus is the payer-facing polling view: activation happens
// asynchronously via webhooks, so checkout success only means "pending".
type SubscriptionStatus struct {
	SubscriptionID         string  `json:"subscription_id"`
	RazorpaySubscriptionID string  `json:"razorpay_subscription_id"`
	Status                 string  `json:"status"`
	IsActive               bool    `json:"is_active"`
	PlanName               string  `json:"plan_name,omitempty"`
	PlanAmount             float64 `json:"plan_amount"`
	StartDate              string  `json:"start_date,omitempty"`
	EndDate                string  `json:"end_date,omitempty"`
}

// Status returns the latest subscription state for a user.
func (s *Service) Status(ctx context.Context, userID uint) (*SubscriptionStatus, error) {
	_ = ctx
	sub, err := s.repo.LatestSubscription(userID)
	if err != nil {
		return nil, err
	}

	status := &SubscriptionStatus{
		SubscriptionID:         sub.ID,
		RazorpaySubscriptionID: sub.RazorpaySubscriptionID,
		Status:                 sub.Status,
		IsActive:               sub.IsActive,
		PlanAmount:             sub.PlanAmount,
	}
	if sub.StartDate != nil {
		status.StartDate = sub.StartDate.Format("2006-01-02T15:04:05Z07:00")
	}
	if sub.EndDate != nil {
		status.EndDate = sub.EndDate.Format("2006-01-02T15:04:05Z07:00")
	}

	user, err := s.repo.GetUser(userID)
	if err == nil && user.PlanID != 0 {
		if plan, planErr := s.repo.FindPlanByID(user.PlanID); planErr == nil {
			status.PlanName = plan.Name
		}
	}
	return status, nil
}
