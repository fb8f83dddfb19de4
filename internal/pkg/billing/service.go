package billing

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nikhilsawlani/SnapLink/app/models"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/cache"
)

// PlanCache is the optional hot cache for a user's effective plan name,
// consulted by the feature gates. The linker keeps it in sync on every
// entitlement change.
type PlanCache interface {
	SetUserPlan(userID uint, planName string) error
	InvalidateUserPlan(userID uint) error
}

// Service is the webhook reconciliation engine: it stores gateway events
// idempotently, routes them to the lifecycle handlers and keeps user
// entitlements in sync with the gateway-owned subscription state.
type Service struct {
	repo      Repository
	gateway   Gateway
	planCache PlanCache
	log       zerolog.Logger
}

// NewService creates a billing service from injected collaborators. A nil
// gateway disables remote cancellation calls (local transitions still run).
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		log:     zerolog.New(os.Stderr).With().Timestamp().Str("component", "billing").Logger(),
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with the
// Redis-backed plan cache wired in.
func NewServiceFromDB(db *gorm.DB, gateway Gateway) *Service {
	return NewService(NewRepository(db), gateway).WithPlanCache(redisPlanCache{})
}

// WithPlanCache attaches a plan cache. Returns the service for chaining.
func (s *Service) WithPlanCache(pc PlanCache) *Service {
	s.planCache = pc
	return s
}

// WithLogger replaces the service logger. Returns the service for chaining.
func (s *Service) WithLogger(log zerolog.Logger) *Service {
	s.log = log
	return s
}

// RecordWebhookEvent persists a verified event exactly once. The second
// return is the stored row (existing row on duplicate); created=false
// signals a duplicate delivery and the caller must not re-run side effects.
//
// Cross-reference fields are best effort: the subscription id is taken from
// the payload entities and, failing that, backfilled from a prior stored
// event sharing the payment id.
func (s *Service) RecordWebhookEvent(ctx context.Context, ev *Event, raw []byte, signature string) (bool, *models.WebhookEvent, error) {
	_ = ctx

	subscriptionID := ev.SubscriptionID()
	paymentID := ev.PaymentID()
	if subscriptionID == "" && paymentID != "" {
		prior, err := s.repo.FindSubscriptionIDByPaymentID(paymentID)
		switch {
		case err == nil:
			subscriptionID = prior
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Unresolved; the handlers treat an empty id as non-actionable.
		default:
			return false, nil, err
		}
	}

	event := &models.WebhookEvent{
		EventID:        ev.UniqueID(),
		EventType:      ev.Type,
		Payload:        string(raw),
		Signature:      signature,
		Processed:      false,
		SubscriptionID: subscriptionID,
		PaymentID:      paymentID,
		UserID:         ev.UserID(),
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(event)
	if err != nil {
		return false, nil, err
	}
	if !created {
		s.log.Info().
			Str("event_id", event.EventID).
			Str("event_type", event.EventType).
			Msg("duplicate webhook event, skipping")
	}
	return created, stored, nil
}

// MarkWebhookProcessed marks an event row terminal, storing the handler
// error when there was one.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID string, processingErr error) error {
	_ = ctx
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// redisPlanCache adapts the shared cache package to the PlanCache interface.
type redisPlanCache struct{}

func (redisPlanCache) SetUserPlan(userID uint, planName string) error {
	return cache.SetUserPlan(userID, planName)
}

func (redisPlanCache) InvalidateUserPlan(userID uint) error {
	return cache.InvalidateUserPlan(userID)
}
