package billing

import (
	"context"
)

// Outcome reports how a webhook delivery was handled. A handler error is a
// local bug recorded on the event row, not a delivery failure: the HTTP
// layer still acknowledges receipt so the gateway does not retry forever.
type Outcome struct {
	EventID   string
	EventType string
	Duplicate bool
	// HandlerErr is the error of the lifecycle handler, already persisted on
	// the event row. Nil for ignored event types and successful handling.
	HandlerErr error
}

// ProcessEvent runs the full pipeline for one verified delivery: idempotent
// storage, routing to exactly one lifecycle handler, and marking the event
// row terminal. The returned error is a storage failure only (the event is
// not safely recorded and the gateway should retry); every other failure is
// absorbed into the Outcome.
func (s *Service) ProcessEvent(ctx context.Context, ev *Event, raw []byte, signature string) (Outcome, error) {
	out := Outcome{EventID: ev.UniqueID(), EventType: ev.Type}

	created, stored, err := s.RecordWebhookEvent(ctx, ev, raw, signature)
	if err != nil {
		return out, err
	}
	if !created {
		out.Duplicate = true
		return out, nil
	}

	var handlerErr error
	switch ev.Type {
	case EventSubscriptionAuthenticated:
		handlerErr = s.handleSubscriptionAuthenticated(ctx, ev, stored.SubscriptionID)
	case EventSubscriptionCancelled:
		handlerErr = s.handleSubscriptionCancelled(ctx, ev, stored.SubscriptionID)
	case EventPaymentFailed:
		handlerErr = s.handlePaymentFailed(ctx, ev, stored.SubscriptionID)
	default:
		// payment.authorized, payment.captured, subscription.activated,
		// subscription.charged and anything Razorpay adds later: accepted
		// and marked processed with no state change.
		s.log.Debug().
			Str("event_id", out.EventID).
			Str("event_type", ev.Type).
			Msg("event type not handled, marking processed")
	}

	if handlerErr != nil {
		s.log.Error().
			Err(handlerErr).
			Str("event_id", out.EventID).
			Str("event_type", ev.Type).
			Msg("webhook handler failed")
	}
	if markErr := s.MarkWebhookProcessed(ctx, stored.ID, handlerErr); markErr != nil {
		s.log.Error().
			Err(markErr).
			Str("event_id", out.EventID).
			Msg("failed to mark webhook event processed")
	}

	out.HandlerErr = handlerErr
	return out, nil
}
