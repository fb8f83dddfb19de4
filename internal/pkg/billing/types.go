package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Razorpay webhook event types the engine acts on. Everything else is
// accepted and marked processed without state change so unknown event types
// never block the pipeline.
const (
	EventSubscriptionAuthenticated = "subscription.authenticated"
	EventSubscriptionActivated     = "subscription.activated"
	EventSubscriptionCharged       = "subscription.charged"
	EventSubscriptionCancelled     = "subscription.cancelled"
	EventPaymentAuthorized         = "payment.authorized"
	EventPaymentCaptured           = "payment.captured"
	EventPaymentFailed             = "payment.failed"
)

// Event is the parsed Razorpay webhook envelope.
type Event struct {
	ID        string       `json:"id"`
	Type      string       `json:"event"`
	CreatedAt int64        `json:"created_at"`
	Payload   EventPayload `json:"payload"`
}

// EventPayload carries the nested entities Razorpay wraps each event in.
// Either entity may be absent depending on the event type.
type EventPayload struct {
	Payment struct {
		Entity PaymentEntity `json:"entity"`
	} `json:"payment"`
	Subscription struct {
		Entity SubscriptionEntity `json:"entity"`
	} `json:"subscription"`
}

// PaymentEntity is the subset of the payment object the engine reads.
type PaymentEntity struct {
	ID     string   `json:"id"`
	Amount int64    `json:"amount"`
	Status string   `json:"status"`
	Method string   `json:"method"`
	Notes  NotesMap `json:"notes"`
}

// SubscriptionEntity is the subset of the subscription object the engine reads.
type SubscriptionEntity struct {
	ID           string   `json:"id"`
	PlanID       string   `json:"plan_id"`
	Status       string   `json:"status"`
	CurrentStart int64    `json:"current_start"`
	CurrentEnd   int64    `json:"current_end"`
	Notes        NotesMap `json:"notes"`
}

// NotesMap tolerates Razorpay's two encodings of notes: a JSON object with
// string-ish values, or an empty array when no notes were set.
type NotesMap map[string]string

func (n *NotesMap) UnmarshalJSON(data []byte) error {
	var object map[string]any
	if err := json.Unmarshal(data, &object); err == nil {
		out := make(NotesMap, len(object))
		for k, v := range object {
			switch val := v.(type) {
			case string:
				out[k] = val
			case float64:
				out[k] = strconv.FormatFloat(val, 'f', -1, 64)
			case bool:
				out[k] = strconv.FormatBool(val)
			}
		}
		*n = out
		return nil
	}

	// Empty notes arrive as [].
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		*n = NotesMap{}
		return nil
	}
	return fmt.Errorf("notes: unsupported JSON shape")
}

// ParseEvent decodes a raw webhook body into an Event. The raw body must have
// been signature-verified already.
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("webhook payload has no event type")
	}
	return &ev, nil
}

// UniqueID returns the idempotency key for this delivery: the gateway event
// id when present, otherwise a synthesized type+timestamp key.
func (e *Event) UniqueID() string {
	if e.ID != "" {
		return e.ID
	}
	created := e.CreatedAt
	if created == 0 {
		created = time.Now().UTC().Unix()
	}
	return fmt.Sprintf("%s_%d", e.Type, created)
}

// SubscriptionID extracts the remote subscription id, preferring the
// subscription entity and falling back to the payment entity's notes.
func (e *Event) SubscriptionID() string {
	if id := e.Payload.Subscription.Entity.ID; id != "" {
		return id
	}
	return e.Payload.Payment.Entity.Notes["subscription_id"]
}

// PaymentID extracts the remote payment id when a payment entity is present.
func (e *Event) PaymentID() string {
	return e.Payload.Payment.Entity.ID
}

// UserID extracts the local user id from subscription notes, if the checkout
// path stamped one. Zero means unidentified.
func (e *Event) UserID() uint {
	raw := e.Payload.Subscription.Entity.Notes["user_id"]
	if raw == "" {
		raw = e.Payload.Payment.Entity.Notes["user_id"]
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

// CurrentStart returns the subscription period start from the payload, or nil.
func (e *Event) CurrentStart() *time.Time {
	return unixTime(e.Payload.Subscription.Entity.CurrentStart)
}

// CurrentEnd returns the subscription period end from the payload, or nil.
func (e *Event) CurrentEnd() *time.Time {
	return unixTime(e.Payload.Subscription.Entity.CurrentEnd)
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
