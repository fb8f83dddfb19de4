package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nikhilsawlani/SnapLink/internal/pkg/billing"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/database"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/env"
)

// HandleRazorpayWebhook receives gateway events. Contract: reject only on
// missing/invalid signature or malformed payload; once the event is durably
// stored, always acknowledge with 200 so the gateway never retries events
// that only a code fix can handle.
func HandleRazorpayWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-Razorpay-Signature"))
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_signature"})
	}

	secret := env.GetEnv("RAZORPAY_WEBHOOK_SECRET", "")
	if secret == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_not_configured"})
	}

	// Verification runs over the raw, unparsed body.
	if !billing.VerifyWebhookSignature(rawBody, signature, secret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := billing.ParseEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB(), billing.NewRazorpayClientFromEnv())
	outcome, err := svc.ProcessEvent(ctx, event, rawBody, signature)
	if err != nil {
		// Not stored; the gateway should retry this delivery.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if outcome.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if outcome.HandlerErr != nil {
		// Stored with the error noted on the event row; acknowledged anyway.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": false, "error": "processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "event": outcome.EventType})
}

// HandleWebhookTest is a reachability probe reporting whether the shared
// webhook secret is configured. No state access.
func HandleWebhookTest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":     "ok",
		"message":    "Webhook endpoint is accessible",
		"configured": env.GetEnv("RAZORPAY_WEBHOOK_SECRET", "") != "",
	})
}
