package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/nikhilsawlani/SnapLink/internal/pkg/billing"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/checkout"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/database"
)

type createSubscriptionRequest struct {
	UserID         uint    `json:"user_id"`
	PlanName       string  `json:"plan_name"`
	Period         string  `json:"period"`
	Interval       int     `json:"interval"`
	Amount         float64 `json:"amount"`
	TotalCount     int     `json:"total_count"`
	CustomerNotify bool    `json:"customer_notify"`

	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

// HandleSubscriptionCreate is the synchronous checkout call. It either
// returns the identifiers driving the payment flow or a descriptive
// failure; activation itself happens later via webhook.
func HandleSubscriptionCreate(c *fiber.Ctx) error {
	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if req.UserID == 0 || strings.TrimSpace(req.PlanName) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and plan_name are required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	in := checkout.SubscriptionRequest{
		UserID: req.UserID,
		Plan: checkout.PlanRequest{
			Name:     strings.TrimSpace(req.PlanName),
			Period:   strings.TrimSpace(req.Period),
			Interval: req.Interval,
			Amount:   req.Amount,
		},
		TotalCount:     req.TotalCount,
		CustomerNotify: req.CustomerNotify,
	}
	if strings.TrimSpace(req.Email) != "" {
		in.Billing = &checkout.BillingDetails{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
			Address:     req.Address,
		}
	}

	svc := checkout.NewServiceFromDB(database.GetDB(), billing.NewRazorpayClientFromEnv())
	result, err := svc.CreateSubscription(ctx, in)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user_not_found"})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "subscription_create_failed", "detail": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// HandleSubscriptionStatus returns the latest subscription state for a
// user. Activation is asynchronous, so checkout flows poll this.
func HandleSubscriptionStatus(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
	if err != nil || userID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := checkout.NewServiceFromDB(database.GetDB(), billing.NewRazorpayClientFromEnv())
	status, err := svc.Status(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_subscription"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "status_lookup_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(status)
}
