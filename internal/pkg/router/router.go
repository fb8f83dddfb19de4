package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nikhilsawlani/SnapLink/app/controllers"
)

// InstallRouter wires the billing API routes. The webhook endpoint is
// unauthenticated by design; it is protected by signature verification.
func InstallRouter(app *fiber.App) {
	api := app.Group("/api")

	subscription := api.Group("/subscription")
	subscription.Post("/webhook", controllers.HandleRazorpayWebhook)
	subscription.Get("/webhook/test", controllers.HandleWebhookTest)
	subscription.Post("/create", controllers.HandleSubscriptionCreate)
	subscription.Get("/status", controllers.HandleSubscriptionStatus)
}
