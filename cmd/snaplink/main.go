package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/nikhilsawlani/SnapLink/internal/pkg/cache"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/database"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/env"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "5000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	app := fiber.New(fiber.Config{
		AppName: "SnapLink",
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app)

	return app
}
