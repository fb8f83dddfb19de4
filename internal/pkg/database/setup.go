package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/nikhilsawlani/SnapLink/app/models"
	"github.com/nikhilsawlani/SnapLink/internal/pkg/env"
)

var DB *gorm.DB

const maxRetries = 5
const retryDelay = 5 * time.Second

func SetupDatabase() {
	var err error
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                      dsn,
			DefaultStringSize:        256,
			DisableDatetimePrecision: true,
			DontSupportRenameIndex:   true,
			DontSupportRenameColumn:  true,
		}), &gorm.Config{})
		if err == nil {
			DB.AutoMigrate(
				&models.User{},
				&models.Plan{},
				&models.RazorpaySubscriptionPlan{},
				&models.Subscription{},
				&models.SubscriptionHistory{},
				&models.WebhookEvent{},
				&models.BillingInfo{},
				&models.Url{},
			)

			seedPlans()
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retry in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// GetDB returns the global database handle.
func GetDB() *gorm.DB {
	return DB
}

// seedPlans inserts the default plan catalog if a plan name is missing.
// Existing rows are never overwritten so admins can tune limits in place.
func seedPlans() {
	for _, plan := range models.DefaultPlans() {
		var existing models.Plan
		err := DB.Where("name = ?", plan.Name).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if createErr := DB.Create(&plan).Error; createErr != nil {
				log.Printf("Failed to seed plan %s: %v", plan.Name, createErr)
			}
			continue
		}
		if err != nil {
			log.Printf("Failed to check plan %s: %v", plan.Name, err)
		}
	}
}
