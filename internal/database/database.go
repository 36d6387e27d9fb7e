package database

import (
	"fmt"
	"log"
	"time"

	"ticket-trader/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Initialize opens the MySQL connection and migrates the engine tables.
func Initialize(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.PurchaseIntent{},
		&models.PurchaseAttempt{},
		&models.PlatformCalibration{},
	); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	log.Println("Database initialized successfully")
	return db, nil
}
