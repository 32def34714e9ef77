package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"m3roodi/internal/models"
)

// InitDB initializes the database connection with connection pooling
func InitDB(dsn string, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Database connection established")
	return db, nil
}

// Models lists every persisted model, in migration order
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Request{},
		&models.Coupon{},
		&models.ManualReminder{},
		&models.PaymentSession{},
		&models.PaymentCallbackHistory{},
		&models.PaymentEvent{},
		&models.ScheduledTask{},
		&models.TaskRun{},
	}
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}

	log.Info("Database migrations completed")
	return nil
}
