package database

import (
	"cylinder-backend/internal/config"
	"cylinder-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	log := config.GetLogger()

	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}

	if err := Migrate(DB); err != nil {
		log.WithError(err).Fatal("auto migrate failed")
	}

	log.Info("database connected, migration complete")
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.CylinderTransaction{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	// The ledger always reads one customer's rows ordered by day.
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_cylinder_transactions_customer_date
		ON cylinder_transactions (customer_id, delivery_date DESC, created_at DESC)`).Error
}
