package database

import (
	"fmt"
	"log/slog"

	"pharmacy/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Supplier{},
		&model.Pharmacy{},
		&model.Product{},
		&model.PharmacyProduct{},
		&model.SupplierProduct{},
		&model.AuditLog{},
	}
}

// NewConnection initializes a new connection pool using GORM and migrates the schema
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema on db.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		slog.Error("failed to auto-migrate models", "error", err)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
