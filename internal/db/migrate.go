package db

import (
	"fmt"
	"time"

	"github.com/fitflow/billing/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// allModels lists every persisted model in dependency order.
func allModels() []any {
	return []any{
		&models.Admin{},
		&models.Plan{},
		&models.Client{},
		&models.Payment{},
		&models.Expense{},
	}
}

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// migratePostgres applies PostgreSQL schema updates and constraints.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(allModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errCheck := conn.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_plans_positive') THEN
				ALTER TABLE plans ADD CONSTRAINT chk_plans_positive CHECK (price > 0 AND duration_days > 0);
			END IF;
		END $$;
	`).Error; errCheck != nil {
		return fmt.Errorf("db: add plan check constraint: %w", errCheck)
	}

	if errPendingIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_payments_pending
		ON payments (created_at)
		WHERE status = 1
	`).Error; errPendingIndex != nil {
		return fmt.Errorf("db: create pending payments index: %w", errPendingIndex)
	}

	return ensureDefaultPlans(conn)
}

// migrateSQLite applies SQLite schema updates.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(allModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return ensureDefaultPlans(conn)
}

// defaultPlan describes a plan seeded into an empty catalog.
type defaultPlan struct {
	name         string
	price        int64
	durationDays int
}

var defaultPlans = []defaultPlan{
	{name: "Monthly", price: 3000, durationDays: 30},
	{name: "Quarterly", price: 8000, durationDays: 90},
	{name: "Annual", price: 30000, durationDays: 365},
}

// ensureDefaultPlans seeds the standard plans when the catalog is empty.
func ensureDefaultPlans(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Plan{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count plans: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	plans := make([]models.Plan, 0, len(defaultPlans))
	for _, p := range defaultPlans {
		plans = append(plans, models.Plan{
			Name:         p.name,
			Price:        decimal.NewFromInt(p.price),
			DurationDays: p.durationDays,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if errCreate := conn.Create(&plans).Error; errCreate != nil {
		return fmt.Errorf("db: seed default plans: %w", errCreate)
	}
	return nil
}
