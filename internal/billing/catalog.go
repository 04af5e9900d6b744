package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fitflow/billing/internal/models"
	"gorm.io/gorm"
)

// PlanCatalog is a read-only view of the subscription plans.
type PlanCatalog struct {
	db *gorm.DB
}

// NewPlanCatalog constructs a PlanCatalog backed by GORM.
func NewPlanCatalog(db *gorm.DB) *PlanCatalog { return &PlanCatalog{db: db} }

// Lookup finds a plan by its case-insensitive name.
func (c *PlanCatalog) Lookup(ctx context.Context, name string) (models.Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Plan{}, fmt.Errorf("%w: plan name is required", ErrValidation)
	}
	var plan models.Plan
	errFind := c.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		Take(&plan).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Plan{}, ErrPlanNotFound
		}
		return models.Plan{}, fmt.Errorf("billing: lookup plan: %w", errFind)
	}
	return plan, nil
}

// Get loads a plan by ID.
func (c *PlanCatalog) Get(ctx context.Context, id uint64) (models.Plan, error) {
	var plan models.Plan
	if errFind := c.db.WithContext(ctx).Take(&plan, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Plan{}, ErrPlanNotFound
		}
		return models.Plan{}, fmt.Errorf("billing: get plan: %w", errFind)
	}
	return plan, nil
}

// List returns all plans ordered by duration.
func (c *PlanCatalog) List(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if errFind := c.db.WithContext(ctx).Order("duration_days ASC, id ASC").Find(&plans).Error; errFind != nil {
		return nil, fmt.Errorf("billing: list plans: %w", errFind)
	}
	return plans, nil
}
