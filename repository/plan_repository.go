package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

type PlanRepository interface {
	GetActiveBySlug(ctx context.Context, slug string) (*models.Plan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type gormPlanRepo struct {
	db *gorm.DB
}

func NewGormPlanRepo(db *gorm.DB) PlanRepository {
	return &gormPlanRepo{db: db}
}

func (r *gormPlanRepo) GetActiveBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).
		Where("slug = ? AND active = ?", slug, true).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormPlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}
