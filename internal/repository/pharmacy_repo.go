package repository

import (
	"context"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PharmacyRepository interface {
	Create(ctx context.Context, pharmacy *model.Pharmacy) error
	Update(ctx context.Context, pharmacy *model.Pharmacy) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Pharmacy, error)
	// List returns every pharmacy, or only those owned by directorID when set.
	List(ctx context.Context, directorID *uuid.UUID, offset, limit int) ([]model.Pharmacy, int64, error)
	ClearDirector(ctx context.Context, directorID uuid.UUID) error
}

type pharmacyRepository struct {
	db *gorm.DB
}

func NewPharmacyRepository(db *gorm.DB) PharmacyRepository {
	return &pharmacyRepository{db: db}
}

func (r *pharmacyRepository) Create(ctx context.Context, pharmacy *model.Pharmacy) error {
	return GetDB(ctx, r.db).Create(pharmacy).Error
}

func (r *pharmacyRepository) Update(ctx context.Context, pharmacy *model.Pharmacy) error {
	return GetDB(ctx, r.db).Omit("Director").Save(pharmacy).Error
}

func (r *pharmacyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Pharmacy{}).Error
}

func (r *pharmacyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Pharmacy, error) {
	var pharmacy model.Pharmacy
	if err := GetDB(ctx, r.db).First(&pharmacy, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pharmacy, nil
}

func (r *pharmacyRepository) List(ctx context.Context, directorID *uuid.UUID, offset, limit int) ([]model.Pharmacy, int64, error) {
	var pharmacies []model.Pharmacy
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Pharmacy{})
	if directorID != nil {
		db = db.Where("director_id = ?", *directorID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at asc").Offset(offset).Limit(limit).Find(&pharmacies).Error; err != nil {
		return nil, 0, err
	}

	return pharmacies, total, nil
}

// ClearDirector leaves pharmacies owned by directorID unowned.
func (r *pharmacyRepository) ClearDirector(ctx context.Context, directorID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Pharmacy{}).
		Where("director_id = ?", directorID).
		Update("director_id", nil).Error
}
