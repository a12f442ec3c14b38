package repository

import (
	"context"
	"strings"
	"time"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, offset, limit int, search string) ([]model.Product, int64, error)
	ListAll(ctx context.Context) ([]model.Product, error)
	ListByPreferredSupplier(ctx context.Context, supplierID uuid.UUID) ([]model.Product, error)
	// ListExpired returns products whose expiry date is before cutoff, limited
	// to those stocked by pharmacyID when set.
	ListExpired(ctx context.Context, cutoff time.Time, pharmacyID *uuid.UUID) ([]model.Product, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	ClearPreferredSupplier(ctx context.Context, supplierID uuid.UUID) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Omit("PreferredSupplier").Create(product).Error
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Omit("PreferredSupplier").Save(product).Error
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Product{}).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate locks the product row until the surrounding transaction ends.
func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, offset, limit int, search string) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Product{})
	if search != "" {
		db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at asc").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productRepository) ListAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := GetDB(ctx, r.db).Order("created_at asc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) ListByPreferredSupplier(ctx context.Context, supplierID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	if err := GetDB(ctx, r.db).Where("preferred_supplier_id = ?", supplierID).
		Order("created_at asc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) ListExpired(ctx context.Context, cutoff time.Time, pharmacyID *uuid.UUID) ([]model.Product, error) {
	var products []model.Product

	db := GetDB(ctx, r.db).Model(&model.Product{}).Where("products.expiry_date < ?", cutoff)
	if pharmacyID != nil {
		db = db.Joins("JOIN pharmacy_products ON pharmacy_products.product_id = products.id").
			Where("pharmacy_products.pharmacy_id = ?", *pharmacyID)
	}

	if err := db.Order("products.expiry_date asc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	return GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).Update("quantity", quantity).Error
}

func (r *productRepository) ClearPreferredSupplier(ctx context.Context, supplierID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Product{}).
		Where("preferred_supplier_id = ?", supplierID).
		Update("preferred_supplier_id", nil).Error
}
