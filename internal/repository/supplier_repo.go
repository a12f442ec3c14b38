package repository

import (
	"context"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupplierRepository interface {
	Create(ctx context.Context, supplier *model.Supplier) error
	Update(ctx context.Context, supplier *model.Supplier) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Supplier, error)
	// ListLinked returns suppliers whose linked user has the supplier role,
	// with the user preloaded.
	ListLinked(ctx context.Context, offset, limit int) ([]model.Supplier, int64, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Supplier, error)
	ListByProductName(ctx context.Context, name string) ([]model.Supplier, error)
	// ListStocking returns every supplier with at least one ledger row, with
	// the stocked products preloaded.
	ListStocking(ctx context.Context) ([]model.SupplierProduct, error)
	ClearUser(ctx context.Context, userID uuid.UUID) error
}

type supplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) SupplierRepository {
	return &supplierRepository{db: db}
}

func (r *supplierRepository) Create(ctx context.Context, supplier *model.Supplier) error {
	return GetDB(ctx, r.db).Omit("User").Create(supplier).Error
}

func (r *supplierRepository) Update(ctx context.Context, supplier *model.Supplier) error {
	return GetDB(ctx, r.db).Omit("User").Save(supplier).Error
}

func (r *supplierRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Supplier{}).Error
}

func (r *supplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := GetDB(ctx, r.db).Preload("User").First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := GetDB(ctx, r.db).First(&supplier, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepository) ListLinked(ctx context.Context, offset, limit int) ([]model.Supplier, int64, error) {
	var suppliers []model.Supplier
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Supplier{}).
		Joins("JOIN users ON users.id = suppliers.user_id").
		Where("users.role = ?", model.RoleSupplier)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("User").Order("suppliers.created_at asc").
		Offset(offset).Limit(limit).Find(&suppliers).Error; err != nil {
		return nil, 0, err
	}

	return suppliers, total, nil
}

func (r *supplierRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Supplier, error) {
	var suppliers []model.Supplier
	err := GetDB(ctx, r.db).Model(&model.Supplier{}).
		Joins("JOIN supplier_products ON supplier_products.supplier_id = suppliers.id").
		Where("supplier_products.product_id = ?", productID).
		Order("supplier_products.preference asc").
		Find(&suppliers).Error
	if err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r *supplierRepository) ListByProductName(ctx context.Context, name string) ([]model.Supplier, error) {
	var suppliers []model.Supplier
	err := GetDB(ctx, r.db).Model(&model.Supplier{}).
		Distinct("suppliers.*").
		Joins("JOIN supplier_products ON supplier_products.supplier_id = suppliers.id").
		Joins("JOIN products ON products.id = supplier_products.product_id").
		Where("LOWER(products.name) = LOWER(?)", name).
		Find(&suppliers).Error
	if err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r *supplierRepository) ListStocking(ctx context.Context) ([]model.SupplierProduct, error) {
	var rows []model.SupplierProduct
	if err := GetDB(ctx, r.db).Preload("Supplier").Preload("Product").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClearUser detaches the supplier linked to userID without deleting it.
func (r *supplierRepository) ClearUser(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Supplier{}).
		Where("user_id = ?", userID).
		Update("user_id", nil).Error
}
