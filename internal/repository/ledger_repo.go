package repository

import (
	"context"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository stores the pharmacy and supplier stock ledgers. Each upsert
// is a single INSERT ... ON CONFLICT DO UPDATE statement.
type LedgerRepository interface {
	// UpsertPharmacyStock inserts the row or adds quantity to the stored one.
	UpsertPharmacyStock(ctx context.Context, pharmacyID, productID uuid.UUID, quantity int) error
	FindPharmacyStock(ctx context.Context, pharmacyID, productID uuid.UUID) (*model.PharmacyProduct, error)
	ListPharmacyStock(ctx context.Context, pharmacyID uuid.UUID) ([]model.PharmacyProduct, error)
	// DeletePharmacyStock returns the number of removed rows.
	DeletePharmacyStock(ctx context.Context, pharmacyID, productID uuid.UUID) (int64, error)

	// UpsertSupplierStock adds quantity and overwrites the preference.
	UpsertSupplierStock(ctx context.Context, supplierID, productID uuid.UUID, quantity, preference int) error
	FindSupplierStock(ctx context.Context, supplierID, productID uuid.UUID) (*model.SupplierProduct, error)
	ListSupplierStock(ctx context.Context, supplierID uuid.UUID) ([]model.SupplierProduct, error)
	DeleteSupplierStock(ctx context.Context, supplierID, productID uuid.UUID) (int64, error)

	DeleteByPharmacy(ctx context.Context, pharmacyID uuid.UUID) error
	DeleteBySupplier(ctx context.Context, supplierID uuid.UUID) error
	DeleteByProduct(ctx context.Context, productID uuid.UUID) error
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) UpsertPharmacyStock(ctx context.Context, pharmacyID, productID uuid.UUID, quantity int) error {
	row := model.PharmacyProduct{PharmacyID: pharmacyID, ProductID: productID, Quantity: quantity}
	return GetDB(ctx, r.db).Omit("Pharmacy", "Product").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pharmacy_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("pharmacy_products.quantity + excluded.quantity"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&row).Error
}

func (r *ledgerRepository) FindPharmacyStock(ctx context.Context, pharmacyID, productID uuid.UUID) (*model.PharmacyProduct, error) {
	var row model.PharmacyProduct
	if err := GetDB(ctx, r.db).
		Where("pharmacy_id = ? AND product_id = ?", pharmacyID, productID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *ledgerRepository) ListPharmacyStock(ctx context.Context, pharmacyID uuid.UUID) ([]model.PharmacyProduct, error) {
	var rows []model.PharmacyProduct
	if err := GetDB(ctx, r.db).Preload("Product").
		Where("pharmacy_id = ?", pharmacyID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ledgerRepository) DeletePharmacyStock(ctx context.Context, pharmacyID, productID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).
		Where("pharmacy_id = ? AND product_id = ?", pharmacyID, productID).
		Delete(&model.PharmacyProduct{})
	return res.RowsAffected, res.Error
}

func (r *ledgerRepository) UpsertSupplierStock(ctx context.Context, supplierID, productID uuid.UUID, quantity, preference int) error {
	row := model.SupplierProduct{SupplierID: supplierID, ProductID: productID, Quantity: quantity, Preference: preference}
	return GetDB(ctx, r.db).Omit("Supplier", "Product").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "supplier_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("supplier_products.quantity + excluded.quantity"),
			"preference": gorm.Expr("excluded.preference"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&row).Error
}

func (r *ledgerRepository) FindSupplierStock(ctx context.Context, supplierID, productID uuid.UUID) (*model.SupplierProduct, error) {
	var row model.SupplierProduct
	if err := GetDB(ctx, r.db).
		Where("supplier_id = ? AND product_id = ?", supplierID, productID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *ledgerRepository) ListSupplierStock(ctx context.Context, supplierID uuid.UUID) ([]model.SupplierProduct, error) {
	var rows []model.SupplierProduct
	if err := GetDB(ctx, r.db).Preload("Product").
		Where("supplier_id = ?", supplierID).
		Order("preference asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ledgerRepository) DeleteSupplierStock(ctx context.Context, supplierID, productID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).
		Where("supplier_id = ? AND product_id = ?", supplierID, productID).
		Delete(&model.SupplierProduct{})
	return res.RowsAffected, res.Error
}

func (r *ledgerRepository) DeleteByPharmacy(ctx context.Context, pharmacyID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("pharmacy_id = ?", pharmacyID).Delete(&model.PharmacyProduct{}).Error
}

func (r *ledgerRepository) DeleteBySupplier(ctx context.Context, supplierID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("supplier_id = ?", supplierID).Delete(&model.SupplierProduct{}).Error
}

func (r *ledgerRepository) DeleteByProduct(ctx context.Context, productID uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("product_id = ?", productID).Delete(&model.PharmacyProduct{}).Error; err != nil {
		return err
	}
	return db.Where("product_id = ?", productID).Delete(&model.SupplierProduct{}).Error
}
