package model

import (
	"time"

	"github.com/google/uuid"
)

// Preference bounds for supplier stock rows.
const (
	MinSupplierPreference = 1
	MaxSupplierPreference = 3
)

// PharmacyProduct is one row of a pharmacy's stock ledger.
type PharmacyProduct struct {
	PharmacyID uuid.UUID `gorm:"type:uuid;primaryKey" json:"pharmacy_id"`
	ProductID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	Quantity   int       `gorm:"not null;default:0" json:"quantity"`
	UpdatedAt  time.Time `json:"updated_at"`
	Pharmacy   *Pharmacy `gorm:"foreignKey:PharmacyID;constraint:OnDelete:CASCADE" json:"-"`
	Product    *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
}

func (PharmacyProduct) TableName() string {
	return "pharmacy_products"
}

// SupplierProduct is one row of a supplier's stock ledger. Preference ranks the
// supplier for the product, 1 being the most preferred.
type SupplierProduct struct {
	SupplierID uuid.UUID `gorm:"type:uuid;primaryKey" json:"supplier_id"`
	ProductID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	Quantity   int       `gorm:"not null;default:0" json:"quantity"`
	Preference int       `gorm:"not null;default:1;check:preference >= 1 AND preference <= 3" json:"preference"`
	UpdatedAt  time.Time `json:"updated_at"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID;constraint:OnDelete:CASCADE" json:"-"`
	Product    *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
}

func (SupplierProduct) TableName() string {
	return "supplier_products"
}
