package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product is a catalog entry. Quantity is the chain-wide stock not yet
// distributed to pharmacies.
type Product struct {
	Base
	Name                string                      `gorm:"type:varchar(255);not null;index" json:"name"`
	Dosages             datatypes.JSONSlice[string] `gorm:"not null" json:"dosages"`
	Price               decimal.Decimal             `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity            int                         `gorm:"not null;default:0" json:"quantity"`
	ExpiryDate          time.Time                   `gorm:"not null;index" json:"expiry_date"`
	PreferredSupplierID *uuid.UUID                  `gorm:"type:uuid;index" json:"preferred_supplier_id"`
	PreferredSupplier   *Supplier                   `gorm:"foreignKey:PreferredSupplierID;constraint:OnDelete:SET NULL" json:"preferred_supplier,omitempty"`
}

// HasDosage reports whether any dosage of p contains fragment.
func (p *Product) HasDosage(fragment string) bool {
	fragment = strings.ToLower(fragment)
	for _, d := range p.Dosages {
		if strings.Contains(strings.ToLower(d), fragment) {
			return true
		}
	}
	return false
}
