package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreatePharmacy   = "CREATE_PHARMACY"
	ActionUpdatePharmacy   = "UPDATE_PHARMACY"
	ActionDeletePharmacy   = "DELETE_PHARMACY"
	ActionReassignDirector = "REASSIGN_DIRECTOR"
	ActionSetPharmacyDate  = "SET_PHARMACY_DATE"

	ActionCreateProduct = "CREATE_PRODUCT"
	ActionUpdateProduct = "UPDATE_PRODUCT"
	ActionDeleteProduct = "DELETE_PRODUCT"

	ActionCreateSupplier = "CREATE_SUPPLIER"
	ActionUpdateSupplier = "UPDATE_SUPPLIER"
	ActionDeleteSupplier = "DELETE_SUPPLIER"

	// Inventory transfers
	ActionStockPharmacy   = "STOCK_PHARMACY"
	ActionUnstockPharmacy = "UNSTOCK_PHARMACY"
	ActionLinkSupplier    = "LINK_SUPPLIER_PRODUCT"
	ActionUnlinkSupplier  = "UNLINK_SUPPLIER_PRODUCT"

	ActionCreateUser        = "CREATE_USER"
	ActionUpdateUser        = "UPDATE_USER"
	ActionDeleteUser        = "DELETE_USER"
	ActionProvisionSupplier = "PROVISION_SUPPLIER"
)

// AuditLog tracks who changed what and when
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for seed/system writes
	User       *User      `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:text" json:"details"` // JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
