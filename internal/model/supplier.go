package model

import "github.com/google/uuid"

// Supplier delivers products to the chain. A supplier may be linked to at most
// one user account with the supplier role.
type Supplier struct {
	Base
	Name   string     `gorm:"type:varchar(255);not null;index" json:"name"`
	UserID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	User   *User      `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
}
