package model

import (
	"time"

	"github.com/google/uuid"
)

// Pharmacy is a single store of the chain, optionally owned by a director.
type Pharmacy struct {
	Base
	Name        string     `gorm:"type:varchar(255);not null;index" json:"name"`
	CurrentDate time.Time  `gorm:"column:business_date;not null" json:"current_date"` // logical date, freely settable
	DirectorID  *uuid.UUID `gorm:"type:uuid;index" json:"director_id"`
	Director    *User      `gorm:"foreignKey:DirectorID;constraint:OnDelete:SET NULL" json:"-"`
}
