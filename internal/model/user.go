package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director"
	RoleSupplier Role = "supplier"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleDirector, RoleSupplier}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleSupplier:
		return true
	}
	return false
}

// ParseRole converts s into a Role, rejecting anything outside the enum.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q: must be admin, director or supplier", s)
	}
	return r, nil
}

// User is an account able to authenticate against the API
type User struct {
	Base
	Email      string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username   string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Password   string     `gorm:"type:varchar(255);not null" json:"-"` // bcrypt hash
	Role       Role       `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive   bool       `gorm:"not null" json:"is_active"`
	SupplierID *uuid.UUID `gorm:"type:uuid;index" json:"supplier_id"` // back-link, set for supplier accounts
}
