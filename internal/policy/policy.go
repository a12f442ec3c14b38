// Package policy decides whether an actor may perform an action on a resource.
// Decisions are pure functions of the actor, the action and the resource owner
// fetched by the caller; nothing here touches storage.
package policy

import (
	"pharmacy/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID     uuid.UUID
	Role       model.Role
	SupplierID *uuid.UUID // linked supplier, supplier accounts only
}

// Action names an operation guarded by the policy.
type Action string

// Pharmacy actions. Owner is the pharmacy's director user id.
const (
	PharmacyCreate   Action = "pharmacy.create"
	PharmacyList     Action = "pharmacy.list"
	PharmacyRead     Action = "pharmacy.read"
	PharmacyUpdate   Action = "pharmacy.update"
	PharmacyDelete   Action = "pharmacy.delete"
	PharmacySetDate  Action = "pharmacy.set_date"
	PharmacyReassign Action = "pharmacy.reassign"
)

// Inventory transfer actions. Owner is the pharmacy's director user id, or nil
// for chain-wide valuation.
const (
	InventoryStock   Action = "inventory.stock"
	InventoryUnstock Action = "inventory.unstock"
	InventoryValue   Action = "inventory.value"
)

// Catalog actions. Owner is the product's preferred supplier id.
const (
	ProductRead    Action = "product.read"
	ProductCreate  Action = "product.create"
	ProductUpdate  Action = "product.update"
	ProductDelete  Action = "product.delete"
	ProductListOwn Action = "product.list_own"
)

// Supplier registry actions. For SupplierStock the owner is the supplier id.
const (
	SupplierRead  Action = "supplier.read"
	SupplierWrite Action = "supplier.write"
	SupplierStock Action = "supplier.stock"
)

// User administration. For UserDelete the owner is the target user id.
const (
	UserManage Action = "user.manage"
	UserDelete Action = "user.delete"
)

// Decision is the outcome of Decide.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Decide returns Allow when actor may perform action on a resource owned by
// owner. Unknown roles and actions are denied.
func Decide(actor Actor, action Action, owner *uuid.UUID) Decision {
	// Nobody deletes their own account, admins included.
	if action == UserDelete && owner != nil && *owner == actor.UserID {
		return Deny
	}

	switch actor.Role {
	case model.RoleAdmin:
		return Allow
	case model.RoleDirector:
		return decideDirector(actor, action, owner)
	case model.RoleSupplier:
		return decideSupplier(actor, action, owner)
	}
	return Deny
}

// Allowed is shorthand for Decide(...) == Allow.
func Allowed(actor Actor, action Action, owner *uuid.UUID) bool {
	return Decide(actor, action, owner) == Allow
}

func decideDirector(actor Actor, action Action, owner *uuid.UUID) Decision {
	switch action {
	case PharmacyCreate, PharmacyList, ProductRead, SupplierRead:
		return Allow
	case PharmacyRead, PharmacyUpdate, PharmacyDelete, PharmacySetDate,
		InventoryStock, InventoryUnstock:
		return ownedBy(owner, actor.UserID)
	case InventoryValue:
		if owner == nil {
			return Allow
		}
		return ownedBy(owner, actor.UserID)
	}
	return Deny
}

func decideSupplier(actor Actor, action Action, owner *uuid.UUID) Decision {
	switch action {
	case PharmacyList, PharmacyRead, ProductRead, ProductCreate, ProductListOwn,
		SupplierRead, InventoryValue:
		return Allow
	case ProductUpdate, ProductDelete, SupplierStock:
		if actor.SupplierID == nil {
			return Deny
		}
		return ownedBy(owner, *actor.SupplierID)
	}
	return Deny
}

func ownedBy(owner *uuid.UUID, id uuid.UUID) Decision {
	if owner != nil && *owner == id {
		return Allow
	}
	return Deny
}
