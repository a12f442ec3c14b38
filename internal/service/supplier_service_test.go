package service

import (
	"context"
	"testing"

	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supplierNames(suppliers []SupplierResponse) []string {
	names := make([]string, 0, len(suppliers))
	for _, s := range suppliers {
		names = append(names, s.Name)
	}
	return names
}

func TestListSuppliersOnlyLinkedAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	f.newSupplierUser(t, "acme")

	_, err := f.suppliers.CreateSupplier(ctx, admin, CreateSupplierRequest{Name: "Orphan Ltd"})
	require.NoError(t, err)

	list, total, err := f.suppliers.ListSuppliers(ctx, admin, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "acme", list[0].Name)
	assert.Equal(t, "acme@example.com", list[0].Login)
}

func TestCreateSupplierWithUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	account := f.newUser(t, "vendor", model.RoleSupplier)

	s, err := f.suppliers.CreateSupplier(ctx, admin, CreateSupplierRequest{Name: "Vendor Inc", UserID: &account.UserID})
	require.NoError(t, err)
	assert.Equal(t, "vendor@example.com", s.Login)

	u, err := f.userRepo.FindByID(ctx, account.UserID)
	require.NoError(t, err)
	require.NotNil(t, u.SupplierID)
	assert.Equal(t, s.ID, *u.SupplierID)

	_, err = f.suppliers.CreateSupplier(ctx, admin, CreateSupplierRequest{Name: "Again", UserID: &account.UserID})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.suppliers.CreateSupplier(ctx, account, CreateSupplierRequest{Name: "Self"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSupplierLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.newUser(t, "director", model.RoleDirector)
	acme := f.newSupplierUser(t, "acme")
	globex := f.newSupplierUser(t, "globex")
	x := f.newProduct(t, "X", 10, "1.00", "5mg")
	y := f.newProduct(t, "Y", 10, "1.00", "20mg")

	_, err := f.inventory.LinkSupplierProduct(ctx, acme, *acme.SupplierID, x.ID, 1, 2)
	require.NoError(t, err)
	_, err = f.inventory.LinkSupplierProduct(ctx, globex, *globex.SupplierID, x.ID, 1, 1)
	require.NoError(t, err)
	_, err = f.inventory.LinkSupplierProduct(ctx, globex, *globex.SupplierID, y.ID, 1, 1)
	require.NoError(t, err)

	byProduct, err := f.suppliers.ListByProduct(ctx, director, x.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"globex", "acme"}, supplierNames(byProduct))

	_, err = f.suppliers.ListByProduct(ctx, director, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	byName, err := f.suppliers.ListByProductName(ctx, director, "x")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "globex"}, supplierNames(byName))

	byName, err = f.suppliers.ListByProductName(ctx, director, "Y")
	require.NoError(t, err)
	assert.Equal(t, []string{"globex"}, supplierNames(byName))

	byDosage, err := f.suppliers.ListByProductDosage(ctx, director, "5mg")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "globex"}, supplierNames(byDosage))

	byDosage, err = f.suppliers.ListByProductDosage(ctx, director, "20MG")
	require.NoError(t, err)
	assert.Equal(t, []string{"globex"}, supplierNames(byDosage))
}

func TestDeleteSupplierDetachesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	acme := f.newSupplierUser(t, "acme")
	product := f.newProduct(t, "Aspirin", 10, "1.00")

	_, err := f.products.UpdateProduct(ctx, admin, product.ID, UpdateProductRequest{PreferredSupplierID: acme.SupplierID})
	require.NoError(t, err)
	_, err = f.inventory.LinkSupplierProduct(ctx, admin, *acme.SupplierID, product.ID, 5, 1)
	require.NoError(t, err)

	err = f.suppliers.DeleteSupplier(ctx, acme, *acme.SupplierID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.suppliers.DeleteSupplier(ctx, admin, *acme.SupplierID))

	_, err = f.suppliers.GetSupplier(ctx, admin, *acme.SupplierID)
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := f.products.GetProduct(ctx, admin, product.ID)
	require.NoError(t, err)
	assert.Nil(t, p.PreferredSupplierID)

	u, err := f.userRepo.FindByID(ctx, acme.UserID)
	require.NoError(t, err)
	assert.Nil(t, u.SupplierID)

	var n int64
	require.NoError(t, f.db.Model(&model.SupplierProduct{}).Where("supplier_id = ?", *acme.SupplierID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), f.auditCount(t, model.ActionDeleteSupplier))
}

func TestAuditTrailAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	director := f.newUser(t, "director", model.RoleDirector)

	_, err := f.pharmacy.CreatePharmacy(ctx, director, CreatePharmacyRequest{Name: "Central"})
	require.NoError(t, err)

	logs, total, err := f.audit.GetAuditLogs(ctx, admin, repository.AuditFilter{Action: model.ActionCreatePharmacy}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "director", logs[0].Username)
	assert.Equal(t, "Central", logs[0].EntityName)

	_, _, err = f.audit.GetAuditLogs(ctx, director, repository.AuditFilter{}, 0, 0)
	assert.ErrorIs(t, err, ErrForbidden)
}
