package service

import (
	"context"
	"testing"

	"pharmacy/internal/model"
	"pharmacy/internal/policy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockMovesUnitsIntoPharmacy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	pharmacy := f.newPharmacy(t, "Central", nil)
	product := f.newProduct(t, "Aspirin", 20, "2.00")

	first, err := f.inventory.Stock(ctx, admin, product.ID, pharmacy.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, first.ProductRemaining)
	assert.Equal(t, 5, first.PharmacyQuantity)

	second, err := f.inventory.Stock(ctx, admin, product.ID, pharmacy.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, second.ProductRemaining)
	assert.Equal(t, 10, second.PharmacyQuantity)

	row, err := f.ledgerRepo.FindPharmacyStock(ctx, pharmacy.ID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, row.Quantity)
	assert.Equal(t, 10, f.productQuantity(t, product.ID))

	assert.Equal(t, int64(2), f.auditCount(t, model.ActionStockPharmacy))
	assert.Equal(t, []string{EventPharmacyStocked, EventPharmacyStocked}, f.events.names())
	require.Len(t, f.observer.transfers, 2)
	assert.Equal(t, observedTransfer{kind: TransferStock, units: 5}, f.observer.transfers[0])
}

func TestStockInsufficientLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	pharmacy := f.newPharmacy(t, "Central", nil)
	product := f.newProduct(t, "Aspirin", 3, "2.00")

	_, err := f.inventory.Stock(ctx, admin, product.ID, pharmacy.ID, 4)
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 3, f.productQuantity(t, product.ID))
	_, err = f.ledgerRepo.FindPharmacyStock(ctx, pharmacy.ID, product.ID)
	assert.Error(t, err)
	assert.Zero(t, f.auditCount(t, model.ActionStockPharmacy))
	assert.Empty(t, f.events.names())
	require.Len(t, f.observer.transfers, 1)
	assert.ErrorIs(t, f.observer.transfers[0].err, ErrInsufficientStock)
}

func TestStockValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	pharmacy := f.newPharmacy(t, "Central", nil)
	product := f.newProduct(t, "Aspirin", 10, "2.00")

	tests := []struct {
		name       string
		productID  uuid.UUID
		pharmacyID uuid.UUID
		quantity   int
		wantErr    error
	}{
		{"zero quantity", product.ID, pharmacy.ID, 0, ErrInvalidArgument},
		{"negative quantity", product.ID, pharmacy.ID, -2, ErrInvalidArgument},
		{"unknown product", uuid.New(), pharmacy.ID, 1, ErrNotFound},
		{"unknown pharmacy", product.ID, uuid.New(), 1, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.inventory.Stock(ctx, admin, tt.productID, tt.pharmacyID, tt.quantity)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 10, f.productQuantity(t, product.ID))
}

func TestStockForeignPharmacyLooksMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.newUser(t, "owner", model.RoleDirector)
	other := f.newUser(t, "other", model.RoleDirector)
	pharmacy := f.newPharmacy(t, "Owned", &owner.UserID)
	product := f.newProduct(t, "Aspirin", 10, "2.00")

	_, err := f.inventory.Stock(ctx, other, product.ID, pharmacy.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := f.inventory.Stock(ctx, owner, product.ID, pharmacy.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, res.ProductRemaining)
}

func TestTransferEventsCarryPharmacyOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.newUser(t, "director", model.RoleDirector)
	supplier := f.newSupplierUser(t, "acme")
	pharmacy := f.newPharmacy(t, "Owned", &director.UserID)
	product := f.newProduct(t, "Aspirin", 10, "2.00")

	_, err := f.inventory.Stock(ctx, director, product.ID, pharmacy.ID, 2)
	require.NoError(t, err)
	require.NoError(t, f.inventory.Unstock(ctx, director, pharmacy.ID, product.ID))
	_, err = f.inventory.LinkSupplierProduct(ctx, supplier, *supplier.SupplierID, product.ID, 1, 1)
	require.NoError(t, err)

	events := f.events.all()
	require.Len(t, events, 3)
	for _, ev := range events[:2] {
		assert.Equal(t, policy.PharmacyRead, ev.action)
		require.NotNil(t, ev.owner)
		assert.Equal(t, director.UserID, *ev.owner)
	}
	assert.Equal(t, EventSupplierLinked, events[2].name)
	assert.Equal(t, policy.SupplierRead, events[2].action)
	assert.Nil(t, events[2].owner)
}

func TestUnstockRemovesWholeRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	pharmacy := f.newPharmacy(t, "Central", nil)
	product := f.newProduct(t, "Aspirin", 10, "2.00")

	err := f.inventory.Unstock(ctx, admin, pharmacy.ID, product.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.inventory.Stock(ctx, admin, product.ID, pharmacy.ID, 4)
	require.NoError(t, err)
	require.NoError(t, f.inventory.Unstock(ctx, admin, pharmacy.ID, product.ID))

	_, err = f.ledgerRepo.FindPharmacyStock(ctx, pharmacy.ID, product.ID)
	assert.Error(t, err)
	// Removed units do not flow back to the product.
	assert.Equal(t, 6, f.productQuantity(t, product.ID))
	assert.Equal(t, int64(1), f.auditCount(t, model.ActionUnstockPharmacy))
	assert.Contains(t, f.events.names(), EventPharmacyUnstocked)

	err = f.inventory.Unstock(ctx, admin, pharmacy.ID, product.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkSupplierProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	supplier := f.newSupplierUser(t, "acme")
	product := f.newProduct(t, "Aspirin", 10, "2.00")

	t.Run("preference out of range", func(t *testing.T) {
		for _, pref := range []int{0, 4, -1} {
			_, err := f.inventory.LinkSupplierProduct(ctx, admin, *supplier.SupplierID, product.ID, 5, pref)
			assert.ErrorIs(t, err, ErrInvalidArgument, "preference %d", pref)
		}
		_, err := f.ledgerRepo.FindSupplierStock(ctx, *supplier.SupplierID, product.ID)
		assert.Error(t, err)
	})

	t.Run("negative quantity", func(t *testing.T) {
		_, err := f.inventory.LinkSupplierProduct(ctx, admin, *supplier.SupplierID, product.ID, -1, 1)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("quantity is additive and preference overwritten", func(t *testing.T) {
		row, err := f.inventory.LinkSupplierProduct(ctx, admin, *supplier.SupplierID, product.ID, 5, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, row.Quantity)
		assert.Equal(t, 2, row.Preference)

		row, err = f.inventory.LinkSupplierProduct(ctx, supplier, *supplier.SupplierID, product.ID, 7, 3)
		require.NoError(t, err)
		assert.Equal(t, 12, row.Quantity)
		assert.Equal(t, 3, row.Preference)
	})

	t.Run("supplier cannot touch another supplier", func(t *testing.T) {
		other := f.newSupplierUser(t, "globex")
		_, err := f.inventory.LinkSupplierProduct(ctx, other, *supplier.SupplierID, product.ID, 1, 1)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.inventory.LinkSupplierProduct(ctx, admin, *supplier.SupplierID, uuid.New(), 1, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUnlinkSupplierProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	supplier := f.newSupplierUser(t, "acme")
	product := f.newProduct(t, "Aspirin", 10, "2.00")

	err := f.inventory.UnlinkSupplierProduct(ctx, supplier, *supplier.SupplierID, product.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.inventory.LinkSupplierProduct(ctx, supplier, *supplier.SupplierID, product.ID, 3, 1)
	require.NoError(t, err)
	require.NoError(t, f.inventory.UnlinkSupplierProduct(ctx, supplier, *supplier.SupplierID, product.ID))

	_, err = f.ledgerRepo.FindSupplierStock(ctx, *supplier.SupplierID, product.ID)
	assert.Error(t, err)
	assert.Equal(t, int64(1), f.auditCount(t, model.ActionUnlinkSupplier))
}

func TestTotalInventoryValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	director := f.newUser(t, "director", model.RoleDirector)
	pharmacy := f.newPharmacy(t, "Central", &director.UserID)
	stocked := f.newProduct(t, "Aspirin", 20, "7.00")
	f.newProduct(t, "Ibuprofen", 3, "1.50")

	_, err := f.inventory.Stock(ctx, admin, stocked.ID, pharmacy.ID, 10)
	require.NoError(t, err)

	chain, err := f.inventory.TotalInventoryValue(ctx, admin, nil)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("74.5").Equal(chain.Total), "got %s", chain.Total)

	// The pharmacy figure multiplies by the product's chain-wide quantity.
	local, err := f.inventory.TotalInventoryValue(ctx, director, &pharmacy.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(70).Equal(local.Total), "got %s", local.Total)

	other := f.newUser(t, "other", model.RoleDirector)
	_, err = f.inventory.TotalInventoryValue(ctx, other, &pharmacy.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTotalInventoryValueEmptyCatalog(t *testing.T) {
	f := newFixture(t)
	res, err := f.inventory.TotalInventoryValue(context.Background(), policy.Actor{UserID: uuid.New(), Role: model.RoleAdmin}, nil)
	require.NoError(t, err)
	assert.True(t, res.Total.IsZero())
}
