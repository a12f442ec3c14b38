package service

import (
	"context"
	"testing"
	"time"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productNames(products []ProductResponse) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	director := f.newUser(t, "director", model.RoleDirector)
	supplier := f.newSupplierUser(t, "acme")
	other := f.newSupplierUser(t, "globex")

	req := CreateProductRequest{
		Name:       "Aspirin",
		Dosages:    []string{" 100mg ", "", "500mg"},
		Price:      decimal.RequireFromString("4.99"),
		Quantity:   50,
		ExpiryDate: time.Now().UTC().Add(24 * time.Hour),
	}

	t.Run("supplier becomes preferred by default", func(t *testing.T) {
		p, err := f.products.CreateProduct(ctx, supplier, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"100mg", "500mg"}, p.Dosages)
		require.NotNil(t, p.PreferredSupplierID)
		assert.Equal(t, *supplier.SupplierID, *p.PreferredSupplierID)
	})

	t.Run("supplier cannot nominate another supplier", func(t *testing.T) {
		r := req
		r.PreferredSupplierID = other.SupplierID
		_, err := f.products.CreateProduct(ctx, supplier, r)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("director cannot create", func(t *testing.T) {
		_, err := f.products.CreateProduct(ctx, director, req)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("validation", func(t *testing.T) {
		r := req
		r.Dosages = []string{" "}
		_, err := f.products.CreateProduct(ctx, admin, r)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		r = req
		r.Price = decimal.NewFromInt(-1)
		_, err = f.products.CreateProduct(ctx, admin, r)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		r = req
		missing := uuid.New()
		r.PreferredSupplierID = &missing
		_, err = f.products.CreateProduct(ctx, admin, r)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestProductMutationsOwnedByPreferredSupplier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.newSupplierUser(t, "acme")
	other := f.newSupplierUser(t, "globex")

	p, err := f.products.CreateProduct(ctx, owner, CreateProductRequest{
		Name:       "Aspirin",
		Dosages:    []string{"100mg"},
		Price:      decimal.NewFromInt(3),
		Quantity:   5,
		ExpiryDate: time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.products.UpdateProduct(ctx, other, p.ID, UpdateProductRequest{Name: ptr("Hijacked")})
	assert.ErrorIs(t, err, ErrForbidden)
	err = f.products.DeleteProduct(ctx, other, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.products.UpdateProduct(ctx, owner, p.ID, UpdateProductRequest{
		Name:     ptr("Aspirin Forte"),
		Quantity: ptr(9),
	})
	require.NoError(t, err)
	assert.Equal(t, "Aspirin Forte", updated.Name)
	assert.Equal(t, 9, updated.Quantity)
	assert.Equal(t, []string{"100mg"}, updated.Dosages)

	own, err := f.products.ListOwnProducts(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aspirin Forte"}, productNames(own))
	own, err = f.products.ListOwnProducts(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, own)

	require.NoError(t, f.products.DeleteProduct(ctx, owner, p.ID))
	_, err = f.products.GetProduct(ctx, owner, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProductDropsLedgerRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	supplier := f.newSupplierUser(t, "acme")
	pharmacy := f.newPharmacy(t, "Central", nil)
	product := f.newProduct(t, "Aspirin", 10, "1.00")

	_, err := f.inventory.Stock(ctx, admin, product.ID, pharmacy.ID, 2)
	require.NoError(t, err)
	_, err = f.inventory.LinkSupplierProduct(ctx, admin, *supplier.SupplierID, product.ID, 3, 1)
	require.NoError(t, err)

	require.NoError(t, f.products.DeleteProduct(ctx, admin, product.ID))

	var n int64
	require.NoError(t, f.db.Model(&model.PharmacyProduct{}).Where("product_id = ?", product.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, f.db.Model(&model.SupplierProduct{}).Where("product_id = ?", product.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestListProductsSearchAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.newUser(t, "director", model.RoleDirector)
	f.newProduct(t, "Aspirin", 1, "1.00")
	f.newProduct(t, "Aspirin Junior", 1, "1.00")
	f.newProduct(t, "Ibuprofen", 1, "1.00")

	list, total, err := f.products.ListProducts(ctx, director, 0, 0, "aspirin")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	list, total, err = f.products.ListProducts(ctx, director, 2, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 1)
}

func TestListByPharmacyAndSupplier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	director := f.newUser(t, "director", model.RoleDirector)
	supplier := f.newSupplierUser(t, "acme")
	pharmacy := f.newPharmacy(t, "Central", &director.UserID)

	stocked := f.newProduct(t, "Aspirin", 10, "1.00")
	preferred := f.newProduct(t, "Ibuprofen", 10, "1.00")
	f.newProduct(t, "Untouched", 10, "1.00")

	_, err := f.inventory.Stock(ctx, director, stocked.ID, pharmacy.ID, 3)
	require.NoError(t, err)
	_, err = f.inventory.LinkSupplierProduct(ctx, supplier, *supplier.SupplierID, stocked.ID, 1, 1)
	require.NoError(t, err)
	_, err = f.products.UpdateProduct(ctx, admin, preferred.ID, UpdateProductRequest{PreferredSupplierID: supplier.SupplierID})
	require.NoError(t, err)

	held, err := f.products.ListByPharmacy(ctx, director, pharmacy.ID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "Aspirin", held[0].Name)
	assert.Equal(t, 3, held[0].PharmacyQuantity)
	assert.Equal(t, 7, held[0].Quantity)

	other := f.newUser(t, "other", model.RoleDirector)
	_, err = f.products.ListByPharmacy(ctx, other, pharmacy.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	bySupplier, err := f.products.ListBySupplier(ctx, director, *supplier.SupplierID)
	require.NoError(t, err)
	// Ibuprofen only names the supplier as preferred and holds no stock row.
	assert.Equal(t, []string{"Aspirin"}, productNames(bySupplier))

	_, err = f.products.ListBySupplier(ctx, director, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByDosage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.newUser(t, "director", model.RoleDirector)
	f.newProduct(t, "X", 1, "1.00", "5mg", "10mg")
	f.newProduct(t, "Y", 1, "1.00", "10MG")
	f.newProduct(t, "Z", 1, "1.00", "1g")

	got, err := f.products.ListByDosage(ctx, director, "5mg")
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, productNames(got))

	got, err = f.products.ListByDosage(ctx, director, "10mg")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"X", "Y"}, productNames(got))

	_, err = f.products.ListByDosage(ctx, director, "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	pharmacy := f.newPharmacy(t, "Central", nil)
	now := time.Now().UTC()

	expired := f.newProduct(t, "Old", 10, "1.00")
	expired.ExpiryDate = now.Add(-48 * time.Hour)
	require.NoError(t, f.productRepo.Update(ctx, expired))
	soon := f.newProduct(t, "Soon", 10, "1.00")
	soon.ExpiryDate = now.Add(48 * time.Hour)
	require.NoError(t, f.productRepo.Update(ctx, soon))
	f.newProduct(t, "Fresh", 10, "1.00")

	got, err := f.products.ListExpired(ctx, admin, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Old"}, productNames(got))

	cutoff := now.Add(72 * time.Hour)
	got, err = f.products.ListExpired(ctx, admin, nil, &cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"Old", "Soon"}, productNames(got))

	_, err = f.inventory.Stock(ctx, admin, soon.ID, pharmacy.ID, 1)
	require.NoError(t, err)
	got, err = f.products.ListExpired(ctx, admin, &pharmacy.ID, &cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soon"}, productNames(got))
}
