package service

import (
	"context"
	"testing"
	"time"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectorCreatesOwnPharmacy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.newUser(t, "director", model.RoleDirector)
	someoneElse := uuid.New()

	p, err := f.pharmacy.CreatePharmacy(ctx, director, CreatePharmacyRequest{Name: "Central", DirectorID: &someoneElse})
	require.NoError(t, err)
	require.NotNil(t, p.DirectorID)
	assert.Equal(t, director.UserID, *p.DirectorID)
	assert.Equal(t, int64(1), f.auditCount(t, model.ActionCreatePharmacy))
}

func TestAdminCreatePharmacyValidatesDirector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	supplier := f.newSupplierUser(t, "acme")

	_, err := f.pharmacy.CreatePharmacy(ctx, admin, CreatePharmacyRequest{Name: "A", DirectorID: &supplier.UserID})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	missing := uuid.New()
	_, err = f.pharmacy.CreatePharmacy(ctx, admin, CreatePharmacyRequest{Name: "B", DirectorID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := f.pharmacy.CreatePharmacy(ctx, admin, CreatePharmacyRequest{Name: "C"})
	require.NoError(t, err)
	assert.Nil(t, p.DirectorID)

	_, err = f.pharmacy.CreatePharmacy(ctx, supplier, CreatePharmacyRequest{Name: "D"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestForeignPharmacyLooksMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.newUser(t, "owner", model.RoleDirector)
	other := f.newUser(t, "other", model.RoleDirector)
	p := f.newPharmacy(t, "Owned", &owner.UserID)

	_, err := f.pharmacy.GetPharmacy(ctx, other, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.pharmacy.UpdatePharmacy(ctx, other, p.ID, UpdatePharmacyRequest{Name: ptr("Stolen")})
	assert.ErrorIs(t, err, ErrNotFound)
	err = f.pharmacy.DeletePharmacy(ctx, other, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.pharmacy.SetCurrentDate(ctx, other, p.ID, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.pharmacy.GetPharmacy(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owned", got.Name)
}

func TestListPharmaciesScopedToDirector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	a := f.newUser(t, "a", model.RoleDirector)
	b := f.newUser(t, "b", model.RoleDirector)
	f.newPharmacy(t, "A1", &a.UserID)
	f.newPharmacy(t, "A2", &a.UserID)
	f.newPharmacy(t, "B1", &b.UserID)

	list, total, err := f.pharmacy.ListPharmacies(ctx, a, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	_, total, err = f.pharmacy.ListPharmacies(ctx, admin, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	page, total, err := f.pharmacy.ListPharmacies(ctx, admin, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

func TestSetCurrentDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.newUser(t, "director", model.RoleDirector)
	p := f.newPharmacy(t, "Central", &director.UserID)
	date := time.Date(2031, 1, 15, 0, 0, 0, 0, time.UTC)

	res, err := f.pharmacy.SetCurrentDate(ctx, director, p.ID, date)
	require.NoError(t, err)
	assert.True(t, date.Equal(res.CurrentDate))

	got, err := f.pharmacy.GetPharmacy(ctx, director, p.ID)
	require.NoError(t, err)
	assert.True(t, date.Equal(got.CurrentDate))
	assert.Equal(t, int64(1), f.auditCount(t, model.ActionSetPharmacyDate))
}

func TestReassignDirector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	from := f.newUser(t, "from", model.RoleDirector)
	to := f.newUser(t, "to", model.RoleDirector)
	p := f.newPharmacy(t, "Central", &from.UserID)

	_, err := f.pharmacy.ReassignDirector(ctx, from, p.ID, &to.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := f.pharmacy.ReassignDirector(ctx, admin, p.ID, &to.UserID)
	require.NoError(t, err)
	assert.Equal(t, to.UserID, *res.DirectorID)

	_, err = f.pharmacy.GetPharmacy(ctx, from, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	res, err = f.pharmacy.ReassignDirector(ctx, admin, p.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, res.DirectorID)
}

func TestDeletePharmacyDropsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.newUser(t, "director", model.RoleDirector)
	p := f.newPharmacy(t, "Central", &director.UserID)
	product := f.newProduct(t, "Aspirin", 10, "1.00")

	_, err := f.inventory.Stock(ctx, director, product.ID, p.ID, 4)
	require.NoError(t, err)

	require.NoError(t, f.pharmacy.DeletePharmacy(ctx, director, p.ID))

	var rows int64
	require.NoError(t, f.db.Model(&model.PharmacyProduct{}).Where("pharmacy_id = ?", p.ID).Count(&rows).Error)
	assert.Zero(t, rows)
	_, err = f.pharmacy.GetPharmacy(ctx, director, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
