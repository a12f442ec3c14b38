package service

import (
	"context"
	"testing"

	"pharmacy/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleDirector, user.Role)
	assert.True(t, user.IsActive)

	tok, err := f.users.Login(ctx, LoginUserRequest{Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := f.tokens.Parse(tok.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = f.users.Login(ctx, LoginUserRequest{Email: "alice@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.users.Login(ctx, LoginUserRequest{Email: "nobody@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "password1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr error
	}{
		{"duplicate username", RegisterRequest{Username: "bob", Email: "other@example.com", Password: "password1"}, ErrConflict},
		{"duplicate email", RegisterRequest{Username: "bobby", Email: "bob@example.com", Password: "password1"}, ErrConflict},
		{"short password", RegisterRequest{Username: "carl", Email: "carl@example.com", Password: "short"}, ErrInvalidArgument},
		{"unknown role", RegisterRequest{Username: "dave", Email: "dave@example.com", Password: "password1", Role: "owner"}, ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Register(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegisterCannotGrantAdmin(t *testing.T) {
	f := newFixture(t)
	user, err := f.users.Register(context.Background(), RegisterRequest{
		Username: "mallory",
		Email:    "mallory@example.com",
		Password: "password1",
		Role:     "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleDirector, user.Role)
}

func TestRegisterSupplierProvisionsSupplier(t *testing.T) {
	f := newFixture(t)
	user, err := f.users.Register(context.Background(), RegisterRequest{
		Username: "acme",
		Email:    "acme@example.com",
		Password: "password1",
		Role:     "supplier",
	})
	require.NoError(t, err)
	require.NotNil(t, user.SupplierID)

	supplier, err := f.supplierRepo.FindByID(context.Background(), *user.SupplierID)
	require.NoError(t, err)
	assert.Equal(t, "acme", supplier.Name)
	require.NotNil(t, supplier.UserID)
	assert.Equal(t, user.ID, *supplier.UserID)
}

func TestLoginInactiveUserForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)

	_, err := f.users.CreateUser(ctx, admin, CreateUserRequest{
		Username: "sleepy",
		Email:    "sleepy@example.com",
		Password: "password1",
		Role:     "director",
		IsActive: ptr(false),
	})
	require.NoError(t, err)

	_, err = f.users.Login(ctx, LoginUserRequest{Email: "sleepy@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPromotionToSupplierProvisionsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	target := f.newUser(t, "target", model.RoleDirector)

	updated, err := f.users.UpdateUser(ctx, admin, target.UserID, UpdateUserRequest{Role: ptr("supplier")})
	require.NoError(t, err)
	require.NotNil(t, updated.SupplierID)
	first := *updated.SupplierID

	// A second update keeps the same supplier.
	updated, err = f.users.UpdateUser(ctx, admin, target.UserID, UpdateUserRequest{Role: ptr("supplier")})
	require.NoError(t, err)
	require.NotNil(t, updated.SupplierID)
	assert.Equal(t, first, *updated.SupplierID)

	var n int64
	require.NoError(t, f.db.Model(&model.Supplier{}).Where("user_id = ?", target.UserID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), f.auditCount(t, model.ActionProvisionSupplier))
}

func TestUserAdministrationRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	director := f.newUser(t, "director", model.RoleDirector)

	_, _, err := f.users.ListUsers(ctx, director, 0, 10)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.users.CreateUser(ctx, director, CreateUserRequest{Username: "x", Email: "x@example.com", Password: "password1", Role: "director"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.users.UpdateUser(ctx, director, director.UserID, UpdateUserRequest{Role: ptr("admin")})
	assert.ErrorIs(t, err, ErrForbidden)

	// Reading oneself is always allowed.
	me, err := f.users.GetUserByID(ctx, director, director.UserID)
	require.NoError(t, err)
	assert.Equal(t, "director", me.Username)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.newUser(t, "admin", model.RoleAdmin)
	director := f.newUser(t, "director", model.RoleDirector)
	pharmacy := f.newPharmacy(t, "Central", &director.UserID)

	err := f.users.DeleteUser(ctx, admin, admin.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.users.DeleteUser(ctx, admin, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.users.DeleteUser(ctx, admin, director.UserID))
	_, err = f.users.GetUserByID(ctx, admin, director.UserID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The pharmacy survives without a director.
	got, err := f.pharmacy.GetPharmacy(ctx, admin, pharmacy.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DirectorID)
}

func TestResolveActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	supplier := f.newSupplierUser(t, "acme")

	actor, err := f.users.ResolveActor(ctx, supplier.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSupplier, actor.Role)
	require.NotNil(t, actor.SupplierID)
	assert.Equal(t, *supplier.SupplierID, *actor.SupplierID)

	_, err = f.users.ResolveActor(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUnauthorized)

	u, err := f.userRepo.FindByID(ctx, supplier.UserID)
	require.NoError(t, err)
	u.IsActive = false
	require.NoError(t, f.userRepo.Update(ctx, u))
	_, err = f.users.ResolveActor(ctx, supplier.UserID)
	assert.ErrorIs(t, err, ErrForbidden)
}
