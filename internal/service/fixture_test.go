package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"pharmacy/internal/auth"
	"pharmacy/internal/database"
	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordedEvent struct {
	name   string
	action policy.Action
	owner  *uuid.UUID
	data   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(event string, action policy.Action, owner *uuid.UUID, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{name: event, action: action, owner: owner, data: data})
}

func (p *recordingPublisher) all() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

type observedTransfer struct {
	kind  string
	units int
	err   error
}

type recordingObserver struct {
	mu        sync.Mutex
	transfers []observedTransfer
}

func (o *recordingObserver) ObserveTransfer(kind string, units int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transfers = append(o.transfers, observedTransfer{kind: kind, units: units, err: err})
}

type fixture struct {
	db        *gorm.DB
	events    *recordingPublisher
	observer  *recordingObserver
	tokens    *auth.TokenManager
	users     UserService
	pharmacy  PharmacyService
	products  ProductService
	suppliers SupplierService
	inventory InventoryService
	audit     AuditService

	userRepo     repository.UserRepository
	productRepo  repository.ProductRepository
	supplierRepo repository.SupplierRepository
	ledgerRepo   repository.LedgerRepository
}

// setupTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps every query on the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)

	f := &fixture{
		db:       db,
		events:   &recordingPublisher{},
		observer: &recordingObserver{},
		tokens:   auth.NewTokenManager([]byte("test-secret"), time.Hour),
	}

	txManager := repository.NewTransactionManager(db)
	f.userRepo = repository.NewUserRepository(db)
	pharmacyRepo := repository.NewPharmacyRepository(db)
	f.productRepo = repository.NewProductRepository(db)
	f.supplierRepo = repository.NewSupplierRepository(db)
	f.ledgerRepo = repository.NewLedgerRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	users := NewUserService(f.userRepo, f.supplierRepo, pharmacyRepo, auditRepo, txManager, f.tokens)
	users.(*userService).hashCost = bcrypt.MinCost
	f.users = users
	f.pharmacy = NewPharmacyService(pharmacyRepo, f.userRepo, f.ledgerRepo, auditRepo, txManager)
	f.products = NewProductService(f.productRepo, f.supplierRepo, pharmacyRepo, f.ledgerRepo, auditRepo, txManager)
	f.suppliers = NewSupplierService(f.supplierRepo, f.userRepo, f.productRepo, f.ledgerRepo, auditRepo, txManager)
	f.inventory = NewInventoryService(f.productRepo, pharmacyRepo, f.supplierRepo, f.ledgerRepo, auditRepo, txManager, f.events, f.observer)
	f.audit = NewAuditService(auditRepo)
	return f
}

// newUser stores an active account directly and returns its actor.
func (f *fixture) newUser(t *testing.T, username string, role model.Role) policy.Actor {
	t.Helper()
	u := &model.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "unused",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, f.userRepo.Create(context.Background(), u))
	return policy.Actor{UserID: u.ID, Role: role}
}

// newSupplierUser stores a supplier account with its linked supplier.
func (f *fixture) newSupplierUser(t *testing.T, username string) policy.Actor {
	t.Helper()
	actor := f.newUser(t, username, model.RoleSupplier)
	uid := actor.UserID
	s := &model.Supplier{Name: username, UserID: &uid}
	require.NoError(t, f.supplierRepo.Create(context.Background(), s))

	u, err := f.userRepo.FindByID(context.Background(), uid)
	require.NoError(t, err)
	u.SupplierID = &s.ID
	require.NoError(t, f.userRepo.Update(context.Background(), u))

	actor.SupplierID = &s.ID
	return actor
}

func (f *fixture) newPharmacy(t *testing.T, name string, director *uuid.UUID) *model.Pharmacy {
	t.Helper()
	p := &model.Pharmacy{Name: name, CurrentDate: time.Now().UTC(), DirectorID: director}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) newProduct(t *testing.T, name string, quantity int, price string, dosages ...string) *model.Product {
	t.Helper()
	if len(dosages) == 0 {
		dosages = []string{"10mg"}
	}
	p := &model.Product{
		Name:       name,
		Dosages:    datatypes.JSONSlice[string](dosages),
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
		ExpiryDate: time.Now().UTC().Add(365 * 24 * time.Hour),
	}
	require.NoError(t, f.productRepo.Create(context.Background(), p))
	return p
}

func (f *fixture) productQuantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.productRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}
