// Command seed fills an empty database with a small demo chain: one admin, two
// directors, supplier accounts with their suppliers, pharmacies and products.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"pharmacy/internal/auth"
	"pharmacy/internal/config"
	"pharmacy/internal/database"
	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/repository"
	"pharmacy/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type seedProduct struct {
	name     string
	dosages  []string
	price    string
	quantity int
	expires  time.Duration
}

var products = []seedProduct{
	{"Paracetamol", []string{"500mg", "1g"}, "3.50", 400, 365 * 24 * time.Hour},
	{"Ibuprofen", []string{"200mg", "400mg"}, "4.20", 300, 540 * 24 * time.Hour},
	{"Amoxicillin", []string{"250mg", "500mg"}, "9.90", 150, 180 * 24 * time.Hour},
	{"Cetirizine", []string{"10mg"}, "5.10", 200, -30 * 24 * time.Hour},
	{"Omeprazole", []string{"20mg", "40mg"}, "7.75", 120, 90 * 24 * time.Hour},
}

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, db); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
	slog.Info("seed completed")
}

func run(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	userRepo := repository.NewUserRepository(db)
	pharmacyRepo := repository.NewPharmacyRepository(db)
	productRepo := repository.NewProductRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)
	tokens := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.TokenTTL)

	users := service.NewUserService(userRepo, supplierRepo, pharmacyRepo, auditRepo, txManager, tokens)
	pharmacies := service.NewPharmacyService(pharmacyRepo, userRepo, ledgerRepo, auditRepo, txManager)
	catalog := service.NewProductService(productRepo, supplierRepo, pharmacyRepo, ledgerRepo, auditRepo, txManager)
	inventory := service.NewInventoryService(productRepo, pharmacyRepo, supplierRepo, ledgerRepo, auditRepo, txManager, nil, nil)

	adminEmail := envOr("SEED_ADMIN_EMAIL", "admin@pharmacy.local")
	if _, err := userRepo.FindByEmail(ctx, adminEmail); err == nil {
		slog.Info("database already seeded, skipping", "admin", adminEmail)
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(envOr("SEED_ADMIN_PASSWORD", "admin12345")), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := &model.User{Email: adminEmail, Username: "admin", Password: string(hash), Role: model.RoleAdmin, IsActive: true}
	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	actor := policy.Actor{UserID: admin.ID, Role: model.RoleAdmin}

	var directors []uuid.UUID
	for _, name := range []string{"director1", "director2"} {
		u, err := users.CreateUser(ctx, actor, service.CreateUserRequest{
			Username: name,
			Email:    name + "@pharmacy.local",
			Password: "director123",
			Role:     string(model.RoleDirector),
		})
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		directors = append(directors, u.ID)
	}

	var suppliers []uuid.UUID
	for _, name := range []string{"medsupply", "pharmadirect"} {
		u, err := users.CreateUser(ctx, actor, service.CreateUserRequest{
			Username: name,
			Email:    name + "@suppliers.local",
			Password: "supplier123",
			Role:     string(model.RoleSupplier),
		})
		if err != nil {
			return fmt.Errorf("failed to create supplier account %s: %w", name, err)
		}
		suppliers = append(suppliers, *u.SupplierID)
	}

	now := time.Now().UTC()
	var stores []uuid.UUID
	for i, name := range []string{"Central Pharmacy", "Riverside Pharmacy", "Northgate Pharmacy"} {
		director := directors[i%len(directors)]
		p, err := pharmacies.CreatePharmacy(ctx, actor, service.CreatePharmacyRequest{
			Name:        name,
			CurrentDate: &now,
			DirectorID:  &director,
		})
		if err != nil {
			return fmt.Errorf("failed to create pharmacy %s: %w", name, err)
		}
		stores = append(stores, p.ID)
	}

	for i, sp := range products {
		preferred := suppliers[i%len(suppliers)]
		p, err := catalog.CreateProduct(ctx, actor, service.CreateProductRequest{
			Name:                sp.name,
			Dosages:             sp.dosages,
			Price:               decimal.RequireFromString(sp.price),
			Quantity:            sp.quantity,
			ExpiryDate:          now.Add(sp.expires),
			PreferredSupplierID: &preferred,
		})
		if err != nil {
			return fmt.Errorf("failed to create product %s: %w", sp.name, err)
		}

		for rank, supplierID := range suppliers {
			if _, err := inventory.LinkSupplierProduct(ctx, actor, supplierID, p.ID, 1000, rank+1); err != nil {
				return fmt.Errorf("failed to link %s to supplier: %w", sp.name, err)
			}
		}
		if _, err := inventory.Stock(ctx, actor, p.ID, stores[i%len(stores)], sp.quantity/4); err != nil {
			return fmt.Errorf("failed to stock %s: %w", sp.name, err)
		}
	}

	slog.Info("seeded demo data",
		"directors", len(directors),
		"suppliers", len(suppliers),
		"pharmacies", len(stores),
		"products", len(products),
	)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
