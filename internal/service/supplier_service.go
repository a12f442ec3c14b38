package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateSupplierRequest struct {
	Name   string     `json:"name" binding:"required"`
	UserID *uuid.UUID `json:"user_id"`
}

type UpdateSupplierRequest struct {
	Name *string `json:"name" binding:"omitempty,min=1"`
}

type SupplierResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	UserID    *uuid.UUID `json:"user_id"`
	Login     string     `json:"login,omitempty"` // linked user's email
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

type SupplierService interface {
	CreateSupplier(ctx context.Context, actor policy.Actor, req CreateSupplierRequest) (*SupplierResponse, error)
	GetSupplier(ctx context.Context, actor policy.Actor, id uuid.UUID) (*SupplierResponse, error)
	// ListSuppliers returns only suppliers backed by a supplier-role account.
	ListSuppliers(ctx context.Context, actor policy.Actor, offset, limit int) ([]SupplierResponse, int64, error)
	UpdateSupplier(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdateSupplierRequest) (*SupplierResponse, error)
	DeleteSupplier(ctx context.Context, actor policy.Actor, id uuid.UUID) error

	ListByProduct(ctx context.Context, actor policy.Actor, productID uuid.UUID) ([]SupplierResponse, error)
	ListByProductName(ctx context.Context, actor policy.Actor, name string) ([]SupplierResponse, error)
	ListByProductDosage(ctx context.Context, actor policy.Actor, dosage string) ([]SupplierResponse, error)
}

type supplierService struct {
	repo        repository.SupplierRepository
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	ledgerRepo  repository.LedgerRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewSupplierService(
	repo repository.SupplierRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	ledgerRepo repository.LedgerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) SupplierService {
	return &supplierService{
		repo:        repo,
		userRepo:    userRepo,
		productRepo: productRepo,
		ledgerRepo:  ledgerRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

func mapSupplierToResponse(s *model.Supplier) SupplierResponse {
	res := SupplierResponse{
		ID:        s.ID,
		Name:      s.Name,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
	if s.User != nil {
		res.Login = s.User.Email
	}
	return res
}

func mapSuppliers(suppliers []model.Supplier) []SupplierResponse {
	res := make([]SupplierResponse, 0, len(suppliers))
	for i := range suppliers {
		res = append(res, mapSupplierToResponse(&suppliers[i]))
	}
	return res
}

func (s *supplierService) CreateSupplier(ctx context.Context, actor policy.Actor, req CreateSupplierRequest) (*SupplierResponse, error) {
	if !policy.Allowed(actor, policy.SupplierWrite, nil) {
		return nil, fmt.Errorf("create supplier: %w", ErrForbidden)
	}

	supplier := &model.Supplier{Name: req.Name, UserID: req.UserID}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var user *model.User
		if req.UserID != nil {
			var err error
			user, err = s.userRepo.FindByID(txCtx, *req.UserID)
			if err != nil {
				return lookupErr("user", err)
			}
			if _, err := s.repo.FindByUserID(txCtx, user.ID); err == nil {
				return fmt.Errorf("user already has a supplier: %w", ErrConflict)
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up supplier: %w", err)
			}
		}

		if err := s.repo.Create(txCtx, supplier); err != nil {
			return fmt.Errorf("failed to create supplier: %w", err)
		}
		if user != nil {
			user.SupplierID = &supplier.ID
			if err := s.userRepo.Update(txCtx, user); err != nil {
				return fmt.Errorf("failed to link supplier: %w", err)
			}
			supplier.User = user
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionCreateSupplier, supplier.ID.String(), supplier.Name, req)
	})
	if err != nil {
		return nil, err
	}

	res := mapSupplierToResponse(supplier)
	return &res, nil
}

func (s *supplierService) GetSupplier(ctx context.Context, actor policy.Actor, id uuid.UUID) (*SupplierResponse, error) {
	if !policy.Allowed(actor, policy.SupplierRead, nil) {
		return nil, fmt.Errorf("read supplier: %w", ErrForbidden)
	}
	supplier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("supplier", err)
	}
	res := mapSupplierToResponse(supplier)
	return &res, nil
}

func (s *supplierService) ListSuppliers(ctx context.Context, actor policy.Actor, offset, limit int) ([]SupplierResponse, int64, error) {
	if !policy.Allowed(actor, policy.SupplierRead, nil) {
		return nil, 0, fmt.Errorf("list suppliers: %w", ErrForbidden)
	}
	offset, limit = normalizePage(offset, limit)

	suppliers, total, err := s.repo.ListLinked(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return mapSuppliers(suppliers), total, nil
}

func (s *supplierService) UpdateSupplier(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdateSupplierRequest) (*SupplierResponse, error) {
	if !policy.Allowed(actor, policy.SupplierWrite, nil) {
		return nil, fmt.Errorf("update supplier: %w", ErrForbidden)
	}

	var supplier *model.Supplier
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		supplier, err = s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr("supplier", err)
		}
		if req.Name != nil {
			supplier.Name = *req.Name
		}
		if err := s.repo.Update(txCtx, supplier); err != nil {
			return fmt.Errorf("failed to update supplier: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionUpdateSupplier, supplier.ID.String(), supplier.Name, req)
	})
	if err != nil {
		return nil, err
	}

	res := mapSupplierToResponse(supplier)
	return &res, nil
}

// DeleteSupplier removes the supplier and its ledger rows. Products and the
// linked account survive with their references cleared.
func (s *supplierService) DeleteSupplier(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if !policy.Allowed(actor, policy.SupplierWrite, nil) {
		return fmt.Errorf("delete supplier: %w", ErrForbidden)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		supplier, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr("supplier", err)
		}
		if err := s.ledgerRepo.DeleteBySupplier(txCtx, id); err != nil {
			return fmt.Errorf("failed to detach supplier stock: %w", err)
		}
		if err := s.productRepo.ClearPreferredSupplier(txCtx, id); err != nil {
			return fmt.Errorf("failed to detach products: %w", err)
		}
		if err := s.userRepo.ClearSupplier(txCtx, id); err != nil {
			return fmt.Errorf("failed to detach user: %w", err)
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete supplier: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionDeleteSupplier, id.String(), supplier.Name, nil)
	})
}

func (s *supplierService) ListByProduct(ctx context.Context, actor policy.Actor, productID uuid.UUID) ([]SupplierResponse, error) {
	if !policy.Allowed(actor, policy.SupplierRead, nil) {
		return nil, fmt.Errorf("list suppliers: %w", ErrForbidden)
	}
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, lookupErr("product", err)
	}
	suppliers, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return mapSuppliers(suppliers), nil
}

func (s *supplierService) ListByProductName(ctx context.Context, actor policy.Actor, name string) ([]SupplierResponse, error) {
	if !policy.Allowed(actor, policy.SupplierRead, nil) {
		return nil, fmt.Errorf("list suppliers: %w", ErrForbidden)
	}
	if strings.TrimSpace(name) == "" {
		return nil, invalid("product name must not be empty")
	}
	suppliers, err := s.repo.ListByProductName(ctx, name)
	if err != nil {
		return nil, err
	}
	return mapSuppliers(suppliers), nil
}

// ListByProductDosage scans every supplier ledger row and keeps suppliers
// stocking a product with a matching dosage.
func (s *supplierService) ListByProductDosage(ctx context.Context, actor policy.Actor, dosage string) ([]SupplierResponse, error) {
	if !policy.Allowed(actor, policy.SupplierRead, nil) {
		return nil, fmt.Errorf("list suppliers: %w", ErrForbidden)
	}
	if strings.TrimSpace(dosage) == "" {
		return nil, invalid("dosage must not be empty")
	}

	rows, err := s.repo.ListStocking(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	var matched []model.Supplier
	for _, row := range rows {
		if row.Supplier == nil || row.Product == nil || seen[row.SupplierID] {
			continue
		}
		if row.Product.HasDosage(dosage) {
			seen[row.SupplierID] = true
			matched = append(matched, *row.Supplier)
		}
	}
	return mapSuppliers(matched), nil
}
