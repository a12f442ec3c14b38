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
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateProductRequest struct {
	Name                string          `json:"name" binding:"required"`
	Dosages             []string        `json:"dosages" binding:"required,min=1,dive,required"`
	Price               decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity" binding:"min=0"`
	ExpiryDate          time.Time       `json:"expiry_date" binding:"required"`
	PreferredSupplierID *uuid.UUID      `json:"preferred_supplier_id"`
}

// UpdateProductRequest is a partial update: nil fields are left untouched.
type UpdateProductRequest struct {
	Name                *string          `json:"name" binding:"omitempty,min=1"`
	Dosages             []string         `json:"dosages" binding:"omitempty,dive,required"`
	Price               *decimal.Decimal `json:"price"`
	Quantity            *int             `json:"quantity" binding:"omitempty,min=0"`
	ExpiryDate          *time.Time       `json:"expiry_date"`
	PreferredSupplierID *uuid.UUID       `json:"preferred_supplier_id"`
}

type ProductResponse struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	Dosages             []string        `json:"dosages"`
	Price               decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity"`
	ExpiryDate          time.Time       `json:"expiry_date"`
	PreferredSupplierID *uuid.UUID      `json:"preferred_supplier_id"`
	CreatedAt           string          `json:"created_at"`
	UpdatedAt           string          `json:"updated_at"`
}

// StockedProductResponse is a product as held by one pharmacy.
type StockedProductResponse struct {
	ProductResponse
	PharmacyQuantity int `json:"pharmacy_quantity"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, actor policy.Actor, req CreateProductRequest) (*ProductResponse, error)
	GetProduct(ctx context.Context, actor policy.Actor, id uuid.UUID) (*ProductResponse, error)
	ListProducts(ctx context.Context, actor policy.Actor, offset, limit int, search string) ([]ProductResponse, int64, error)
	UpdateProduct(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error)
	DeleteProduct(ctx context.Context, actor policy.Actor, id uuid.UUID) error

	ListOwnProducts(ctx context.Context, actor policy.Actor) ([]ProductResponse, error)
	ListByPharmacy(ctx context.Context, actor policy.Actor, pharmacyID uuid.UUID) ([]StockedProductResponse, error)
	ListBySupplier(ctx context.Context, actor policy.Actor, supplierID uuid.UUID) ([]ProductResponse, error)
	ListByDosage(ctx context.Context, actor policy.Actor, dosage string) ([]ProductResponse, error)
	// ListExpired returns products expiring before cutoff (now when nil),
	// optionally limited to one pharmacy's stock.
	ListExpired(ctx context.Context, actor policy.Actor, pharmacyID *uuid.UUID, cutoff *time.Time) ([]ProductResponse, error)
}

type productService struct {
	repo         repository.ProductRepository
	supplierRepo repository.SupplierRepository
	pharmacyRepo repository.PharmacyRepository
	ledgerRepo   repository.LedgerRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	now          func() time.Time
}

func NewProductService(
	repo repository.ProductRepository,
	supplierRepo repository.SupplierRepository,
	pharmacyRepo repository.PharmacyRepository,
	ledgerRepo repository.LedgerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) ProductService {
	return &productService{
		repo:         repo,
		supplierRepo: supplierRepo,
		pharmacyRepo: pharmacyRepo,
		ledgerRepo:   ledgerRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		now:          time.Now,
	}
}

func mapProductToResponse(p *model.Product) ProductResponse {
	dosages := make([]string, len(p.Dosages))
	copy(dosages, p.Dosages)
	return ProductResponse{
		ID:                  p.ID,
		Name:                p.Name,
		Dosages:             dosages,
		Price:               p.Price,
		Quantity:            p.Quantity,
		ExpiryDate:          p.ExpiryDate,
		PreferredSupplierID: p.PreferredSupplierID,
		CreatedAt:           p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           p.UpdatedAt.Format(time.RFC3339),
	}
}

func mapProducts(products []model.Product) []ProductResponse {
	res := make([]ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, mapProductToResponse(&products[i]))
	}
	return res
}

func cleanDosages(dosages []string) ([]string, error) {
	out := make([]string, 0, len(dosages))
	for _, d := range dosages {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, invalid("dosages must not be empty")
	}
	return out, nil
}

// checkPreferredSupplier enforces that suppliers only nominate themselves and
// that the nominated supplier exists.
func (s *productService) checkPreferredSupplier(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if actor.Role == model.RoleSupplier && (actor.SupplierID == nil || *actor.SupplierID != id) {
		return fmt.Errorf("suppliers may only nominate themselves: %w", ErrForbidden)
	}
	if _, err := s.supplierRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("preferred supplier %s does not exist", id)
		}
		return fmt.Errorf("failed to load supplier: %w", err)
	}
	return nil
}

func (s *productService) CreateProduct(ctx context.Context, actor policy.Actor, req CreateProductRequest) (*ProductResponse, error) {
	if !policy.Allowed(actor, policy.ProductCreate, nil) {
		return nil, fmt.Errorf("create product: %w", ErrForbidden)
	}
	dosages, err := cleanDosages(req.Dosages)
	if err != nil {
		return nil, err
	}
	if req.Price.IsNegative() {
		return nil, invalid("price must not be negative")
	}
	if req.Quantity < 0 {
		return nil, invalid("quantity must not be negative")
	}

	preferred := req.PreferredSupplierID
	if preferred == nil && actor.Role == model.RoleSupplier && actor.SupplierID != nil {
		own := *actor.SupplierID
		preferred = &own
	}

	product := &model.Product{
		Name:                req.Name,
		Dosages:             datatypes.JSONSlice[string](dosages),
		Price:               req.Price,
		Quantity:            req.Quantity,
		ExpiryDate:          req.ExpiryDate,
		PreferredSupplierID: preferred,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if preferred != nil {
			if err := s.checkPreferredSupplier(txCtx, actor, *preferred); err != nil {
				return err
			}
		}
		if err := s.repo.Create(txCtx, product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionCreateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return nil, err
	}

	res := mapProductToResponse(product)
	return &res, nil
}

func (s *productService) GetProduct(ctx context.Context, actor policy.Actor, id uuid.UUID) (*ProductResponse, error) {
	if !policy.Allowed(actor, policy.ProductRead, nil) {
		return nil, fmt.Errorf("read product: %w", ErrForbidden)
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("product", err)
	}
	res := mapProductToResponse(product)
	return &res, nil
}

func (s *productService) ListProducts(ctx context.Context, actor policy.Actor, offset, limit int, search string) ([]ProductResponse, int64, error) {
	if !policy.Allowed(actor, policy.ProductRead, nil) {
		return nil, 0, fmt.Errorf("list products: %w", ErrForbidden)
	}
	offset, limit = normalizePage(offset, limit)

	products, total, err := s.repo.List(ctx, offset, limit, search)
	if err != nil {
		return nil, 0, err
	}
	return mapProducts(products), total, nil
}

func (s *productService) UpdateProduct(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	var dosages []string
	if req.Dosages != nil {
		var err error
		if dosages, err = cleanDosages(req.Dosages); err != nil {
			return nil, err
		}
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, invalid("price must not be negative")
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return nil, invalid("quantity must not be negative")
	}

	var product *model.Product
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		product, err = s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr("product", err)
		}
		if !policy.Allowed(actor, policy.ProductUpdate, product.PreferredSupplierID) {
			return fmt.Errorf("update product: %w", ErrForbidden)
		}

		if req.PreferredSupplierID != nil {
			if err := s.checkPreferredSupplier(txCtx, actor, *req.PreferredSupplierID); err != nil {
				return err
			}
			product.PreferredSupplierID = req.PreferredSupplierID
		}
		if req.Name != nil {
			product.Name = *req.Name
		}
		if dosages != nil {
			product.Dosages = datatypes.JSONSlice[string](dosages)
		}
		if req.Price != nil {
			product.Price = *req.Price
		}
		if req.Quantity != nil {
			product.Quantity = *req.Quantity
		}
		if req.ExpiryDate != nil {
			product.ExpiryDate = *req.ExpiryDate
		}

		if err := s.repo.Update(txCtx, product); err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionUpdateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return nil, err
	}

	res := mapProductToResponse(product)
	return &res, nil
}

func (s *productService) DeleteProduct(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr("product", err)
		}
		if !policy.Allowed(actor, policy.ProductDelete, product.PreferredSupplierID) {
			return fmt.Errorf("delete product: %w", ErrForbidden)
		}
		if err := s.ledgerRepo.DeleteByProduct(txCtx, id); err != nil {
			return fmt.Errorf("failed to detach product stock: %w", err)
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionDeleteProduct, id.String(), product.Name, nil)
	})
}

func (s *productService) ListOwnProducts(ctx context.Context, actor policy.Actor) ([]ProductResponse, error) {
	if !policy.Allowed(actor, policy.ProductListOwn, nil) {
		return nil, fmt.Errorf("list own products: %w", ErrForbidden)
	}
	if actor.SupplierID == nil {
		return []ProductResponse{}, nil
	}
	products, err := s.repo.ListByPreferredSupplier(ctx, *actor.SupplierID)
	if err != nil {
		return nil, err
	}
	return mapProducts(products), nil
}

func (s *productService) requireVisiblePharmacy(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	pharmacy, err := s.pharmacyRepo.FindByID(ctx, id)
	if err != nil {
		return lookupErr("pharmacy", err)
	}
	if !policy.Allowed(actor, policy.PharmacyRead, pharmacy.DirectorID) {
		return fmt.Errorf("pharmacy: %w", ErrNotFound)
	}
	return nil
}

func (s *productService) ListByPharmacy(ctx context.Context, actor policy.Actor, pharmacyID uuid.UUID) ([]StockedProductResponse, error) {
	if err := s.requireVisiblePharmacy(ctx, actor, pharmacyID); err != nil {
		return nil, err
	}
	rows, err := s.ledgerRepo.ListPharmacyStock(ctx, pharmacyID)
	if err != nil {
		return nil, err
	}

	res := make([]StockedProductResponse, 0, len(rows))
	for _, row := range rows {
		if row.Product == nil {
			continue
		}
		res = append(res, StockedProductResponse{
			ProductResponse:  mapProductToResponse(row.Product),
			PharmacyQuantity: row.Quantity,
		})
	}
	return res, nil
}

// ListBySupplier returns the products the supplier holds stock rows for, most
// preferred first. Being a product's preferred supplier alone does not list it.
func (s *productService) ListBySupplier(ctx context.Context, actor policy.Actor, supplierID uuid.UUID) ([]ProductResponse, error) {
	if !policy.Allowed(actor, policy.ProductRead, nil) {
		return nil, fmt.Errorf("list supplier products: %w", ErrForbidden)
	}
	if _, err := s.supplierRepo.FindByID(ctx, supplierID); err != nil {
		return nil, lookupErr("supplier", err)
	}

	rows, err := s.ledgerRepo.ListSupplierStock(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		if row.Product != nil {
			products = append(products, *row.Product)
		}
	}
	return mapProducts(products), nil
}

// ListByDosage scans the whole catalog for a case-insensitive dosage match.
func (s *productService) ListByDosage(ctx context.Context, actor policy.Actor, dosage string) ([]ProductResponse, error) {
	if !policy.Allowed(actor, policy.ProductRead, nil) {
		return nil, fmt.Errorf("list products by dosage: %w", ErrForbidden)
	}
	if strings.TrimSpace(dosage) == "" {
		return nil, invalid("dosage must not be empty")
	}

	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var matched []model.Product
	for _, p := range products {
		if p.HasDosage(dosage) {
			matched = append(matched, p)
		}
	}
	return mapProducts(matched), nil
}

func (s *productService) ListExpired(ctx context.Context, actor policy.Actor, pharmacyID *uuid.UUID, cutoff *time.Time) ([]ProductResponse, error) {
	if !policy.Allowed(actor, policy.ProductRead, nil) {
		return nil, fmt.Errorf("list expired products: %w", ErrForbidden)
	}
	if pharmacyID != nil {
		if err := s.requireVisiblePharmacy(ctx, actor, *pharmacyID); err != nil {
			return nil, err
		}
	}

	at := s.now().UTC()
	if cutoff != nil {
		at = *cutoff
	}
	products, err := s.repo.ListExpired(ctx, at, pharmacyID)
	if err != nil {
		return nil, err
	}
	return mapProducts(products), nil
}
