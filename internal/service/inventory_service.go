package service

import (
	"context"
	"fmt"
	"log/slog"

	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer kinds reported to the TransferObserver and used as event names.
const (
	TransferStock   = "stock"
	TransferUnstock = "unstock"
	TransferLink    = "link"
	TransferUnlink  = "unlink"

	EventPharmacyStocked   = "pharmacy_stocked"
	EventPharmacyUnstocked = "pharmacy_unstocked"
	EventSupplierLinked    = "supplier_linked"
	EventSupplierUnlinked  = "supplier_unlinked"
)

// StockResult reports both sides of a completed transfer.
type StockResult struct {
	PharmacyID       uuid.UUID `json:"pharmacy_id"`
	ProductID        uuid.UUID `json:"product_id"`
	Quantity         int       `json:"quantity"`
	ProductRemaining int       `json:"product_remaining"`
	PharmacyQuantity int       `json:"pharmacy_quantity"`
}

type SupplierStockResponse struct {
	SupplierID uuid.UUID `json:"supplier_id"`
	ProductID  uuid.UUID `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Preference int       `json:"preference"`
}

type InventoryValueResponse struct {
	PharmacyID *uuid.UUID      `json:"pharmacy_id,omitempty"`
	Total      decimal.Decimal `json:"total"`
}

type InventoryService interface {
	// Stock moves quantity units from the product's chain-wide stock into the
	// pharmacy's ledger. Calls are not idempotent.
	Stock(ctx context.Context, actor policy.Actor, productID, pharmacyID uuid.UUID, quantity int) (*StockResult, error)
	// Unstock removes the pharmacy's whole ledger row for the product.
	Unstock(ctx context.Context, actor policy.Actor, pharmacyID, productID uuid.UUID) error
	LinkSupplierProduct(ctx context.Context, actor policy.Actor, supplierID, productID uuid.UUID, quantity, preference int) (*SupplierStockResponse, error)
	UnlinkSupplierProduct(ctx context.Context, actor policy.Actor, supplierID, productID uuid.UUID) error
	TotalInventoryValue(ctx context.Context, actor policy.Actor, pharmacyID *uuid.UUID) (*InventoryValueResponse, error)
}

type inventoryService struct {
	productRepo  repository.ProductRepository
	pharmacyRepo repository.PharmacyRepository
	supplierRepo repository.SupplierRepository
	ledgerRepo   repository.LedgerRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	events       EventPublisher
	observer     TransferObserver
}

// NewInventoryService wires the transfer engine. events and observer may be nil.
func NewInventoryService(
	productRepo repository.ProductRepository,
	pharmacyRepo repository.PharmacyRepository,
	supplierRepo repository.SupplierRepository,
	ledgerRepo repository.LedgerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	observer TransferObserver,
) InventoryService {
	if events == nil {
		events = noopPublisher{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &inventoryService{
		productRepo:  productRepo,
		pharmacyRepo: pharmacyRepo,
		supplierRepo: supplierRepo,
		ledgerRepo:   ledgerRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		events:       events,
		observer:     observer,
	}
}

// loadPharmacy hides pharmacies the actor may not act on behind ErrNotFound.
func (s *inventoryService) loadPharmacy(ctx context.Context, actor policy.Actor, action policy.Action, id uuid.UUID) (*model.Pharmacy, error) {
	pharmacy, err := s.pharmacyRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("pharmacy", err)
	}
	if !policy.Allowed(actor, action, pharmacy.DirectorID) {
		return nil, fmt.Errorf("pharmacy: %w", ErrNotFound)
	}
	return pharmacy, nil
}

func (s *inventoryService) Stock(ctx context.Context, actor policy.Actor, productID, pharmacyID uuid.UUID, quantity int) (*StockResult, error) {
	if quantity <= 0 {
		err := invalid("quantity must be positive, got %d", quantity)
		s.observer.ObserveTransfer(TransferStock, 0, err)
		return nil, err
	}

	result := &StockResult{PharmacyID: pharmacyID, ProductID: productID, Quantity: quantity}
	var director *uuid.UUID
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.productRepo.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			return lookupErr("product", err)
		}
		pharmacy, err := s.loadPharmacy(txCtx, actor, policy.InventoryStock, pharmacyID)
		if err != nil {
			return err
		}

		if quantity > product.Quantity {
			return fmt.Errorf("requested %d of %q, %d available: %w", quantity, product.Name, product.Quantity, ErrInsufficientStock)
		}

		remaining := product.Quantity - quantity
		if remaining < 0 {
			remaining = 0
		}
		if err := s.productRepo.UpdateQuantity(txCtx, productID, remaining); err != nil {
			return fmt.Errorf("failed to decrement product stock: %w", err)
		}
		if err := s.ledgerRepo.UpsertPharmacyStock(txCtx, pharmacyID, productID, quantity); err != nil {
			return fmt.Errorf("failed to update pharmacy stock: %w", err)
		}
		row, err := s.ledgerRepo.FindPharmacyStock(txCtx, pharmacyID, productID)
		if err != nil {
			return fmt.Errorf("failed to read pharmacy stock: %w", err)
		}

		result.ProductRemaining = remaining
		result.PharmacyQuantity = row.Quantity
		director = pharmacy.DirectorID
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionStockPharmacy, pharmacy.ID.String(), pharmacy.Name, result)
	})
	s.observer.ObserveTransfer(TransferStock, quantity, err)
	if err != nil {
		slog.InfoContext(ctx, "stock transfer rejected",
			"product_id", productID, "pharmacy_id", pharmacyID, "quantity", quantity, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "pharmacy stocked",
		"product_id", productID, "pharmacy_id", pharmacyID, "quantity", quantity,
		"product_remaining", result.ProductRemaining)
	s.events.Publish(EventPharmacyStocked, policy.PharmacyRead, director, result)
	return result, nil
}

func (s *inventoryService) Unstock(ctx context.Context, actor policy.Actor, pharmacyID, productID uuid.UUID) error {
	var removed *model.PharmacyProduct
	var director *uuid.UUID
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pharmacy, err := s.loadPharmacy(txCtx, actor, policy.InventoryUnstock, pharmacyID)
		if err != nil {
			return err
		}
		row, err := s.ledgerRepo.FindPharmacyStock(txCtx, pharmacyID, productID)
		if err != nil {
			return lookupErr("pharmacy stock", err)
		}
		n, err := s.ledgerRepo.DeletePharmacyStock(txCtx, pharmacyID, productID)
		if err != nil {
			return fmt.Errorf("failed to remove pharmacy stock: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("pharmacy stock: %w", ErrNotFound)
		}
		removed = row
		director = pharmacy.DirectorID
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionUnstockPharmacy, pharmacy.ID.String(), pharmacy.Name,
			map[string]interface{}{"product_id": productID, "quantity": row.Quantity})
	})

	units := 0
	if removed != nil {
		units = removed.Quantity
	}
	s.observer.ObserveTransfer(TransferUnstock, units, err)
	if err != nil {
		return err
	}

	s.events.Publish(EventPharmacyUnstocked, policy.PharmacyRead, director, map[string]interface{}{
		"pharmacy_id": pharmacyID,
		"product_id":  productID,
		"quantity":    units,
	})
	return nil
}

func (s *inventoryService) LinkSupplierProduct(ctx context.Context, actor policy.Actor, supplierID, productID uuid.UUID, quantity, preference int) (*SupplierStockResponse, error) {
	if preference < model.MinSupplierPreference || preference > model.MaxSupplierPreference {
		return nil, invalid("preference must be between %d and %d, got %d",
			model.MinSupplierPreference, model.MaxSupplierPreference, preference)
	}
	if quantity < 0 {
		return nil, invalid("quantity must not be negative, got %d", quantity)
	}
	if !policy.Allowed(actor, policy.SupplierStock, &supplierID) {
		return nil, fmt.Errorf("link supplier product: %w", ErrForbidden)
	}

	var res *SupplierStockResponse
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		supplier, err := s.supplierRepo.FindByID(txCtx, supplierID)
		if err != nil {
			return lookupErr("supplier", err)
		}
		if _, err := s.productRepo.FindByID(txCtx, productID); err != nil {
			return lookupErr("product", err)
		}
		if err := s.ledgerRepo.UpsertSupplierStock(txCtx, supplierID, productID, quantity, preference); err != nil {
			return fmt.Errorf("failed to update supplier stock: %w", err)
		}
		row, err := s.ledgerRepo.FindSupplierStock(txCtx, supplierID, productID)
		if err != nil {
			return fmt.Errorf("failed to read supplier stock: %w", err)
		}
		res = &SupplierStockResponse{
			SupplierID: row.SupplierID,
			ProductID:  row.ProductID,
			Quantity:   row.Quantity,
			Preference: row.Preference,
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionLinkSupplier, supplier.ID.String(), supplier.Name,
			map[string]interface{}{"product_id": productID, "quantity": quantity, "preference": preference})
	})
	s.observer.ObserveTransfer(TransferLink, quantity, err)
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventSupplierLinked, policy.SupplierRead, nil, res)
	return res, nil
}

func (s *inventoryService) UnlinkSupplierProduct(ctx context.Context, actor policy.Actor, supplierID, productID uuid.UUID) error {
	if !policy.Allowed(actor, policy.SupplierStock, &supplierID) {
		return fmt.Errorf("unlink supplier product: %w", ErrForbidden)
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		supplier, err := s.supplierRepo.FindByID(txCtx, supplierID)
		if err != nil {
			return lookupErr("supplier", err)
		}
		n, err := s.ledgerRepo.DeleteSupplierStock(txCtx, supplierID, productID)
		if err != nil {
			return fmt.Errorf("failed to remove supplier stock: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("supplier stock: %w", ErrNotFound)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionUnlinkSupplier, supplier.ID.String(), supplier.Name,
			map[string]interface{}{"product_id": productID})
	})
	s.observer.ObserveTransfer(TransferUnlink, 0, err)
	if err != nil {
		return err
	}

	s.events.Publish(EventSupplierUnlinked, policy.SupplierRead, nil, map[string]interface{}{
		"supplier_id": supplierID,
		"product_id":  productID,
	})
	return nil
}

// TotalInventoryValue sums price times the product's chain-wide quantity. With
// a pharmacy it only covers products that pharmacy stocks, but still multiplies
// by the chain-wide quantity rather than the pharmacy's ledger quantity.
func (s *inventoryService) TotalInventoryValue(ctx context.Context, actor policy.Actor, pharmacyID *uuid.UUID) (*InventoryValueResponse, error) {
	var products []model.Product
	if pharmacyID != nil {
		if _, err := s.loadPharmacy(ctx, actor, policy.InventoryValue, *pharmacyID); err != nil {
			return nil, err
		}
		rows, err := s.ledgerRepo.ListPharmacyStock(ctx, *pharmacyID)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.Product != nil {
				products = append(products, *row.Product)
			}
		}
	} else {
		if !policy.Allowed(actor, policy.InventoryValue, nil) {
			return nil, fmt.Errorf("inventory value: %w", ErrForbidden)
		}
		var err error
		if products, err = s.productRepo.ListAll(ctx); err != nil {
			return nil, err
		}
	}

	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return &InventoryValueResponse{PharmacyID: pharmacyID, Total: total}, nil
}
