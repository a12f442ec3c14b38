package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreatePharmacyRequest struct {
	Name        string     `json:"name" binding:"required"`
	CurrentDate *time.Time `json:"current_date"`
	DirectorID  *uuid.UUID `json:"director_id"` // honoured for admins only
}

// UpdatePharmacyRequest is a partial update: nil fields are left untouched.
type UpdatePharmacyRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=1"`
	CurrentDate *time.Time `json:"current_date"`
}

type SetPharmacyDateRequest struct {
	CurrentDate time.Time `json:"current_date" binding:"required"`
}

// ReassignDirectorRequest clears the owner when DirectorID is null.
type ReassignDirectorRequest struct {
	DirectorID *uuid.UUID `json:"director_id"`
}

type PharmacyResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	CurrentDate time.Time  `json:"current_date"`
	DirectorID  *uuid.UUID `json:"director_id"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

type PharmacyService interface {
	CreatePharmacy(ctx context.Context, actor policy.Actor, req CreatePharmacyRequest) (*PharmacyResponse, error)
	GetPharmacy(ctx context.Context, actor policy.Actor, id uuid.UUID) (*PharmacyResponse, error)
	ListPharmacies(ctx context.Context, actor policy.Actor, offset, limit int) ([]PharmacyResponse, int64, error)
	UpdatePharmacy(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdatePharmacyRequest) (*PharmacyResponse, error)
	DeletePharmacy(ctx context.Context, actor policy.Actor, id uuid.UUID) error
	SetCurrentDate(ctx context.Context, actor policy.Actor, id uuid.UUID, date time.Time) (*PharmacyResponse, error)
	ReassignDirector(ctx context.Context, actor policy.Actor, id uuid.UUID, directorID *uuid.UUID) (*PharmacyResponse, error)
}

type pharmacyService struct {
	repo       repository.PharmacyRepository
	userRepo   repository.UserRepository
	ledgerRepo repository.LedgerRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	now        func() time.Time
}

func NewPharmacyService(
	repo repository.PharmacyRepository,
	userRepo repository.UserRepository,
	ledgerRepo repository.LedgerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) PharmacyService {
	return &pharmacyService{
		repo:       repo,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		now:        time.Now,
	}
}

func mapPharmacyToResponse(p *model.Pharmacy) *PharmacyResponse {
	return &PharmacyResponse{
		ID:          p.ID,
		Name:        p.Name,
		CurrentDate: p.CurrentDate,
		DirectorID:  p.DirectorID,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

// loadVisible returns the pharmacy when actor may perform action on it. A
// denied ownership check is reported as ErrNotFound so that other directors'
// pharmacies are indistinguishable from missing ones.
func (s *pharmacyService) loadVisible(ctx context.Context, actor policy.Actor, action policy.Action, id uuid.UUID) (*model.Pharmacy, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("pharmacy", err)
	}
	if !policy.Allowed(actor, action, p.DirectorID) {
		return nil, fmt.Errorf("pharmacy: %w", ErrNotFound)
	}
	return p, nil
}

func (s *pharmacyService) requireDirector(ctx context.Context, id uuid.UUID) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("director: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to load director: %w", err)
	}
	if user.Role != model.RoleDirector {
		return invalid("user %s is not a director", id)
	}
	return nil
}

func (s *pharmacyService) CreatePharmacy(ctx context.Context, actor policy.Actor, req CreatePharmacyRequest) (*PharmacyResponse, error) {
	if !policy.Allowed(actor, policy.PharmacyCreate, nil) {
		return nil, fmt.Errorf("create pharmacy: %w", ErrForbidden)
	}

	pharmacy := &model.Pharmacy{Name: req.Name, CurrentDate: s.now()}
	if req.CurrentDate != nil {
		pharmacy.CurrentDate = *req.CurrentDate
	}

	switch actor.Role {
	case model.RoleDirector:
		owner := actor.UserID
		pharmacy.DirectorID = &owner
	case model.RoleAdmin:
		pharmacy.DirectorID = req.DirectorID
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if actor.Role == model.RoleAdmin && pharmacy.DirectorID != nil {
			if err := s.requireDirector(txCtx, *pharmacy.DirectorID); err != nil {
				return err
			}
		}
		if err := s.repo.Create(txCtx, pharmacy); err != nil {
			return fmt.Errorf("failed to create pharmacy: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionCreatePharmacy, pharmacy.ID.String(), pharmacy.Name,
			map[string]interface{}{"director_id": pharmacy.DirectorID, "current_date": pharmacy.CurrentDate})
	})
	if err != nil {
		return nil, err
	}

	return mapPharmacyToResponse(pharmacy), nil
}

func (s *pharmacyService) GetPharmacy(ctx context.Context, actor policy.Actor, id uuid.UUID) (*PharmacyResponse, error) {
	p, err := s.loadVisible(ctx, actor, policy.PharmacyRead, id)
	if err != nil {
		return nil, err
	}
	return mapPharmacyToResponse(p), nil
}

func (s *pharmacyService) ListPharmacies(ctx context.Context, actor policy.Actor, offset, limit int) ([]PharmacyResponse, int64, error) {
	if !policy.Allowed(actor, policy.PharmacyList, nil) {
		return nil, 0, fmt.Errorf("list pharmacies: %w", ErrForbidden)
	}
	offset, limit = normalizePage(offset, limit)

	var owner *uuid.UUID
	if actor.Role == model.RoleDirector {
		id := actor.UserID
		owner = &id
	}

	pharmacies, total, err := s.repo.List(ctx, owner, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]PharmacyResponse, 0, len(pharmacies))
	for i := range pharmacies {
		res = append(res, *mapPharmacyToResponse(&pharmacies[i]))
	}
	return res, total, nil
}

func (s *pharmacyService) UpdatePharmacy(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdatePharmacyRequest) (*PharmacyResponse, error) {
	var pharmacy *model.Pharmacy
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		pharmacy, err = s.loadVisible(txCtx, actor, policy.PharmacyUpdate, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			pharmacy.Name = *req.Name
		}
		if req.CurrentDate != nil {
			pharmacy.CurrentDate = *req.CurrentDate
		}
		if err := s.repo.Update(txCtx, pharmacy); err != nil {
			return fmt.Errorf("failed to update pharmacy: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionUpdatePharmacy, pharmacy.ID.String(), pharmacy.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return mapPharmacyToResponse(pharmacy), nil
}

func (s *pharmacyService) DeletePharmacy(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pharmacy, err := s.loadVisible(txCtx, actor, policy.PharmacyDelete, id)
		if err != nil {
			return err
		}
		if err := s.ledgerRepo.DeleteByPharmacy(txCtx, id); err != nil {
			return fmt.Errorf("failed to detach pharmacy stock: %w", err)
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete pharmacy: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionDeletePharmacy, id.String(), pharmacy.Name, nil)
	})
}

func (s *pharmacyService) SetCurrentDate(ctx context.Context, actor policy.Actor, id uuid.UUID, date time.Time) (*PharmacyResponse, error) {
	var pharmacy *model.Pharmacy
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		pharmacy, err = s.loadVisible(txCtx, actor, policy.PharmacySetDate, id)
		if err != nil {
			return err
		}
		previous := pharmacy.CurrentDate
		pharmacy.CurrentDate = date
		if err := s.repo.Update(txCtx, pharmacy); err != nil {
			return fmt.Errorf("failed to set pharmacy date: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionSetPharmacyDate, pharmacy.ID.String(), pharmacy.Name,
			map[string]interface{}{"from": previous, "to": date})
	})
	if err != nil {
		return nil, err
	}
	return mapPharmacyToResponse(pharmacy), nil
}

func (s *pharmacyService) ReassignDirector(ctx context.Context, actor policy.Actor, id uuid.UUID, directorID *uuid.UUID) (*PharmacyResponse, error) {
	if !policy.Allowed(actor, policy.PharmacyReassign, nil) {
		return nil, fmt.Errorf("reassign director: %w", ErrForbidden)
	}

	var pharmacy *model.Pharmacy
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		pharmacy, err = s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr("pharmacy", err)
		}
		if directorID != nil {
			if err := s.requireDirector(txCtx, *directorID); err != nil {
				return err
			}
		}
		previous := pharmacy.DirectorID
		pharmacy.DirectorID = directorID
		if err := s.repo.Update(txCtx, pharmacy); err != nil {
			return fmt.Errorf("failed to reassign director: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionReassignDirector, pharmacy.ID.String(), pharmacy.Name,
			map[string]interface{}{"from": previous, "to": directorID})
	})
	if err != nil {
		return nil, err
	}
	return mapPharmacyToResponse(pharmacy), nil
}
