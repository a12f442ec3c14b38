package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sentinel errors returned (wrapped) by every service. Handlers map them to
// HTTP status codes with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("permission denied")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
)

// lookupErr converts gorm.ErrRecordNotFound into ErrNotFound and wraps any
// other storage failure.
func lookupErr(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// EventPublisher broadcasts domain events to live clients. Only clients
// allowed to perform action on a resource owned by owner receive the event.
type EventPublisher interface {
	Publish(event string, action policy.Action, owner *uuid.UUID, data interface{})
}

// TransferObserver records the outcome of inventory transfers.
type TransferObserver interface {
	ObserveTransfer(kind string, units int, err error)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, policy.Action, *uuid.UUID, interface{}) {}

type noopObserver struct{}

func (noopObserver) ObserveTransfer(string, int, error) {}

// writeAudit stores one audit row through the transaction carried by ctx.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actor policy.Actor, action, entityID, entityName string, details interface{}) error {
	var uid *uuid.UUID
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		uid = &id
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// normalizePage applies the default window of 100 rows.
func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 100
	}
	return offset, limit
}
