package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pharmacy/internal/auth"
	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
	IsActive *bool  `json:"is_active"`
}

// UpdateUserRequest is a partial update: nil fields are left untouched.
type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=1"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID         uuid.UUID  `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Role       model.Role `json:"role"`
	IsActive   bool       `json:"is_active"`
	SupplierID *uuid.UUID `json:"supplier_id"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*UserResponse, error)
	CreateUser(ctx context.Context, actor policy.Actor, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Me(ctx context.Context, actor policy.Actor) (*UserResponse, error)
	GetUserByID(ctx context.Context, actor policy.Actor, id uuid.UUID) (*UserResponse, error)
	ListUsers(ctx context.Context, actor policy.Actor, offset, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, actor policy.Actor, id uuid.UUID) error
	// ResolveActor loads the caller behind a verified token.
	ResolveActor(ctx context.Context, userID uuid.UUID) (policy.Actor, error)
}

type userService struct {
	repo         repository.UserRepository
	supplierRepo repository.SupplierRepository
	pharmacyRepo repository.PharmacyRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	tokens       *auth.TokenManager
	hashCost     int
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	supplierRepo repository.SupplierRepository,
	pharmacyRepo repository.PharmacyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	tokens *auth.TokenManager,
) UserService {
	return &userService{
		repo:         repo,
		supplierRepo: supplierRepo,
		pharmacyRepo: pharmacyRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		tokens:       tokens,
		hashCost:     bcrypt.DefaultCost,
	}
}

func mapUserToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		IsActive:   user.IsActive,
		SupplierID: user.SupplierID,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  user.UpdatedAt.Format(time.RFC3339),
	}
}

// Register is the public sign-up path. Admin accounts can only be created by
// another admin, so a requested admin role becomes director.
func (s *userService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	role := model.RoleDirector
	if req.Role != "" {
		parsed, err := model.ParseRole(req.Role)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
		}
		role = parsed
	}
	if role == model.RoleAdmin {
		role = model.RoleDirector
	}

	return s.createUser(ctx, policy.Actor{}, req.Username, req.Email, req.Password, role, true)
}

func (s *userService) CreateUser(ctx context.Context, actor policy.Actor, req CreateUserRequest) (*UserResponse, error) {
	if !policy.Allowed(actor, policy.UserManage, nil) {
		return nil, fmt.Errorf("create user: %w", ErrForbidden)
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return s.createUser(ctx, actor, req.Username, req.Email, req.Password, role, active)
}

func (s *userService) createUser(ctx context.Context, actor policy.Actor, username, email, password string, role model.Role, active bool) (*UserResponse, error) {
	if len(password) < 8 {
		return nil, invalid("password must be at least 8 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
		IsActive: active,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkUnique(txCtx, uuid.Nil, username, email); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if role == model.RoleSupplier {
			if err := s.ensureSupplier(txCtx, actor, user); err != nil {
				return err
			}
		}
		auditActor := actor
		if auditActor.UserID == uuid.Nil {
			auditActor.UserID = user.ID
		}
		return writeAudit(txCtx, s.auditRepo, auditActor, model.ActionCreateUser, user.ID.String(), user.Username,
			map[string]interface{}{"email": user.Email, "role": user.Role})
	})
	if err != nil {
		return nil, err
	}

	return mapUserToResponse(user), nil
}

func (s *userService) checkUnique(ctx context.Context, self uuid.UUID, username, email string) error {
	if username != "" {
		if existing, err := s.repo.FindByUsername(ctx, username); err == nil && existing.ID != self {
			return fmt.Errorf("username already exists: %w", ErrConflict)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check username: %w", err)
		}
	}
	if email != "" {
		if existing, err := s.repo.FindByEmail(ctx, email); err == nil && existing.ID != self {
			return fmt.Errorf("email already exists: %w", ErrConflict)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}
	}
	return nil
}

// ensureSupplier links user to exactly one Supplier, creating it on first call.
func (s *userService) ensureSupplier(ctx context.Context, actor policy.Actor, user *model.User) error {
	if user.SupplierID != nil {
		if _, err := s.supplierRepo.FindByID(ctx, *user.SupplierID); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load linked supplier: %w", err)
		}
	}

	existing, err := s.supplierRepo.FindByUserID(ctx, user.ID)
	switch {
	case err == nil:
		user.SupplierID = &existing.ID
		return s.repo.Update(ctx, user)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to look up supplier: %w", err)
	}

	userID := user.ID
	supplier := &model.Supplier{Name: user.Username, UserID: &userID}
	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return fmt.Errorf("failed to provision supplier: %w", err)
	}
	user.SupplierID = &supplier.ID
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to link supplier: %w", err)
	}

	slog.InfoContext(ctx, "supplier provisioned", "user_id", user.ID, "supplier_id", supplier.ID)
	return writeAudit(ctx, s.auditRepo, actor, model.ActionProvisionSupplier, supplier.ID.String(), supplier.Name,
		map[string]interface{}{"user_id": user.ID})
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user is inactive: %w", ErrForbidden)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresAt: time.Now().Add(s.tokens.TTL()),
	}, nil
}

func (s *userService) Me(ctx context.Context, actor policy.Actor) (*UserResponse, error) {
	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupErr("user", err)
	}
	return mapUserToResponse(user), nil
}

func (s *userService) GetUserByID(ctx context.Context, actor policy.Actor, id uuid.UUID) (*UserResponse, error) {
	if id != actor.UserID && !policy.Allowed(actor, policy.UserManage, nil) {
		return nil, fmt.Errorf("read user: %w", ErrForbidden)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("user", err)
	}
	return mapUserToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, actor policy.Actor, offset, limit int) ([]UserResponse, int64, error) {
	if !policy.Allowed(actor, policy.UserManage, nil) {
		return nil, 0, fmt.Errorf("list users: %w", ErrForbidden)
	}
	offset, limit = normalizePage(offset, limit)

	users, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapUserToResponse(&users[i]))
	}
	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	if !policy.Allowed(actor, policy.UserManage, nil) {
		return nil, fmt.Errorf("update user: %w", ErrForbidden)
	}

	var role model.Role
	if req.Role != nil {
		parsed, err := model.ParseRole(*req.Role)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
		}
		role = parsed
	}

	var hashed string
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return nil, invalid("password must be at least 8 characters")
		}
		h, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hashed = string(h)
	}

	var user *model.User
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr("user", err)
		}

		var username, email string
		if req.Username != nil && *req.Username != user.Username {
			username = *req.Username
		}
		if req.Email != nil && *req.Email != user.Email {
			email = *req.Email
		}
		if err := s.checkUnique(txCtx, user.ID, username, email); err != nil {
			return err
		}
		if username != "" {
			user.Username = username
		}
		if email != "" {
			user.Email = email
		}
		if hashed != "" {
			user.Password = hashed
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if role != "" {
			user.Role = role
		}

		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		if user.Role == model.RoleSupplier {
			if err := s.ensureSupplier(txCtx, actor, user); err != nil {
				return err
			}
		}

		return writeAudit(txCtx, s.auditRepo, actor, model.ActionUpdateUser, user.ID.String(), user.Username,
			map[string]interface{}{"role": user.Role, "is_active": user.IsActive})
	})
	if err != nil {
		return nil, err
	}

	return mapUserToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if id == actor.UserID {
		return fmt.Errorf("cannot delete own account: %w", ErrForbidden)
	}
	if !policy.Allowed(actor, policy.UserDelete, &id) {
		return fmt.Errorf("delete user: %w", ErrForbidden)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr("user", err)
		}
		if err := s.pharmacyRepo.ClearDirector(txCtx, id); err != nil {
			return fmt.Errorf("failed to detach pharmacies: %w", err)
		}
		if err := s.supplierRepo.ClearUser(txCtx, id); err != nil {
			return fmt.Errorf("failed to detach supplier: %w", err)
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionDeleteUser, id.String(), user.Username, nil)
	})
}

func (s *userService) ResolveActor(ctx context.Context, userID uuid.UUID) (policy.Actor, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Actor{}, fmt.Errorf("unknown user: %w", ErrUnauthorized)
		}
		return policy.Actor{}, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return policy.Actor{}, fmt.Errorf("user is inactive: %w", ErrForbidden)
	}
	if !user.Role.Valid() {
		return policy.Actor{}, fmt.Errorf("user has unknown role %q: %w", user.Role, ErrForbidden)
	}
	return policy.Actor{UserID: user.ID, Role: user.Role, SupplierID: user.SupplierID}, nil
}
