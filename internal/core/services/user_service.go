package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

const (
	maxPasswordBytes = 72
	defaultPageSize  = 10
	maxPageSize      = 100
)

// UserService encapsula o CRUD de usuários sobre um UserStore.
type UserService struct {
	store ports.UserStore
	now   func() time.Time
}

func NewUserService(store ports.UserStore, clock func() time.Time) (*UserService, error) {
	if store == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &UserService{store: store, now: clock}, nil
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.User{}, fmt.Errorf("%w: name is required", domain.ErrInvalidUser)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if in.Role == "" {
		in.Role = domain.RoleAPIUser
	}
	if !in.Role.Valid() {
		return domain.User{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidUser, in.Role)
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now().UTC()
	user, err := s.store.CreateUser(ctx, domain.User{
		ID:             uuid.NewString(),
		Username:       name,
		Email:          email,
		HashedPassword: hashed,
		Role:           in.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	return s.store.GetUser(ctx, strings.TrimSpace(id))
}

// List devolve uma página de usuários e o total armazenado. Página começa em 1.
func (s *UserService) List(ctx context.Context, page, pageSize int) ([]domain.User, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.store.ListUsers(ctx, (page-1)*pageSize, pageSize)
}

func (s *UserService) Update(ctx context.Context, id string, update domain.UserUpdate) (domain.User, error) {
	if update.Empty() {
		return domain.User{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidUser)
	}
	if update.Username != nil {
		name := strings.TrimSpace(*update.Username)
		if name == "" {
			return domain.User{}, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidUser)
		}
		update.Username = &name
	}
	if update.Email != nil {
		email, err := normalizeEmail(*update.Email)
		if err != nil {
			return domain.User{}, err
		}
		update.Email = &email
	}
	if update.Role != nil && !update.Role.Valid() {
		return domain.User{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidUser, *update.Role)
	}
	return s.store.UpdateUser(ctx, strings.TrimSpace(id), update, s.now().UTC())
}

func (s *UserService) Delete(ctx context.Context, id string) (domain.User, error) {
	return s.store.DeleteUser(ctx, strings.TrimSpace(id))
}

// VerifyPassword compara a senha em texto puro com o hash armazenado.
func VerifyPassword(user domain.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) == nil
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required", domain.ErrInvalidUser)
	}
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("%w: password exceeds maximum length of %d bytes", domain.ErrInvalidUser, maxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: invalid email %q", domain.ErrInvalidUser, raw)
	}
	return strings.ToLower(addr.Address), nil
}
