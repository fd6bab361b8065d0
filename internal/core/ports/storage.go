// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

// PolicyStore persiste as políticas de limite por recurso.
type PolicyStore interface {
	// FindPolicy returns domain.ErrPolicyNotFound when resourceID has no policy.
	FindPolicy(ctx context.Context, resourceID string) (domain.Policy, error)
	// UpdatePolicy returns domain.ErrUpdateFailed when no row was changed.
	UpdatePolicy(ctx context.Context, policyID string, maxCount int) (domain.Policy, error)
	ListPolicies(ctx context.Context) ([]domain.Policy, error)
	UpsertPolicy(ctx context.Context, policy domain.Policy) (domain.Policy, error)
}

// RequestLogStore é o log append-only de requisições por sujeito e recurso.
type RequestLogStore interface {
	CountSince(ctx context.Context, subjectID, resourceID string, since time.Time) (int64, error)
	Append(ctx context.Context, entry domain.LogEntry) error
	// LatestResource returns "" when the subject has no logged requests.
	LatestResource(ctx context.Context, subjectID string) (string, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]domain.User, int, error)
	UpdateUser(ctx context.Context, id string, update domain.UserUpdate, at time.Time) (domain.User, error)
	DeleteUser(ctx context.Context, id string) (domain.User, error)
}

type JokeStore interface {
	CreateJoke(ctx context.Context, joke domain.Joke) (domain.Joke, error)
	GetJoke(ctx context.Context, id string) (domain.Joke, error)
	ListJokes(ctx context.Context) ([]domain.Joke, error)
}

// LimiterStorage agrega os stores usados pelo rate limiter.
type LimiterStorage interface {
	PolicyStore
	RequestLogStore
	Close() error
}

// Storage agrega todos os stores servidos por um mesmo backend relacional.
type Storage interface {
	LimiterStorage
	UserStore
	JokeStore
}
