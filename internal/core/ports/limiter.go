// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

type RateLimiter interface {
	Check(ctx context.Context, subjectID, resourceID string) (domain.Verdict, error)
	CheckHandler(ctx context.Context, subjectID, handlerID string) (domain.Verdict, error)
	SetLimit(ctx context.Context, selector domain.Selector, newLimit int) (domain.Outcome, error)
	ListPolicies(ctx context.Context) ([]domain.Policy, error)
	Record(ctx context.Context, subjectID, resourceID string) error
}

type HandlerRegistry interface {
	Resolve(handlerID string) string
}

type JokeProvider interface {
	RandomJoke(ctx context.Context) (string, error)
}
