package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

// JokeService serve piadas do store local e do provedor externo.
type JokeService struct {
	store    ports.JokeStore
	provider ports.JokeProvider
	pick     func(n int) int
}

func NewJokeService(store ports.JokeStore, provider ports.JokeProvider) (*JokeService, error) {
	if store == nil {
		return nil, fmt.Errorf("joke store is required")
	}
	return &JokeService{store: store, provider: provider, pick: rand.Intn}, nil
}

func (s *JokeService) Random(ctx context.Context) (domain.Joke, error) {
	jokes, err := s.store.ListJokes(ctx)
	if err != nil {
		return domain.Joke{}, err
	}
	if len(jokes) == 0 {
		return domain.Joke{}, domain.ErrJokeNotFound
	}
	return jokes[s.pick(len(jokes))], nil
}

func (s *JokeService) Get(ctx context.Context, id string) (domain.Joke, error) {
	return s.store.GetJoke(ctx, strings.TrimSpace(id))
}

// Fetch busca uma piada no provedor externo. Falhas são sempre devolvidas como
// *domain.ProviderError com o status a ser repassado ao cliente.
func (s *JokeService) Fetch(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", &domain.ProviderError{StatusCode: 503, Message: "joke provider is not configured"}
	}

	joke, err := s.provider.RandomJoke(ctx)
	if err != nil {
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			return "", perr
		}
		return "", &domain.ProviderError{StatusCode: 500, Message: fmt.Sprintf("An unexpected error occurred: %v", err)}
	}
	if strings.TrimSpace(joke) == "" {
		return "", &domain.ProviderError{StatusCode: 404, Message: "Joke not found in API response."}
	}
	return joke, nil
}
