// Package jokes implementa o cliente HTTP do provedor externo de piadas.
package jokes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

const maxBodyBytes = 1 << 20

type Provider struct {
	url    string
	client *http.Client
}

var _ ports.JokeProvider = (*Provider)(nil)

func NewProvider(url string, timeout time.Duration) (*Provider, error) {
	if url == "" {
		return nil, fmt.Errorf("joke provider url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Provider{url: url, client: &http.Client{Timeout: timeout}}, nil
}

type randomJokeResponse struct {
	Joke string `json:"joke"`
}

// RandomJoke devolve o texto da piada ou um *domain.ProviderError. Uma resposta
// sem o campo joke devolve string vazia e nenhum erro.
func (p *Provider) RandomJoke(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", &domain.ProviderError{StatusCode: http.StatusInternalServerError, Message: fmt.Sprintf("An unexpected error occurred: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &domain.ProviderError{StatusCode: http.StatusInternalServerError, Message: fmt.Sprintf("Network error: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", &domain.ProviderError{StatusCode: resp.StatusCode, Message: "Failed to fetch joke from API"}
	}

	var body randomJokeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return "", &domain.ProviderError{StatusCode: http.StatusInternalServerError, Message: fmt.Sprintf("An unexpected error occurred: %v", err)}
	}
	return body.Joke, nil
}
