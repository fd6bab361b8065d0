package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

type JokeService interface {
	Random(ctx context.Context) (domain.Joke, error)
	Get(ctx context.Context, id string) (domain.Joke, error)
	Fetch(ctx context.Context) (string, error)
}

type JokeHandler struct {
	jokes JokeService
}

func NewJokeHandler(jokes JokeService) *JokeHandler {
	return &JokeHandler{jokes: jokes}
}

type jokeResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toJokeResponse(j domain.Joke) jokeResponse {
	return jokeResponse{ID: j.ID, Text: j.Text, Source: j.Source, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt}
}

func (h *JokeHandler) Random(w http.ResponseWriter, r *http.Request) {
	joke, err := h.jokes.Random(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJokeResponse(joke))
}

func (h *JokeHandler) Get(w http.ResponseWriter, r *http.Request) {
	joke, err := h.jokes.Get(r.Context(), chi.URLParam(r, "jokeId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJokeResponse(joke))
}

type providerErrorBody struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

type externalJokeResponse struct {
	Joke  string             `json:"joke"`
	Error *providerErrorBody `json:"error"`
}

// External busca uma piada no provedor externo. Em caso de falha o corpo traz
// joke vazio e o erro do provedor, e o status HTTP repete o status do erro.
func (h *JokeHandler) External(w http.ResponseWriter, r *http.Request) {
	joke, err := h.jokes.Fetch(r.Context())
	if err != nil {
		var perr *domain.ProviderError
		if !errors.As(err, &perr) {
			perr = &domain.ProviderError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
		}
		status := perr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, externalJokeResponse{Error: &providerErrorBody{StatusCode: perr.StatusCode, Message: perr.Message}})
		return
	}
	writeJSON(w, http.StatusOK, externalJokeResponse{Joke: joke})
}
