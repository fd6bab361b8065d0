// Package handlers agrupa os handlers HTTP da API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	if code == "" {
		code = codeFromStatus(status)
	}
	writeJSON(w, status, errorResponse{Error: "error", Message: message, Code: code})
}

// writeDomainError traduz erros do domínio para o status HTTP correspondente.
// Falhas de infraestrutura não expõem a mensagem original.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error(), "")
	case domain.IsStoreUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable", "")
	default:
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), "")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMIT_EXCEEDED"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
