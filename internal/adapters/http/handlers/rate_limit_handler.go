package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JeanGrijp/joker/internal/adapters/http/middleware"
	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

// RateLimitHandler expõe a verificação e a administração de limites.
type RateLimitHandler struct {
	limiter        ports.RateLimiter
	defaultHandler string
	logger         *zap.Logger
}

func NewRateLimitHandler(limiter ports.RateLimiter, defaultHandler string, logger *zap.Logger) *RateLimitHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitHandler{limiter: limiter, defaultHandler: defaultHandler, logger: logger}
}

type checkResponse struct {
	Exceeded          bool   `json:"exceeded"`
	RemainingRequests int    `json:"remaining_requests"`
	ErrorMessage      string `json:"error_message"`
}

// Check responde se o sujeito ainda tem cota. O parâmetro handler escolhe o
// handler consultado; sem ele vale o handler padrão.
func (h *RateLimitHandler) Check(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromRequest(r)
	if subject == "" {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidSubject.Error(), "")
		return
	}

	handlerID := strings.TrimSpace(r.URL.Query().Get("handler"))
	if handlerID == "" {
		handlerID = h.defaultHandler
	}

	verdict, err := h.limiter.CheckHandler(r.Context(), subject, handlerID)
	if err != nil {
		h.logger.Error("rate limit check failed", zap.String("subject", subject), zap.String("handler", handlerID), zap.Error(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Exceeded:          verdict.Exceeded,
		RemainingRequests: verdict.Remaining,
		ErrorMessage:      verdict.ErrorMessage,
	})
}

type setLimitRequest struct {
	NewRateLimit *int   `json:"new_rate_limit"`
	ResourceID   string `json:"resource_id"`
}

type setLimitResponse struct {
	UserID       string `json:"user_id"`
	ResourceID   string `json:"resource_id,omitempty"`
	NewRateLimit int    `json:"new_rate_limit"`
	Status       string `json:"status"`
}

// SetUserLimit altera a cota do recurso indicado em resource_id ou, sem ele,
// do último recurso acessado pelo usuário.
func (h *RateLimitHandler) SetUserLimit(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))

	var req setLimitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.NewRateLimit == nil {
		writeError(w, http.StatusBadRequest, "new_rate_limit is required", "")
		return
	}

	outcome, err := h.limiter.SetLimit(r.Context(), domain.Selector{
		ResourceID: req.ResourceID,
		SubjectID:  userID,
	}, *req.NewRateLimit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	switch outcome.Status {
	case domain.OutcomeNotFound:
		status = http.StatusNotFound
	case domain.OutcomeUpdateFailed:
		status = http.StatusConflict
	}

	writeJSON(w, status, setLimitResponse{
		UserID:       userID,
		ResourceID:   outcome.ResourceID,
		NewRateLimit: outcome.NewLimit,
		Status:       outcome.Message,
	})
}

type rateLimitDetails struct {
	ResourceID   string      `json:"resource_id"`
	Path         string      `json:"path"`
	Limit        int         `json:"limit"`
	Duration     int         `json:"duration"`
	RoleAffected domain.Role `json:"roleAffected"`
}

type rateLimitsResponse struct {
	RateLimits []rateLimitDetails `json:"rateLimits"`
}

func (h *RateLimitHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.limiter.ListPolicies(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := rateLimitsResponse{RateLimits: make([]rateLimitDetails, 0, len(policies))}
	for _, p := range policies {
		resp.RateLimits = append(resp.RateLimits, rateLimitDetails{
			ResourceID:   p.ResourceID,
			Path:         p.Path,
			Limit:        p.MaxCount,
			Duration:     int(p.Window.Seconds()),
			RoleAffected: p.Role,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
