// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

const rateLimitExceededMessage = "you have reached the maximum number of requests or actions allowed within a certain time frame"

// SubjectHeader carrega o identificador do usuário que faz a requisição.
const SubjectHeader = "X-User-ID"

// NewRateLimiterMiddleware verifica a cota de resourceID antes de chamar next
// e registra a requisição somente quando ela é admitida.
func NewRateLimiterMiddleware(limiter ports.RateLimiter, resourceID string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				logger.Error("rate limiter not configured",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("resource", resourceID),
				)
				writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable", "SERVICE_UNAVAILABLE")
				return
			}

			subject := SubjectFromRequest(r)
			if subject == "" {
				subject = "ip:" + extractIP(r)
			}

			verdict, err := limiter.Check(r.Context(), subject, resourceID)
			if err != nil {
				logger.Error("rate limit check failed",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("subject", subject),
					zap.String("resource", resourceID),
					zap.Error(err),
				)
				writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable", "SERVICE_UNAVAILABLE")
				return
			}

			setRateLimitHeaders(w, verdict)
			if verdict.Exceeded {
				message := verdict.ErrorMessage
				if message == "" {
					message = rateLimitExceededMessage
				}
				writeTooManyRequests(w, verdict, message)
				return
			}

			if err := limiter.Record(r.Context(), subject, resourceID); err != nil {
				logger.Error("failed to record request",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("subject", subject),
					zap.String("resource", resourceID),
					zap.Error(err),
				)
				writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable", "SERVICE_UNAVAILABLE")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SubjectFromRequest lê o sujeito do header X-User-ID ou do parâmetro user_id.
func SubjectFromRequest(r *http.Request) string {
	if subject := strings.TrimSpace(r.Header.Get(SubjectHeader)); subject != "" {
		return subject
	}
	return strings.TrimSpace(r.URL.Query().Get("user_id"))
}

func extractIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if xRealIP != "" {
		return xRealIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}

	return host
}

func setRateLimitHeaders(w http.ResponseWriter, verdict domain.Verdict) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(verdict.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))
	if !verdict.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(verdict.ResetAt.Unix(), 10))
	}
}

func writeTooManyRequests(w http.ResponseWriter, verdict domain.Verdict, message string) {
	if !verdict.ResetAt.IsZero() {
		// Rounded up so clients never retry before the window resets.
		retryAfter := (verdict.RetryAfter() + time.Second - 1) / time.Second
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter), 10))
	}
	writeError(w, http.StatusTooManyRequests, message, "RATE_LIMIT_EXCEEDED")
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: "error", Message: message, Code: code})
}
