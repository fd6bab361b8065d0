package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

type stubLimiter struct {
	verdict   domain.Verdict
	checkErr  error
	recordErr error

	checkedSubject string
	checkedRes     string
	recorded       []string
}

func (s *stubLimiter) Check(_ context.Context, subjectID, resourceID string) (domain.Verdict, error) {
	s.checkedSubject = subjectID
	s.checkedRes = resourceID
	return s.verdict, s.checkErr
}

func (s *stubLimiter) CheckHandler(ctx context.Context, subjectID, handlerID string) (domain.Verdict, error) {
	return s.Check(ctx, subjectID, handlerID)
}

func (s *stubLimiter) SetLimit(context.Context, domain.Selector, int) (domain.Outcome, error) {
	return domain.Outcome{}, nil
}

func (s *stubLimiter) ListPolicies(context.Context) ([]domain.Policy, error) {
	return nil, nil
}

func (s *stubLimiter) Record(_ context.Context, subjectID, resourceID string) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, subjectID+"|"+resourceID)
	return nil
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestRateLimiter_AllowsAndRecords(t *testing.T) {
	limiter := &stubLimiter{verdict: domain.Verdict{Remaining: 4, Limit: 5, ResetAt: time.Now().Add(time.Hour)}}
	handler := NewRateLimiterMiddleware(limiter, "jokes", nil)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/jokes/random", nil)
	req.Header.Set(SubjectHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, []string{"alice|jokes"}, limiter.recorded)
}

func TestRateLimiter_DeniesWithoutRecording(t *testing.T) {
	now := time.Now()
	limiter := &stubLimiter{verdict: domain.Verdict{Exceeded: true, Limit: 2, CheckedAt: now, ResetAt: now.Add(time.Minute)}}
	handler := NewRateLimiterMiddleware(limiter, "jokes", nil)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/jokes/random?user_id=bob", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "bob", limiter.checkedSubject)
	assert.Empty(t, limiter.recorded)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rateLimitExceededMessage, body.Message)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Code)
}

func TestRateLimiter_RetryAfterUsesVerdictClock(t *testing.T) {
	checkedAt := time.Date(2020, 1, 1, 23, 58, 30, 0, time.UTC)
	limiter := &stubLimiter{verdict: domain.Verdict{
		Exceeded:  true,
		Limit:     1,
		CheckedAt: checkedAt,
		ResetAt:   checkedAt.Add(90 * time.Second),
	}}
	handler := NewRateLimiterMiddleware(limiter, "jokes", nil)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/jokes/random", nil)
	req.Header.Set(SubjectHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_NilLimiterRejects(t *testing.T) {
	called := false
	handler := NewRateLimiterMiddleware(nil, "jokes", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		okHandler(w, r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/jokes/random", nil)
	req.Header.Set(SubjectHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, called)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Code)
}

func TestRateLimiter_MissingPolicyMessage(t *testing.T) {
	limiter := &stubLimiter{verdict: domain.DeniedVerdict(domain.PolicyNotFoundMessage)}
	handler := NewRateLimiterMiddleware(limiter, "unknown", nil)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set(SubjectHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), domain.PolicyNotFoundMessage)
}

func TestRateLimiter_FallsBackToClientIP(t *testing.T) {
	limiter := &stubLimiter{verdict: domain.Verdict{Remaining: 1, Limit: 1}}
	handler := NewRateLimiterMiddleware(limiter, "jokes", nil)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/jokes/random", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ip:203.0.113.7", limiter.checkedSubject)
}

func TestRateLimiter_StoreFaults(t *testing.T) {
	fault := fmt.Errorf("count: %w", domain.ErrStoreUnavailable)

	t.Run("check", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		limiter := &stubLimiter{checkErr: fault}
		handler := NewRateLimiterMiddleware(limiter, "jokes", zap.New(core))(http.HandlerFunc(okHandler))

		req := httptest.NewRequest(http.MethodGet, "/jokes/random", nil)
		req.Header.Set(SubjectHeader, "alice")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, 1, logs.FilterMessage("rate limit check failed").Len())
	})

	t.Run("record", func(t *testing.T) {
		limiter := &stubLimiter{verdict: domain.Verdict{Remaining: 3, Limit: 3}, recordErr: fault}
		handler := NewRateLimiterMiddleware(limiter, "jokes", nil)(http.HandlerFunc(okHandler))

		req := httptest.NewRequest(http.MethodGet, "/jokes/random", nil)
		req.Header.Set(SubjectHeader, "alice")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotEqual(t, "ok", rec.Body.String())
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := RequestID(Logging(zap.New(core), "/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		okHandler(w, r)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jokes/random", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
}
