// Package metrics expõe métricas Prometheus do rate limiter.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

// Collectors agrupa os coletores registrados por NewCollectors.
type Collectors struct {
	registry *prometheus.Registry
	checks   *prometheus.CounterVec
	updates  *prometheus.CounterVec
	faults   *prometheus.CounterVec
}

func NewCollectors(registry *prometheus.Registry) *Collectors {
	c := &Collectors{
		registry: registry,
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "joker",
			Subsystem: "ratelimit",
			Name:      "checks_total",
			Help:      "Rate limit checks by resource and verdict.",
		}, []string{"resource", "exceeded"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "joker",
			Subsystem: "ratelimit",
			Name:      "limit_updates_total",
			Help:      "Administrative limit updates by outcome.",
		}, []string{"status"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "joker",
			Subsystem: "ratelimit",
			Name:      "store_faults_total",
			Help:      "Rate limiter operations that failed on the store.",
		}, []string{"operation"}),
	}
	registry.MustRegister(c.checks, c.updates, c.faults)
	return c
}

func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentedLimiter decora um ports.RateLimiter contando vereditos e falhas.
type InstrumentedLimiter struct {
	next    ports.RateLimiter
	metrics *Collectors
}

var _ ports.RateLimiter = (*InstrumentedLimiter)(nil)

func Instrument(next ports.RateLimiter, metrics *Collectors) *InstrumentedLimiter {
	return &InstrumentedLimiter{next: next, metrics: metrics}
}

func (l *InstrumentedLimiter) Check(ctx context.Context, subjectID, resourceID string) (domain.Verdict, error) {
	verdict, err := l.next.Check(ctx, subjectID, resourceID)
	l.observeCheck(verdict, err)
	return verdict, err
}

func (l *InstrumentedLimiter) CheckHandler(ctx context.Context, subjectID, handlerID string) (domain.Verdict, error) {
	verdict, err := l.next.CheckHandler(ctx, subjectID, handlerID)
	l.observeCheck(verdict, err)
	return verdict, err
}

func (l *InstrumentedLimiter) SetLimit(ctx context.Context, selector domain.Selector, newLimit int) (domain.Outcome, error) {
	outcome, err := l.next.SetLimit(ctx, selector, newLimit)
	switch {
	case domain.IsStoreUnavailable(err):
		l.metrics.faults.WithLabelValues("set_limit").Inc()
	case err == nil:
		l.metrics.updates.WithLabelValues(string(outcome.Status)).Inc()
	}
	return outcome, err
}

func (l *InstrumentedLimiter) ListPolicies(ctx context.Context) ([]domain.Policy, error) {
	policies, err := l.next.ListPolicies(ctx)
	if domain.IsStoreUnavailable(err) {
		l.metrics.faults.WithLabelValues("list_policies").Inc()
	}
	return policies, err
}

func (l *InstrumentedLimiter) Record(ctx context.Context, subjectID, resourceID string) error {
	err := l.next.Record(ctx, subjectID, resourceID)
	if domain.IsStoreUnavailable(err) {
		l.metrics.faults.WithLabelValues("record").Inc()
	}
	return err
}

// unknownResource rotula verificações sem política. O rótulo resource só recebe
// recursos com política cadastrada, o que mantém a cardinalidade limitada.
const unknownResource = "unknown"

func (l *InstrumentedLimiter) observeCheck(verdict domain.Verdict, err error) {
	if err != nil {
		if domain.IsStoreUnavailable(err) {
			l.metrics.faults.WithLabelValues("check").Inc()
		}
		return
	}
	resource := verdict.ResourceID
	if resource == "" {
		resource = unknownResource
	}
	l.metrics.checks.WithLabelValues(resource, strconv.FormatBool(verdict.Exceeded)).Inc()
}
