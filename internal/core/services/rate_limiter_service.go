package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

// Config agrega as dependências opcionais do serviço de rate limiting.
type Config struct {
	Registry ports.HandlerRegistry
	Clock    func() time.Time
	Logger   *zap.Logger
}

// RateLimiterService implementa a lógica central de rate limiting por janela fixa.
// Nenhum contador é mantido em memória: cada chamada recalcula a janela a partir
// do relógio e consulta o log de requisições.
type RateLimiterService struct {
	policies ports.PolicyStore
	logs     ports.RequestLogStore
	registry ports.HandlerRegistry
	now      func() time.Time
	logger   *zap.Logger
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

// NewRateLimiterService cria uma nova instância do serviço.
func NewRateLimiterService(policies ports.PolicyStore, logs ports.RequestLogStore, cfg Config) (*RateLimiterService, error) {
	if policies == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	if logs == nil {
		return nil, fmt.Errorf("request log store is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = NewHandlerRegistry(nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &RateLimiterService{
		policies: policies,
		logs:     logs,
		registry: cfg.Registry,
		now:      cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Check avalia se subjectID ainda tem cota para resourceID na janela atual.
//
// A missing policy fails closed: the verdict is exceeded with zero remaining
// and domain.PolicyNotFoundMessage, never an error. Only store faults are
// returned as errors, wrapping domain.ErrStoreUnavailable. Check never records
// a hit.
func (s *RateLimiterService) Check(ctx context.Context, subjectID, resourceID string) (domain.Verdict, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return domain.Verdict{}, domain.ErrInvalidSubject
	}

	policy, err := s.policies.FindPolicy(ctx, resourceID)
	if err != nil {
		if domain.IsPolicyNotFound(err) {
			s.logger.Warn("no rate limit policy, denying",
				zap.String("subject", subjectID),
				zap.String("resource", resourceID),
			)
			return domain.DeniedVerdict(domain.PolicyNotFoundMessage), nil
		}
		return domain.Verdict{}, storeFault("find policy", err)
	}

	now := s.now()
	count, err := s.logs.CountSince(ctx, subjectID, policy.ResourceID, policy.WindowStart(now))
	if err != nil {
		return domain.Verdict{}, storeFault("count requests", err)
	}

	remaining := int64(policy.MaxCount) - count
	if remaining < 0 {
		remaining = 0
	}

	return domain.Verdict{
		Exceeded:   count >= int64(policy.MaxCount),
		Remaining:  int(remaining),
		Limit:      policy.MaxCount,
		ResourceID: policy.ResourceID,
		CheckedAt:  now,
		ResetAt:    policy.WindowEnd(now),
	}, nil
}

// CheckHandler resolve o handler para o recurso correspondente e chama Check.
func (s *RateLimiterService) CheckHandler(ctx context.Context, subjectID, handlerID string) (domain.Verdict, error) {
	return s.Check(ctx, subjectID, s.registry.Resolve(handlerID))
}

// SetLimit altera o MaxCount da política selecionada. Uma política ausente
// resulta em OutcomeNotFound; nenhuma política é criada aqui.
func (s *RateLimiterService) SetLimit(ctx context.Context, selector domain.Selector, newLimit int) (domain.Outcome, error) {
	if newLimit < 0 {
		return domain.Outcome{}, domain.ErrInvalidLimit
	}

	outcome := domain.Outcome{
		ResourceID: strings.TrimSpace(selector.ResourceID),
		SubjectID:  strings.TrimSpace(selector.SubjectID),
		NewLimit:   newLimit,
	}

	if outcome.ResourceID == "" {
		if outcome.SubjectID == "" {
			return domain.Outcome{}, fmt.Errorf("%w: resource or subject selector is required", domain.ErrInvalidPolicy)
		}
		resourceID, err := s.logs.LatestResource(ctx, outcome.SubjectID)
		if err != nil {
			return domain.Outcome{}, storeFault("resolve subject resource", err)
		}
		if resourceID == "" {
			outcome.Status = domain.OutcomeNotFound
			outcome.Message = "Failed: No endpoint found for the user."
			return outcome, nil
		}
		outcome.ResourceID = resourceID
	}

	policy, err := s.policies.FindPolicy(ctx, outcome.ResourceID)
	if err != nil {
		if domain.IsPolicyNotFound(err) {
			outcome.Status = domain.OutcomeNotFound
			outcome.Message = fmt.Sprintf("Failed: No rate limit policy for %q.", outcome.ResourceID)
			return outcome, nil
		}
		return domain.Outcome{}, storeFault("find policy", err)
	}

	updated, err := s.policies.UpdatePolicy(ctx, policy.ID, newLimit)
	if err != nil && !domain.IsUpdateFailed(err) {
		return domain.Outcome{}, storeFault("update policy", err)
	}
	if err != nil || updated.MaxCount != newLimit {
		s.logger.Error("rate limit update did not take effect",
			zap.String("resource", outcome.ResourceID),
			zap.Int("new_limit", newLimit),
		)
		outcome.Status = domain.OutcomeUpdateFailed
		outcome.Message = "Failed: Unable to update rate limit."
		return outcome, nil
	}

	s.logger.Info("rate limit updated",
		zap.String("resource", outcome.ResourceID),
		zap.Int("old_limit", policy.MaxCount),
		zap.Int("new_limit", newLimit),
	)
	outcome.Status = domain.OutcomeSuccess
	outcome.Message = "Success: Rate limit updated."
	return outcome, nil
}

// ListPolicies devolve todas as políticas ordenadas por recurso.
func (s *RateLimiterService) ListPolicies(ctx context.Context) ([]domain.Policy, error) {
	policies, err := s.policies.ListPolicies(ctx)
	if err != nil {
		return nil, storeFault("list policies", err)
	}
	return policies, nil
}

// Record acrescenta uma entrada ao log com o horário do relógio do serviço.
func (s *RateLimiterService) Record(ctx context.Context, subjectID, resourceID string) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return domain.ErrInvalidSubject
	}
	entry := domain.LogEntry{SubjectID: subjectID, ResourceID: resourceID, Timestamp: s.now()}
	if err := s.logs.Append(ctx, entry); err != nil {
		return storeFault("append request log", err)
	}
	return nil
}

func storeFault(op string, err error) error {
	if domain.IsStoreUnavailable(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
