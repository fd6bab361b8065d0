// Package redis disponibiliza a implementação do storage do rate limiter baseada em Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

const defaultPrefix = "joker:"

type Storage struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ ports.LimiterStorage = (*Storage)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func New(cfg Config) (*Storage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient reutiliza um cliente existente; prefix vazio usa "joker:".
func NewWithClient(client *redis.Client, prefix string) *Storage {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Storage{client: client, prefix: prefix, now: time.Now}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) PingContext(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Storage) policyKey(resourceID string) string { return s.prefix + "policy:" + resourceID }
func (s *Storage) policyIDKey(id string) string        { return s.prefix + "policy-id:" + id }
func (s *Storage) policiesKey() string                 { return s.prefix + "policies" }
func (s *Storage) latestKey(subjectID string) string   { return s.prefix + "latest:" + subjectID }

func (s *Storage) logKey(subjectID, resourceID string) string {
	return fmt.Sprintf("%slog:%s:%s", s.prefix, subjectID, resourceID)
}

func (s *Storage) FindPolicy(ctx context.Context, resourceID string) (domain.Policy, error) {
	fields, err := s.client.HGetAll(ctx, s.policyKey(resourceID)).Result()
	if err != nil {
		return domain.Policy{}, unavailable(err)
	}
	if len(fields) == 0 {
		return domain.Policy{}, domain.ErrPolicyNotFound
	}
	return decodePolicy(fields)
}

// UpdatePolicy só altera max_count se a política ainda existir; a verificação e
// a escrita acontecem em uma transação WATCH.
func (s *Storage) UpdatePolicy(ctx context.Context, policyID string, maxCount int) (domain.Policy, error) {
	resourceID, err := s.client.Get(ctx, s.policyIDKey(policyID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Policy{}, domain.ErrUpdateFailed
	}
	if err != nil {
		return domain.Policy{}, unavailable(err)
	}

	key := s.policyKey(resourceID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrUpdateFailed
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"max_count", maxCount,
				"updated_at", s.now().UTC().UnixNano(),
			)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUpdateFailed), errors.Is(err, redis.TxFailedErr):
		return domain.Policy{}, domain.ErrUpdateFailed
	default:
		return domain.Policy{}, unavailable(err)
	}

	policy, err := s.FindPolicy(ctx, resourceID)
	if domain.IsPolicyNotFound(err) {
		return domain.Policy{}, domain.ErrUpdateFailed
	}
	return policy, err
}

func (s *Storage) ListPolicies(ctx context.Context) ([]domain.Policy, error) {
	resources, err := s.client.SMembers(ctx, s.policiesKey()).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	sort.Strings(resources)

	policies := make([]domain.Policy, 0, len(resources))
	for _, resourceID := range resources {
		policy, err := s.FindPolicy(ctx, resourceID)
		if domain.IsPolicyNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

func (s *Storage) UpsertPolicy(ctx context.Context, policy domain.Policy) (domain.Policy, error) {
	if err := policy.Validate(); err != nil {
		return domain.Policy{}, err
	}

	existingID, err := s.client.HGet(ctx, s.policyKey(policy.ResourceID), "id").Result()
	switch {
	case err == nil:
		policy.ID = existingID
	case errors.Is(err, redis.Nil):
		if policy.ID == "" {
			policy.ID = uuid.NewString()
		}
	default:
		return domain.Policy{}, unavailable(err)
	}
	policy.UpdatedAt = s.now().UTC()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.policyKey(policy.ResourceID),
		"id", policy.ID,
		"resource_id", policy.ResourceID,
		"handler_id", policy.HandlerID,
		"path", policy.Path,
		"max_count", policy.MaxCount,
		"window_seconds", int64(policy.Window/time.Second),
		"role", string(policy.Role),
		"updated_at", policy.UpdatedAt.UnixNano(),
	)
	pipe.Set(ctx, s.policyIDKey(policy.ID), policy.ResourceID, 0)
	pipe.SAdd(ctx, s.policiesKey(), policy.ResourceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Policy{}, unavailable(err)
	}
	return policy, nil
}

// CountSince usa ZCOUNT sobre um sorted set pontuado pelo horário em
// microssegundos, o que mantém o score exato dentro da precisão de um float64.
func (s *Storage) CountSince(ctx context.Context, subjectID, resourceID string, since time.Time) (int64, error) {
	count, err := s.client.ZCount(ctx, s.logKey(subjectID, resourceID),
		strconv.FormatInt(since.UnixMicro(), 10), "+inf",
	).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

func (s *Storage) Append(ctx context.Context, entry domain.LogEntry) error {
	score := entry.Timestamp.UnixMicro()
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.logKey(entry.SubjectID, entry.ResourceID), redis.Z{
		Score:  float64(score),
		Member: fmt.Sprintf("%d:%s", score, uuid.NewString()),
	})
	pipe.Set(ctx, s.latestKey(entry.SubjectID), entry.ResourceID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Storage) LatestResource(ctx context.Context, subjectID string) (string, error) {
	resourceID, err := s.client.Get(ctx, s.latestKey(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err)
	}
	return resourceID, nil
}

func decodePolicy(fields map[string]string) (domain.Policy, error) {
	maxCount, err := strconv.Atoi(fields["max_count"])
	if err != nil {
		return domain.Policy{}, fmt.Errorf("%w: invalid max_count: %v", domain.ErrStoreUnavailable, err)
	}
	windowSeconds, err := strconv.ParseInt(fields["window_seconds"], 10, 64)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("%w: invalid window_seconds: %v", domain.ErrStoreUnavailable, err)
	}
	updatedAt, _ := strconv.ParseInt(fields["updated_at"], 10, 64)

	return domain.Policy{
		ID:         fields["id"],
		ResourceID: fields["resource_id"],
		HandlerID:  fields["handler_id"],
		Path:       fields["path"],
		MaxCount:   maxCount,
		Window:     time.Duration(windowSeconds) * time.Second,
		Role:       domain.Role(fields["role"]),
		UpdatedAt:  time.Unix(0, updatedAt).UTC(),
	}, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: redis: %v", domain.ErrStoreUnavailable, err)
}
