package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

const policyColumns = `id, resource_id, handler_id, path, max_count, window_seconds, role, updated_at`

func (s *Storage) FindPolicy(ctx context.Context, resourceID string) (domain.Policy, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+policyColumns+` FROM rate_limit_policies WHERE resource_id = ?`),
		resourceID,
	)
	return scanPolicy(row)
}

// UpdatePolicy altera max_count e relê a linha para devolver o valor persistido.
func (s *Storage) UpdatePolicy(ctx context.Context, policyID string, maxCount int) (domain.Policy, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE rate_limit_policies SET max_count = ?, updated_at = ? WHERE id = ?`),
		maxCount, s.now().UTC(), policyID,
	)
	if err != nil {
		return domain.Policy{}, convertError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Policy{}, convertError(err)
	}
	if affected == 0 {
		return domain.Policy{}, domain.ErrUpdateFailed
	}

	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+policyColumns+` FROM rate_limit_policies WHERE id = ?`),
		policyID,
	)
	policy, err := scanPolicy(row)
	if domain.IsPolicyNotFound(err) {
		return domain.Policy{}, domain.ErrUpdateFailed
	}
	return policy, err
}

func (s *Storage) ListPolicies(ctx context.Context) ([]domain.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM rate_limit_policies ORDER BY resource_id`,
	)
	if err != nil {
		return nil, convertError(err)
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, convertError(err)
	}
	return policies, nil
}

// UpsertPolicy grava a política pelo resource_id, preservando o id existente.
func (s *Storage) UpsertPolicy(ctx context.Context, policy domain.Policy) (domain.Policy, error) {
	if err := policy.Validate(); err != nil {
		return domain.Policy{}, err
	}
	policy.UpdatedAt = s.now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existingID string
		err := tx.QueryRowContext(ctx,
			s.q(`SELECT id FROM rate_limit_policies WHERE resource_id = ?`),
			policy.ResourceID,
		).Scan(&existingID)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if policy.ID == "" {
				policy.ID = uuid.NewString()
			}
			_, err = tx.ExecContext(ctx,
				s.q(`INSERT INTO rate_limit_policies (`+policyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
				policy.ID, policy.ResourceID, policy.HandlerID, policy.Path, policy.MaxCount,
				int64(policy.Window/time.Second), string(policy.Role), policy.UpdatedAt,
			)
		case err != nil:
			return convertError(err)
		default:
			policy.ID = existingID
			_, err = tx.ExecContext(ctx,
				s.q(`UPDATE rate_limit_policies SET handler_id = ?, path = ?, max_count = ?, window_seconds = ?, role = ?, updated_at = ? WHERE id = ?`),
				policy.HandlerID, policy.Path, policy.MaxCount,
				int64(policy.Window/time.Second), string(policy.Role), policy.UpdatedAt, policy.ID,
			)
		}
		return convertError(err)
	})
	if err != nil {
		return domain.Policy{}, err
	}
	return policy, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (domain.Policy, error) {
	var (
		p             domain.Policy
		windowSeconds int64
		role          string
	)
	err := row.Scan(&p.ID, &p.ResourceID, &p.HandlerID, &p.Path, &p.MaxCount, &windowSeconds, &role, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Policy{}, domain.ErrPolicyNotFound
	}
	if err != nil {
		return domain.Policy{}, convertError(err)
	}
	p.Window = time.Duration(windowSeconds) * time.Second
	p.Role = domain.Role(role)
	return p, nil
}
