package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

// CountSince conta as entradas com created_at >= since. Os horários são sempre
// gravados em UTC para que a comparação funcione também no SQLite, que guarda
// timestamps como texto.
func (s *Storage) CountSince(ctx context.Context, subjectID, resourceID string, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT COUNT(*) FROM request_logs WHERE subject_id = ? AND resource_id = ? AND created_at >= ?`),
		subjectID, resourceID, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, convertError(err)
	}
	return count, nil
}

func (s *Storage) Append(ctx context.Context, entry domain.LogEntry) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO request_logs (subject_id, resource_id, created_at) VALUES (?, ?, ?)`),
		entry.SubjectID, entry.ResourceID, entry.Timestamp.UTC(),
	)
	return convertError(err)
}

func (s *Storage) LatestResource(ctx context.Context, subjectID string) (string, error) {
	var resourceID string
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT resource_id FROM request_logs WHERE subject_id = ? ORDER BY created_at DESC LIMIT 1`),
		subjectID,
	).Scan(&resourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", convertError(err)
	}
	return resourceID, nil
}
