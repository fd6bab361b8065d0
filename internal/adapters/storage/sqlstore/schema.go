package sqlstore

import (
	"context"
	"fmt"
)

// EnsureSchema cria as tabelas caso ainda não existam. Não é um sistema de
// migrações: alterações de schema ficam fora deste pacote.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func schemaStatements(d Dialect) []string {
	ts := "TIMESTAMP"
	switch d {
	case Postgres:
		ts = "TIMESTAMPTZ"
	case MySQL:
		ts = "DATETIME(6)"
	}

	tables := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS rate_limit_policies (
			id VARCHAR(64) PRIMARY KEY,
			resource_id VARCHAR(255) NOT NULL UNIQUE,
			handler_id VARCHAR(255) NOT NULL DEFAULT '',
			path VARCHAR(255) NOT NULL DEFAULT '',
			max_count INTEGER NOT NULL CHECK (max_count >= 0),
			window_seconds BIGINT NOT NULL CHECK (window_seconds > 0),
			role VARCHAR(32) NOT NULL DEFAULT '',
			updated_at %s NOT NULL
		)`, ts),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS request_logs (
			subject_id VARCHAR(255) NOT NULL,
			resource_id VARCHAR(255) NOT NULL,
			created_at %s NOT NULL%s
		)`, ts, mysqlIndex(d, "idx_request_logs_lookup", "subject_id, resource_id, created_at")),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			hashed_password VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, ts, ts),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS jokes (
			id VARCHAR(64) PRIMARY KEY,
			text TEXT NOT NULL,
			source VARCHAR(255) NOT NULL DEFAULT '',
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, ts, ts),
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS; its index is declared inline.
	if d != MySQL {
		tables = append(tables,
			`CREATE INDEX IF NOT EXISTS idx_request_logs_lookup ON request_logs (subject_id, resource_id, created_at)`,
		)
	}
	return tables
}

func mysqlIndex(d Dialect, name, columns string) string {
	if d != MySQL {
		return ""
	}
	return fmt.Sprintf(",\n\t\t\tINDEX %s (%s)", name, columns)
}
