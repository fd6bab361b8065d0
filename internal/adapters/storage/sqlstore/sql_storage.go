// Package sqlstore disponibiliza a implementação do storage sobre bancos relacionais
// (PostgreSQL via pgx, MySQL e SQLite).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/JeanGrijp/joker/internal/core/ports"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ParseDialect aceita os nomes de STORAGE_TYPE e os nomes dos drivers.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect: %s", s)
	}
}

func (d Dialect) driverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case SQLite:
		return "sqlite3"
	default:
		return string(d)
	}
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Config struct {
	Dialect  Dialect
	DSN      string
	MaxConns int
	MaxIdle  int
}

type Storage struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ ports.Storage = (*Storage)(nil)

// New envolve uma conexão já aberta. O schema não é criado aqui; veja EnsureSchema.
func New(db *sql.DB, dialect Dialect) (*Storage, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	return &Storage{db: db, dialect: dialect, now: time.Now}, nil
}

// Open abre o pool, valida a conexão e garante que as tabelas existam.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	dsn := cfg.DSN
	if cfg.Dialect == MySQL {
		normalized, err := normalizeMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = normalized
	}

	db, err := sql.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	if cfg.Dialect == SQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		if cfg.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.MaxIdle)
		}
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Dialect == SQLite {
		if _, err := db.ExecContext(pingCtx, "PRAGMA busy_timeout=10000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set sqlite busy timeout: %w", err)
		}
	}

	storage, err := New(db, cfg.Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := storage.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

// normalizeMySQLDSN forces parseTime so TIMESTAMP columns scan into time.Time,
// UTC as the session location, and clientFoundRows so an UPDATE that matches a
// row reports it as affected even when values are unchanged.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) PingContext(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return convertError(err)
	}
	return nil
}

func (s *Storage) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return convertError(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return convertError(err)
	}
	return nil
}
