package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := Open(context.Background(), Config{Dialect: SQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func seedPolicy(t *testing.T, storage *Storage, resourceID string, maxCount int) domain.Policy {
	t.Helper()
	policy, err := storage.UpsertPolicy(context.Background(), domain.Policy{
		ResourceID: resourceID,
		HandlerID:  "h-" + resourceID,
		Path:       "/" + resourceID,
		MaxCount:   maxCount,
		Window:     domain.DefaultWindow,
		Role:       domain.RoleAPIUser,
	})
	require.NoError(t, err)
	return policy
}

func TestParseDialect(t *testing.T) {
	for input, want := range map[string]Dialect{
		"postgres": Postgres,
		"PGX":      Postgres,
		"mysql":    MySQL,
		"sqlite3":  SQLite,
		" sqlite ": SQLite,
	} {
		got, err := ParseDialect(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	query := `SELECT a FROM t WHERE b = ? AND c >= ?`
	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c >= $2`, Postgres.rebind(query))
	assert.Equal(t, query, MySQL.rebind(query))
	assert.Equal(t, query, SQLite.rebind(query))
}

func TestNormalizeMySQLDSN(t *testing.T) {
	dsn, err := normalizeMySQLDSN("joker:secret@tcp(localhost:3306)/joker")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")

	_, err = normalizeMySQLDSN("not a dsn")
	assert.Error(t, err)
}

func TestSchemaStatementsPerDialect(t *testing.T) {
	assert.Contains(t, schemaStatements(Postgres)[0], "TIMESTAMPTZ")
	mysqlStmts := schemaStatements(MySQL)
	assert.Contains(t, mysqlStmts[1], "INDEX idx_request_logs_lookup")
	assert.Len(t, mysqlStmts, 4)
	assert.Len(t, schemaStatements(SQLite), 5)
}

func TestPolicyLifecycle(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	_, err := storage.FindPolicy(ctx, "jokes")
	assert.True(t, domain.IsPolicyNotFound(err))

	created := seedPolicy(t, storage, "jokes", 3)
	assert.NotEmpty(t, created.ID)

	found, err := storage.FindPolicy(ctx, "jokes")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, 3, found.MaxCount)
	assert.Equal(t, domain.DefaultWindow, found.Window)
	assert.Equal(t, "/jokes", found.Path)
	assert.Equal(t, domain.RoleAPIUser, found.Role)

	updated, err := storage.UpdatePolicy(ctx, found.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.MaxCount)

	again, err := storage.UpdatePolicy(ctx, found.ID, 0)
	require.NoError(t, err, "re-applying the same value must still succeed")
	assert.Equal(t, 0, again.MaxCount)

	_, err = storage.UpdatePolicy(ctx, "missing-id", 5)
	assert.ErrorIs(t, err, domain.ErrUpdateFailed)

	reseeded := seedPolicy(t, storage, "jokes", 9)
	assert.Equal(t, created.ID, reseeded.ID, "upsert keeps the existing id")

	seedPolicy(t, storage, "alpha", 1)
	policies, err := storage.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "alpha", policies[0].ResourceID)
	assert.Equal(t, 9, policies[1].MaxCount)
}

func TestUpsertPolicyValidates(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.UpsertPolicy(context.Background(), domain.Policy{ResourceID: "jokes", MaxCount: -1, Window: time.Hour})
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestRequestLogCountsWindow(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	loc := time.FixedZone("BRT", -3*60*60)
	windowStart := time.Date(2026, time.March, 14, 0, 0, 0, 0, loc)

	entries := []domain.LogEntry{
		{SubjectID: "subjectA", ResourceID: "jokes", Timestamp: windowStart.Add(-time.Nanosecond)},
		{SubjectID: "subjectA", ResourceID: "jokes", Timestamp: windowStart},
		{SubjectID: "subjectA", ResourceID: "jokes", Timestamp: windowStart.Add(90 * time.Minute)},
		{SubjectID: "subjectA", ResourceID: "users", Timestamp: windowStart.Add(2 * time.Hour)},
		{SubjectID: "subjectB", ResourceID: "jokes", Timestamp: windowStart.Add(time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, storage.Append(ctx, e))
	}

	count, err := storage.CountSince(ctx, "subjectA", "jokes", windowStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = storage.CountSince(ctx, "subjectC", "jokes", windowStart)
	require.NoError(t, err)
	assert.Zero(t, count)

	latest, err := storage.LatestResource(ctx, "subjectA")
	require.NoError(t, err)
	assert.Equal(t, "users", latest)

	latest, err = storage.LatestResource(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestUserCRUD(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	user := domain.User{
		ID: "u1", Username: "ada", Email: "ada@example.com", HashedPassword: "hash",
		Role: domain.RoleAPIUser, CreatedAt: now, UpdatedAt: now,
	}
	_, err := storage.CreateUser(ctx, user)
	require.NoError(t, err)

	dup := user
	dup.ID = "u2"
	_, err = storage.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrUserExists)

	got, err := storage.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)
	assert.True(t, got.CreatedAt.Equal(now))

	role := domain.RoleAPIAdmin
	updated, err := storage.UpdateUser(ctx, "u1", domain.UserUpdate{Role: &role}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAPIAdmin, updated.Role)
	assert.True(t, updated.UpdatedAt.Equal(now.Add(time.Hour)))

	_, err = storage.UpdateUser(ctx, "missing", domain.UserUpdate{Role: &role}, now)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	users, total, err := storage.ListUsers(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, users, 1)

	deleted, err := storage.DeleteUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", deleted.ID)

	_, err = storage.DeleteUser(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestJokes(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	_, err := storage.GetJoke(ctx, "j1")
	assert.ErrorIs(t, err, domain.ErrJokeNotFound)

	_, err = storage.CreateJoke(ctx, domain.Joke{ID: "j1", Text: "why?", Source: "seed", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	joke, err := storage.GetJoke(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "why?", joke.Text)

	jokes, err := storage.ListJokes(ctx)
	require.NoError(t, err)
	assert.Len(t, jokes, 1)
}

func TestStoreFaultsAreUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	storage, err := New(db, Postgres)
	require.NoError(t, err)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM request_logs WHERE subject_id = \$1`).
		WithArgs("subjectA", "jokes", sqlmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	_, err = storage.CountSince(ctx, "subjectA", "jokes", time.Now())
	assert.True(t, domain.IsStoreUnavailable(err))

	mock.ExpectQuery(`SELECT .* FROM rate_limit_policies WHERE resource_id = \$1`).
		WithArgs("jokes").
		WillReturnError(errors.New("i/o timeout"))

	_, err = storage.FindPolicy(ctx, "jokes")
	assert.True(t, domain.IsStoreUnavailable(err))
	assert.False(t, domain.IsPolicyNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePolicyNoRowsIsUpdateFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	storage, err := New(db, MySQL)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE rate_limit_policies SET max_count = \?, updated_at = \? WHERE id = \?`).
		WithArgs(5, sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = storage.UpdatePolicy(context.Background(), "p1", 5)
	assert.True(t, domain.IsUpdateFailed(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(nil, SQLite)
	assert.Error(t, err)
}
