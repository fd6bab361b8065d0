package sqlstore

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

// errUniqueViolation is translated by callers into their own domain error.
var errUniqueViolation = errors.New("unique constraint violation")

// convertError maps driver errors into domain errors. Anything not recognized
// as a constraint violation is an infrastructure fault.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", errUniqueViolation, pgErr.Detail)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", errUniqueViolation, myErr.Message)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", errUniqueViolation, liteErr.Error())
	}

	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
