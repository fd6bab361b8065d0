package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

const userColumns = `id, username, email, hashed_password, role, created_at, updated_at`

func (s *Storage) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Username, user.Email, user.HashedPassword, string(user.Role),
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.User{}, userError(err)
	}
	return user, nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id,
	))
}

func (s *Storage) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, convertError(err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`),
		limit, offset,
	)
	if err != nil {
		return nil, 0, convertError(err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, convertError(err)
	}
	return users, total, nil
}

func (s *Storage) UpdateUser(ctx context.Context, id string, update domain.UserUpdate, at time.Time) (domain.User, error) {
	var (
		sets []string
		args []any
	)
	if update.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *update.Username)
	}
	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *update.Email)
	}
	if update.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*update.Role))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, at.UTC(), id)

	res, err := s.db.ExecContext(ctx,
		s.q(fmt.Sprintf(`UPDATE users SET %s WHERE id = ?`, strings.Join(sets, ", "))),
		args...,
	)
	if err != nil {
		return domain.User{}, userError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.User{}, convertError(err)
	}
	if affected == 0 {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Storage) DeleteUser(ctx context.Context, id string) (domain.User, error) {
	var user domain.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRowContext(ctx,
			s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id,
		))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`DELETE FROM users WHERE id = ?`), id)
		return convertError(err)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, convertError(err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

func userError(err error) error {
	err = convertError(err)
	if errors.Is(err, errUniqueViolation) {
		return fmt.Errorf("%w: %v", domain.ErrUserExists, err)
	}
	return err
}
