package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

const jokeColumns = `id, text, source, created_at, updated_at`

func (s *Storage) CreateJoke(ctx context.Context, joke domain.Joke) (domain.Joke, error) {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO jokes (`+jokeColumns+`) VALUES (?, ?, ?, ?, ?)`),
		joke.ID, joke.Text, joke.Source, joke.CreatedAt.UTC(), joke.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.Joke{}, convertError(err)
	}
	return joke, nil
}

func (s *Storage) GetJoke(ctx context.Context, id string) (domain.Joke, error) {
	return scanJoke(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+jokeColumns+` FROM jokes WHERE id = ?`), id,
	))
}

func (s *Storage) ListJokes(ctx context.Context) ([]domain.Joke, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jokeColumns+` FROM jokes ORDER BY created_at, id`)
	if err != nil {
		return nil, convertError(err)
	}
	defer rows.Close()

	var jokes []domain.Joke
	for rows.Next() {
		joke, err := scanJoke(rows)
		if err != nil {
			return nil, err
		}
		jokes = append(jokes, joke)
	}
	if err := rows.Err(); err != nil {
		return nil, convertError(err)
	}
	return jokes, nil
}

func scanJoke(row rowScanner) (domain.Joke, error) {
	var j domain.Joke
	err := row.Scan(&j.ID, &j.Text, &j.Source, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Joke{}, domain.ErrJokeNotFound
	}
	if err != nil {
		return domain.Joke{}, convertError(err)
	}
	return j, nil
}
