package domain

import "time"

type Joke struct {
	ID        string
	Text      string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProviderError mirrors the upstream failure reported alongside an empty joke.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderUnavailable
}
