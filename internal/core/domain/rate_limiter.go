// Package domain concentra entidades e estruturas centrais do rate limiter.
package domain

import "time"

// DefaultWindow é a janela padrão de uma política: um dia de calendário.
const DefaultWindow = 24 * time.Hour

// PolicyNotFoundMessage acompanha o veredito negado quando não há política.
const PolicyNotFoundMessage = "policy not found"

// Policy associa um recurso a uma cota máxima por janela fixa.
type Policy struct {
	ID         string
	ResourceID string
	HandlerID  string
	Path       string
	MaxCount   int
	Window     time.Duration
	Role       Role
	UpdatedAt  time.Time
}

// Validate checks MaxCount >= 0 and 0 < Window <= DefaultWindow.
func (p Policy) Validate() error {
	if p.ResourceID == "" {
		return ErrInvalidPolicy
	}
	if p.MaxCount < 0 {
		return ErrInvalidLimit
	}
	if p.Window <= 0 || p.Window > DefaultWindow {
		return ErrInvalidPolicy
	}
	return nil
}

// WindowStart returns the start of the fixed window containing now. Windows are
// anchored at midnight in now's location, so the default window is the
// calendar day.
func (p Policy) WindowStart(now time.Time) time.Time {
	window := p.Window
	if window <= 0 || window > DefaultWindow {
		window = DefaultWindow
	}

	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(midnight)
	return midnight.Add(elapsed - elapsed%window)
}

// WindowEnd returns when the window containing now resets.
func (p Policy) WindowEnd(now time.Time) time.Time {
	start := p.WindowStart(now)
	if p.Window <= 0 || p.Window >= DefaultWindow {
		y, m, d := start.Date()
		return time.Date(y, m, d+1, 0, 0, 0, 0, start.Location())
	}
	end := start.Add(p.Window)
	y, m, d := start.Date()
	if next := time.Date(y, m, d+1, 0, 0, 0, 0, start.Location()); end.After(next) {
		return next
	}
	return end
}

// LogEntry registra uma requisição admitida de um sujeito a um recurso.
type LogEntry struct {
	SubjectID  string
	ResourceID string
	Timestamp  time.Time
}

// Verdict é o resultado transitório de uma verificação; nunca é persistido.
// ResourceID fica vazio quando nenhuma política foi encontrada. CheckedAt é o
// horário do relógio do serviço usado na verificação.
type Verdict struct {
	Exceeded     bool
	Remaining    int
	ErrorMessage string
	Limit        int
	ResourceID   string
	CheckedAt    time.Time
	ResetAt      time.Time
}

// RetryAfter devolve quanto falta para a janela reiniciar, medido a partir de
// CheckedAt. Devolve zero quando o veredito não tem janela.
func (v Verdict) RetryAfter() time.Duration {
	if v.ResetAt.IsZero() || v.CheckedAt.IsZero() {
		return 0
	}
	if d := v.ResetAt.Sub(v.CheckedAt); d > 0 {
		return d
	}
	return 0
}

// DeniedVerdict is the fail-closed verdict returned when no policy applies.
func DeniedVerdict(message string) Verdict {
	return Verdict{Exceeded: true, Remaining: 0, ErrorMessage: message}
}

// Selector identifies the policy targeted by an administrative update.
// ResourceID takes precedence over SubjectID.
type Selector struct {
	ResourceID string
	SubjectID  string
}

// OutcomeStatus classifica o resultado de SetLimit.
type OutcomeStatus string

const (
	OutcomeSuccess      OutcomeStatus = "success"
	OutcomeNotFound     OutcomeStatus = "not_found"
	OutcomeUpdateFailed OutcomeStatus = "update_failed"
)

// Outcome descreve o resultado de uma alteração administrativa de limite.
type Outcome struct {
	Status     OutcomeStatus
	Message    string
	ResourceID string
	SubjectID  string
	NewLimit   int
}

// Succeeded informa se o novo limite foi persistido.
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}
