package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger é satisfeito por *sql.DB e pelos adaptadores de storage.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler responde com o estado da aplicação e de suas dependências.
func HealthHandler(pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(pingers))
		status := http.StatusOK
		for name, p := range pingers {
			if err := p.PingContext(ctx); err != nil {
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		body := map[string]any{"status": "ok", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		writeJSON(w, status, body)
	}
}
