package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JeanGrijp/joker/internal/adapters/http/middleware"
	"github.com/JeanGrijp/joker/internal/core/ports"
)

// RouterDeps agrupa o que o roteador precisa para montar a API.
type RouterDeps struct {
	Limiter        ports.RateLimiter
	Registry       ports.HandlerRegistry
	DefaultHandler string
	Users          UserService
	Jokes          JokeService
	Health         map[string]Pinger
	Metrics        http.Handler
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewRouter monta as rotas. Cada rota limitada declara o id de handler que o
// registry traduz para o recurso da política.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := func(handlerID string) func(http.Handler) http.Handler {
		resourceID := handlerID
		if deps.Registry != nil {
			resourceID = deps.Registry.Resolve(handlerID)
		}
		return middleware.NewRateLimiterMiddleware(deps.Limiter, resourceID, logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger, "/healthz", "/metrics"))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(timeout))

	r.Get("/healthz", HealthHandler(deps.Health))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	rateLimits := NewRateLimitHandler(deps.Limiter, deps.DefaultHandler, logger)
	r.Get("/ratelimit/check", rateLimits.Check)
	r.Post("/ratelimit/users/{userId}", rateLimits.SetUserLimit)
	r.Get("/ratelimits", rateLimits.ListPolicies)

	if deps.Jokes != nil {
		jokes := NewJokeHandler(deps.Jokes)
		r.Route("/jokes", func(r chi.Router) {
			r.With(limit("getRandomJoke")).Get("/random", jokes.Random)
			r.With(limit("fetchRandomJoke")).Get("/external/random", jokes.External)
			r.With(limit("fetchJokeDetails")).Get("/{jokeId}", jokes.Get)
		})
	}

	if deps.Users != nil {
		users := NewUserHandler(deps.Users)
		r.Route("/users", func(r chi.Router) {
			r.Use(limit("manageUsers"))
			r.Post("/", users.Create)
			r.Get("/", users.List)
			r.Get("/{userId}", users.Get)
			r.Put("/{userId}", users.Update)
			r.Delete("/{userId}", users.Delete)
		})
	}

	return r
}
