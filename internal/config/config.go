// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/JeanGrijp/joker/internal/core/domain"
)

type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Storage     StorageConfig
	RateLimiter RateLimiterConfig
	Jokes       JokesConfig
}

type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	// Type selects the relational backend: postgres, mysql or sqlite.
	Type        string
	DatabaseURL string
	MaxConns    int
	MaxIdle     int
	// LimiterBackend moves policies and the request log to redis when set to "redis".
	LimiterBackend string
	Redis          RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type RateLimiterConfig struct {
	DefaultHandler string
	Handlers       map[string]string
	Policies       []domain.Policy
	Location       *time.Location
}

type JokesConfig struct {
	ProviderURL     string
	ProviderTimeout time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	requestTimeout, err := getSeconds("REQUEST_TIMEOUT_SECONDS", "30")
	if err != nil {
		return Config{}, err
	}

	storage, err := buildStorageConfig()
	if err != nil {
		return Config{}, err
	}

	rateLimiter, err := buildRateLimiterConfig()
	if err != nil {
		return Config{}, err
	}

	providerTimeout, err := getSeconds("JOKE_PROVIDER_TIMEOUT_SECONDS", "5")
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			RequestTimeout: requestTimeout,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Storage:     storage,
		RateLimiter: rateLimiter,
		Jokes: JokesConfig{
			ProviderURL:     getEnv("JOKE_PROVIDER_URL", "https://api.litellm.com/jokes/random"),
			ProviderTimeout: providerTimeout,
		},
	}, nil
}

func buildStorageConfig() (StorageConfig, error) {
	maxConns, err := strconv.Atoi(getEnv("DATABASE_MAX_CONNS", "25"))
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid DATABASE_MAX_CONNS: %w", err)
	}
	maxIdle, err := strconv.Atoi(getEnv("DATABASE_MAX_IDLE", "5"))
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid DATABASE_MAX_IDLE: %w", err)
	}

	redisConfig, err := buildRedisConfig()
	if err != nil {
		return StorageConfig{}, err
	}

	return StorageConfig{
		Type:           getEnv("STORAGE_TYPE", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", "file:joker.db?_foreign_keys=on"),
		MaxConns:       maxConns,
		MaxIdle:        maxIdle,
		LimiterBackend: getEnv("RATE_LIMIT_BACKEND", "sql"),
		Redis:          redisConfig,
	}, nil
}

func buildRedisConfig() (RedisConfig, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return RedisConfig{
		Host:     host,
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func buildRateLimiterConfig() (RateLimiterConfig, error) {
	handlers, err := buildHandlerMapping()
	if err != nil {
		return RateLimiterConfig{}, err
	}

	policies, err := buildPolicies()
	if err != nil {
		return RateLimiterConfig{}, err
	}

	location := time.Local
	if name := strings.TrimSpace(os.Getenv("RATE_LIMIT_TIMEZONE")); name != "" {
		location, err = time.LoadLocation(name)
		if err != nil {
			return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_TIMEZONE: %w", err)
		}
	}

	return RateLimiterConfig{
		DefaultHandler: getEnv("RATE_LIMIT_DEFAULT_HANDLER", "jokes"),
		Handlers:       handlers,
		Policies:       policies,
		Location:       location,
	}, nil
}

func buildHandlerMapping() (map[string]string, error) {
	raw := getEnv("RATE_LIMIT_HANDLERS", "checkRateLimit:jokes,getRandomJoke:jokes,fetchJokeDetails:jokes,fetchRandomJoke:jokes,manageUsers:users")
	if raw == "-" {
		return map[string]string{}, nil
	}

	mapping := make(map[string]string)
	for _, item := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(item), ":")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("handler mapping must follow HANDLER:RESOURCE: %s", item)
		}
		mapping[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return mapping, nil
}

// buildPolicies lê RATE_LIMIT_POLICIES no formato
// RESOURCE:MAX_COUNT:WINDOW_SECONDS[:PATH[:ROLE]], separados por vírgula.
func buildPolicies() ([]domain.Policy, error) {
	raw := strings.TrimSpace(getEnv("RATE_LIMIT_POLICIES", "jokes:100:86400:/jokes/random:API_User,users:1000:86400:/users:API_Admin"))
	if raw == "-" {
		return nil, nil
	}

	var policies []domain.Policy
	for _, item := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(item), ":")
		if len(parts) < 3 || len(parts) > 5 {
			return nil, fmt.Errorf("policy must follow RESOURCE:MAX_COUNT:WINDOW_SECONDS[:PATH[:ROLE]]: %s", item)
		}

		resource := strings.TrimSpace(parts[0])
		maxCount, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid max count for resource %s: %w", resource, err)
		}
		windowSeconds, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid window seconds for resource %s: %w", resource, err)
		}

		policy := domain.Policy{
			ResourceID: resource,
			HandlerID:  resource,
			MaxCount:   maxCount,
			Window:     time.Duration(windowSeconds) * time.Second,
			Role:       domain.RoleSystemOperator,
		}
		if len(parts) > 3 {
			policy.Path = strings.TrimSpace(parts[3])
		}
		if len(parts) > 4 {
			role, ok := domain.ParseRole(parts[4])
			if !ok {
				return nil, fmt.Errorf("invalid role for resource %s: %s", resource, parts[4])
			}
			policy.Role = role
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("invalid policy for resource %s: %w", resource, err)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

func getSeconds(key, fallback string) (time.Duration, error) {
	seconds, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
