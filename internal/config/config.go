package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrMissingLLMBaseURL  = errors.New("LLM_BASE_URL is required")
)

type Config struct {
	Server Server
	DB     DB
	Redis  Redis
	LLM    LLM
	Search Search
	Blob   Blob
	Auth   Auth
	Rate   Rate
	Log    Log
}

type Server struct {
	ListenAddr     string
	HealthPath     string
	MetricsPath    string
	RequestTimeout time.Duration
}

type DB struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type LLM struct {
	BaseURL       string
	APIKey        string
	DefaultModel  string
	ClientTimeout time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
}

type Search struct {
	DuckDuckGoURL   string
	WikipediaURL    string
	ProviderTimeout time.Duration
}

type Blob struct {
	Dir     string
	BaseURL string
}

type Auth struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type Rate struct {
	MessagesPerHour int64
}

type Log struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: Server{
			ListenAddr:     mustEnv("LISTEN_ADDR", ":8080"),
			HealthPath:     mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath:    mustEnv("METRICS_PATH", "/metrics"),
			RequestTimeout: mustDuration("REQUEST_TIMEOUT", 60*time.Second),
		},
		DB: DB{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "postgres")),
			DSN:         mustEnv("DB_DSN", ""),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Redis: Redis{
			Addr:     mustEnv("REDIS_ADDR", ""),
			Password: mustEnv("REDIS_PASSWORD", ""),
			DB:       mustInt("REDIS_DB", 0),
		},
		LLM: LLM{
			BaseURL:       mustEnv("LLM_BASE_URL", ""),
			APIKey:        mustEnv("LLM_API_KEY", ""),
			DefaultModel:  mustEnv("LLM_DEFAULT_MODEL", "gpt-4.1-nano"),
			ClientTimeout: mustDuration("LLM_TIMEOUT", 30*time.Second),
			MaxRetries:    mustInt("LLM_MAX_RETRIES", 2),
			BackoffBase:   mustDuration("LLM_BACKOFF_BASE", 400*time.Millisecond),
		},
		Search: Search{
			DuckDuckGoURL:   mustEnv("SEARCH_DDG_URL", "https://api.duckduckgo.com/"),
			WikipediaURL:    mustEnv("SEARCH_WIKI_URL", "https://en.wikipedia.org/w/api.php"),
			ProviderTimeout: mustDuration("SEARCH_TIMEOUT", 10*time.Second),
		},
		Blob: Blob{
			Dir:     mustEnv("BLOB_DIR", "data/blobs"),
			BaseURL: mustEnv("BLOB_BASE_URL", "http://localhost:8080/blobs"),
		},
		Auth: Auth{
			JWTSecret: mustEnv("JWT_SECRET", ""),
			TokenTTL:  mustDuration("TOKEN_TTL", 72*time.Hour),
		},
		Rate: Rate{
			MessagesPerHour: int64(mustInt("RATE_LIMIT_PER_HOUR", 120)),
		},
		Log: Log{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if cfg.LLM.BaseURL == "" {
		return nil, ErrMissingLLMBaseURL
	}
	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "pgx" && cfg.DB.Driver != "sqlite" && cfg.DB.Driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	return cfg, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
