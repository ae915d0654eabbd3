package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	QueryTimeout    time.Duration

	TablePlaceholder   string
	DialectsFile       string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	CORSOrigins        []string

	// Optional column sources; empty means not configured.
	DatabaseURL   string
	MySQLDSN      string
	ClickHouseDSN string
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from .env files and environment variables.
// With no files given, ./.env is loaded if it exists.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		// Load .env file if it exists (silently ignore if missing)
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an environment lookup function.
func FromLookup(lookup LookupFunc) (*Config, error) {
	e := env{lookup: lookup}
	cfg := &Config{
		Port:               e.str("PORT", "8080"),
		ReadTimeout:        e.duration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       e.duration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		QueryTimeout:       e.duration("QUERY_TIMEOUT", 10*time.Second),
		TablePlaceholder:   e.str("TABLE_PLACEHOLDER", "表名"),
		DialectsFile:       e.str("DIALECTS_FILE", ""),
		RateLimitPerMinute: e.integer("RATE_LIMIT_PER_MINUTE", 100),
		MaxBodyBytes:       int64(e.integer("MAX_BODY_BYTES", 1<<20)),
		CORSOrigins:        e.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DatabaseURL:        e.str("DATABASE_URL", ""),
		MySQLDSN:           e.str("MYSQL_SOURCE_DSN", ""),
		ClickHouseDSN:      e.str("CLICKHOUSE_SOURCE_DSN", ""),
	}
	if e.err != nil {
		return nil, e.err
	}
	if cfg.RateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	return cfg, nil
}

// env collects the first parse error so Load can report it once.
type env struct {
	lookup LookupFunc
	err    error
}

func (e *env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		if e.err == nil {
			e.err = fmt.Errorf("invalid %s %q: want a positive duration like 10s", key, v)
		}
		return def
	}
	return d
}

func (e *env) integer(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if e.err == nil {
			e.err = fmt.Errorf("invalid %s: %w", key, err)
		}
		return def
	}
	return n
}

func (e *env) list(key string, def []string) []string {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
