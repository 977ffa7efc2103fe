package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Store   StoreConfig
	HTTP    HTTPConfig
	Sources SourcesConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// StoreConfig selects and locates the event store.
type StoreConfig struct {
	Driver        string // postgres, sqlite or memory
	DatabaseURL   string
	SQLitePath    string
	MigrationsDir string
}

// HTTPConfig controls outbound requests made by source adapters.
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultStoreDriver   = "postgres"
	defaultSQLitePath    = "eventhub.db"
	defaultMigrationsDir = "./migrations"

	defaultHTTPTimeout    = 30 * time.Second
	defaultHTTPMaxRetries = 2
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", defaultStoreDriver)),
			SQLitePath:    getEnv("SQLITE_PATH", defaultSQLitePath),
			MigrationsDir: getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
		},
		HTTP: HTTPConfig{
			Timeout:    defaultHTTPTimeout,
			MaxRetries: defaultHTTPMaxRetries,
		},
		Sources: DefaultSources(),
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HTTP_TIMEOUT_SECONDS: %w", err)
		}
		cfg.HTTP.Timeout = d
	}

	if v := os.Getenv("HTTP_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid HTTP_MAX_RETRIES: must be a non-negative integer")
		}
		cfg.HTTP.MaxRetries = n
	}

	switch cfg.Store.Driver {
	case "postgres":
		dbURL, err := buildDatabaseURL()
		if err != nil {
			return Config{}, err
		}
		cfg.Store.DatabaseURL = dbURL
	case "sqlite", "memory":
	default:
		return Config{}, fmt.Errorf("invalid STORE_DRIVER: must be 'postgres', 'sqlite' or 'memory'")
	}

	if path := os.Getenv("SOURCES_CONFIG"); path != "" {
		sources, err := LoadSources(path)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SOURCES_CONFIG: %w", err)
		}
		cfg.Sources = sources
	}

	// Credentials always come from the environment when present.
	if v := os.Getenv("EVENTBRITE_API_KEY"); v != "" {
		cfg.Sources.Eventbrite.APIKey = v
	}
	if v := os.Getenv("SERPAPI_KEY"); v != "" {
		cfg.Sources.SerpAPI.APIKey = v
	}

	return cfg, nil
}

// buildDatabaseURL prefers DATABASE_URL and otherwise assembles a Cloud SQL
// unix-socket DSN from INSTANCE_CONNECTION_NAME, DB_USER, DB_PASSWORD, DB_NAME.
func buildDatabaseURL() (string, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL, nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", fmt.Errorf("DATABASE_URL or INSTANCE_CONNECTION_NAME must be set when STORE_DRIVER=postgres")
	}

	user, name := os.Getenv("DB_USER"), os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	dsn := fmt.Sprintf("host=/cloudsql/%s user=%s dbname=%s sslmode=disable", instance, user, name)
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		dsn += " password=" + password
	}
	return dsn, nil
}

// RedactedDatabaseURL hides the password of a postgres:// URL for logging.
func (s StoreConfig) RedactedDatabaseURL() string {
	u := s.DatabaseURL
	if !strings.HasPrefix(u, "postgresql://") && !strings.HasPrefix(u, "postgres://") {
		if i := strings.Index(u, "password="); i >= 0 {
			return u[:i] + "password=***"
		}
		return u
	}

	at := strings.LastIndex(u, "@")
	scheme := strings.Index(u, "://") + 3
	if at < scheme {
		return u
	}
	userInfo := u[scheme:at]
	if colon := strings.Index(userInfo, ":"); colon >= 0 {
		return u[:scheme] + userInfo[:colon] + ":***" + u[at:]
	}
	return u
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
