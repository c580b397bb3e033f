package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	SourceHTTP = "http"
	SourceSQL  = "sql"
)

type Config struct {
	ListenAddr string
	LogLevel   zerolog.Level

	// Source selects where names are read from: SourceHTTP or SourceSQL
	Source string

	APIURL      string
	APIToken    string
	HTTPRetries int
	HTTPTimeout time.Duration
	HTTPCache   bool

	DatabaseURL string

	LookupTimeout time.Duration
	SessionTTL    time.Duration
}

// Default returns a Config with every optional value filled in
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		LogLevel:      zerolog.InfoLevel,
		Source:        SourceHTTP,
		HTTPRetries:   3,
		HTTPTimeout:   30 * time.Second,
		LookupTimeout: 10 * time.Second,
		SessionTTL:    30 * time.Minute,
	}
}

// Load reads the optional .env file and then the CRUMBTRAIL_* environment
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv
func FromEnv(getenv func(string) string) (Config, error) {
	config := Default()
	var errs []error

	setString := func(key string, target *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*target = v
		}
	}
	setDuration := func(key string, target *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*target = d
	}

	setString("CRUMBTRAIL_LISTEN_ADDR", &config.ListenAddr)
	setString("CRUMBTRAIL_SOURCE", &config.Source)
	setString("CRUMBTRAIL_API_URL", &config.APIURL)
	setString("CRUMBTRAIL_API_TOKEN", &config.APIToken)
	setString("CRUMBTRAIL_DATABASE_URL", &config.DatabaseURL)
	setDuration("CRUMBTRAIL_HTTP_TIMEOUT", &config.HTTPTimeout)
	setDuration("CRUMBTRAIL_LOOKUP_TIMEOUT", &config.LookupTimeout)
	setDuration("CRUMBTRAIL_SESSION_TTL", &config.SessionTTL)

	if v := strings.TrimSpace(getenv("CRUMBTRAIL_LOG_LEVEL")); v != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("CRUMBTRAIL_LOG_LEVEL: %w", err))
		} else {
			config.LogLevel = level
		}
	}
	if v := strings.TrimSpace(getenv("CRUMBTRAIL_HTTP_RETRIES")); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil || retries < 0 {
			errs = append(errs, fmt.Errorf("CRUMBTRAIL_HTTP_RETRIES: invalid value %q", v))
		} else {
			config.HTTPRetries = retries
		}
	}
	if v := strings.TrimSpace(getenv("CRUMBTRAIL_HTTP_CACHE")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CRUMBTRAIL_HTTP_CACHE: %w", err))
		} else {
			config.HTTPCache = enabled
		}
	}

	config.Source = strings.ToLower(config.Source)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate reports the settings the selected source cannot do without
func (c Config) Validate() error {
	switch c.Source {
	case SourceHTTP:
		if c.APIURL == "" {
			return fmt.Errorf("CRUMBTRAIL_API_URL is required for the %s source", SourceHTTP)
		}
	case SourceSQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("CRUMBTRAIL_DATABASE_URL is required for the %s source", SourceSQL)
		}
	default:
		return fmt.Errorf("unknown source %q, expected %s or %s", c.Source, SourceHTTP, SourceSQL)
	}
	if c.LookupTimeout <= 0 {
		return fmt.Errorf("lookup timeout must be positive")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session TTL must not be negative, use 0 to keep sessions forever")
	}
	return nil
}
