package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/config"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/lookup"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "crumbtrail",
	Short: "Breadcrumb trails for care application paths",
	Long: "crumbtrail turns application paths into breadcrumb trails, resolving facility, " +
		"patient and encounter identifiers into display names.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file with CRUMBTRAIL_* settings")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).
		Level(level).
		With().Timestamp().Caller().Logger()
}

// loadConfig reads and validates the configuration
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newSource builds the name source selected in cfg. The returned closer
// releases its resources.
func newSource(ctx context.Context, cfg config.Config, log zerolog.Logger) (resolver.NameSource, io.Closer, error) {
	switch cfg.Source {
	case config.SourceHTTP:
		client, err := lookup.NewClient(lookup.ClientConfig{
			BaseURI:   cfg.APIURL,
			Token:     cfg.APIToken,
			RetryMax:  cfg.HTTPRetries,
			Timeout:   cfg.HTTPTimeout,
			HTTPCache: cfg.HTTPCache,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create API client: %w", err)
		}
		return client, closerFunc(func() error { return nil }), nil
	case config.SourceSQL:
		source, err := lookup.ConnectSQLSource(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		return source, source, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
