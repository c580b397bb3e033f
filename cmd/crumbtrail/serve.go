package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/api"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	maxWait    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve breadcrumb trails over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address, overrides CRUMBTRAIL_LISTEN_ADDR")
	serveCmd.Flags().DurationVar(&maxWait, "max-wait", 15*time.Second, "longest a request may wait for pending names")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	log := newLogger(cfg.LogLevel)
	log.Debug().Msg("Starting crumbtrail")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closer, err := newSource(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Str("source", cfg.Source).Msg("Failed to set up name source")
		return err
	}
	defer closer.Close()

	cache := namecache.New(log)
	dispatcher := resolver.NewDispatcher(cache, source, resolver.Config{LookupTimeout: cfg.LookupTimeout}, log)
	defer dispatcher.Close()

	sessions := api.NewSessionStore(cache, dispatcher, cfg.SessionTTL, log)
	defer sessions.Stop()

	router := api.NewTrailRouter(sessions, cache, maxWait, log)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("source", cfg.Source).Msg("Listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped")
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		return err
	}
	return nil
}
