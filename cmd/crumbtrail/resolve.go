package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/engine"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/presenter"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/trail"
	"github.com/SanteonNL/crumbtrail/util"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	expand      bool
	overrideArg []string
	waitFor     time.Duration
)

var resolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Print the breadcrumb trail of one path",
	Long: "Navigate to PATH, wait for its names to resolve and print the rendered trail as JSON.\n" +
		"Overrides replace the display name of a raw segment, e.g. --override notice_board=Announcements.",
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&expand, "expand", false, "show the full trail instead of the collapsed one")
	resolveCmd.Flags().StringArrayVar(&overrideArg, "override", nil, "raw=name display override, may be repeated")
	resolveCmd.Flags().DurationVar(&waitFor, "wait", 15*time.Second, "how long to wait for pending names")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	source, closer, err := newSource(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	cache := namecache.New(log)
	dispatcher := resolver.NewDispatcher(cache, source, resolver.Config{LookupTimeout: cfg.LookupTimeout}, log)
	defer dispatcher.Close()

	view := resolvePath(cmd.Context(), cache, dispatcher, args[0], parseOverrides(overrideArg), expand, waitFor, log)
	return printView(cmd.OutOrStdout(), view)
}

// resolvePath navigates a fresh engine to path and returns its view once the
// lookups settled or wait passed.
func resolvePath(ctx context.Context, cache *namecache.Cache, dispatcher *resolver.Dispatcher, path string, overrides trail.Overrides, expand bool, wait time.Duration, log zerolog.Logger) presenter.View {
	e := engine.New(cache, dispatcher, engine.WithLogger(log))
	defer e.Close()

	if expand {
		e.Expand()
	}
	e.Navigate(path, overrides)

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := e.Wait(waitCtx); err != nil {
		log.Warn().Err(err).Dur("wait", wait).Msg("Names still pending")
	}
	return e.View()
}

func parseOverrides(pairs []string) trail.Overrides {
	values := util.ParseKeyValues(pairs)
	if len(values) == 0 {
		return nil
	}
	overrides := make(trail.Overrides, len(values))
	for raw, name := range values {
		overrides[raw] = trail.Override{Name: util.StringPtr(name)}
	}
	return overrides
}

func printView(w io.Writer, view presenter.View) error {
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling view: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
