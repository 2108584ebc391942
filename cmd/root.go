// Package cmd defines the CLI commands of the newscrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-ingest-crawler/internal/app"
	"github.com/JakeFAU/news-ingest-crawler/internal/config"
	"github.com/JakeFAU/news-ingest-crawler/internal/logging"
)

type runtimeKey struct{}

// runtime is built once per invocation and shared with subcommands through
// the command context.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	app    *app.App
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = app.New

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "newscrawler",
		Short: "Scrapes a paginated news listing into an article store.",
		Long: `newscrawler walks a paginated news listing, extracts each article
fragment and persists new articles keyed by permalink. The serve command
exposes the stored articles over a read-only HTTP API.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			rt := &runtime{cfg: cfg, logger: logger, app: a}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey{}, rt))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON); env vars use the "+config.EnvPrefix+"_ prefix")
	cmd.AddCommand(newScrapeCmd(), newServeCmd())
	return cmd
}

// close releases application services and flushes the logger. Subcommands
// defer it so it also runs when they fail.
func (rt *runtime) close() {
	if err := rt.app.Close(); err != nil {
		rt.logger.Warn("close application services", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey{}).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("application services not initialized")
	}
	return rt, nil
}

// Execute runs the CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "newscrawler: %v\n", err)
		stop()
		os.Exit(1)
	}
}
