package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const progressDrainTimeout = 5 * time.Second

// progressRegisterer receives the scrape progress collectors.
var progressRegisterer prometheus.Registerer = prometheus.DefaultRegisterer

func newScrapeCmd() *cobra.Command {
	var (
		mode      string
		startPage int
		maxPages  int
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Walks the listing and stores new articles",
		Long: `Fetches listing pages starting at scraper.start_page until a page has no
articles, storing every article whose permalink is not yet present. SIGINT
stops the run cleanly between articles.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			flags := cmd.Flags()
			if flags.Changed("mode") {
				rt.cfg.Scraper.Mode = strings.ToLower(strings.TrimSpace(mode))
			}
			if flags.Changed("start-page") {
				rt.cfg.Scraper.StartPage = startPage
			}
			if flags.Changed("max-pages") {
				rt.cfg.Scraper.MaxPages = maxPages
			}
			return runScrape(cmd, rt)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "eligibility mode: strict stores only articles with a date, body and image; show_all stores every article (default scraper.mode)")
	cmd.Flags().IntVar(&startPage, "start-page", 1, "first listing page to fetch")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 walks until an empty page)")
	return cmd
}

func runScrape(cmd *cobra.Command, rt *runtime) error {
	ctx := cmd.Context()
	if err := rt.cfg.Validate(); err != nil {
		return err
	}
	rt.app.Configure(rt.cfg)

	hub, err := rt.app.Progress(progressRegisterer)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressDrainTimeout)
		defer cancel()
		if cerr := hub.Close(drainCtx); cerr != nil {
			rt.logger.Warn("progress hub close", zap.Error(cerr))
		}
	}()

	driver, err := rt.app.Driver(ctx, hub)
	if err != nil {
		return fmt.Errorf("build scraper: %w", err)
	}
	summary, err := driver.Run(ctx)
	fmt.Fprintf(cmd.OutOrStdout(),
		"run=%s pages=%d seen=%d saved=%d duplicates=%d omitted=%d interrupted=%t\n",
		summary.RunID, summary.Pages, summary.Seen, summary.Saved,
		summary.Duplicates, summary.Omitted, summary.Interrupted,
	)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	return nil
}
