// Package main hosts the newscrawler entrypoint.
//
// Architecture overview:
//   - Scrape: cmd scrape builds a scraper.Driver from config. The driver fetches listing pages one at a time
//     (chromedp headless, Colly static, or a static probe promoted to headless by the heuristic detector),
//     enumerates article fragments with goquery, skips permalinks already stored, extracts the rest and persists
//     eligible records through the article store. A page with no articles ends the run.
//   - Persistence & fanout: articles go to Postgres when db.dsn is set, otherwise to an in-memory store. Listing
//     snapshots are optionally archived to memory, local disk or GCS, and every stored article is announced on
//     Pub/Sub when a topic is configured.
//   - Serve: cmd serve exposes the stored articles through a chi router with health, readiness and Prometheus
//     endpoints.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; the
//     progress Hub batches run events for the log and Prometheus sinks.
//
// Operational notes:
//   - SIGINT/SIGTERM cancel the root context. A scrape stops at the next page or article boundary and reports an
//     interrupted summary; serve drains in-flight requests.
//   - A listing that never yields an empty page never terminates; use --max-pages to bound a run.
//
// Quick checklist:
//   - Configure env vars: NEWSCRAWLER_SCRAPER_LISTING_URL (or BASE_URL_NEWS), NEWSCRAWLER_SCRAPER_PAGINATION_SUFFIX
//     (or PAGINATION_SUFFIX), NEWSCRAWLER_SCRAPER_IMAGE_BASE_URL (or BASE_URL), NEWSCRAWLER_HEADLESS_EXEC_PATH
//     (or CHROMEDRIVER_PATH), NEWSCRAWLER_DB_DSN.
//   - Run locally: go run ./cmd/newscrawler scrape --config config.yaml, then go run ./cmd/newscrawler serve.
package main
