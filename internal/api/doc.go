// Package api hosts the read-only HTTP server over stored articles. Notable
// routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /articles and its filtered variants for article lookups. List
//     endpoints return {"articles": [...]} and accept limit and offset query
//     parameters.
package api
