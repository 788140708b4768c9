// Package api hosts the optional operator HTTP endpoint for a crawl run.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /status for the dispatcher state.
//   - GET /metrics for Prometheus scraping.
package api
