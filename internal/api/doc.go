// Package api hosts the operator HTTP server used in watch mode. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs/last for the summary of the latest run.
//   - POST /v1/runs to start a run outside the schedule.
package api
