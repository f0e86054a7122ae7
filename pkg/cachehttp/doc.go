// Package cachehttp exposes a pkg/cache instance over HTTP.
//
// The cache core knows nothing about transports; this adapter sits on the
// public registration API only. Handler serves the resource as JSON (each
// request is a one-shot registration, so concurrent requests coalesce
// into a single upstream fetch), accepts refresh requests, and streams
// state transitions over a WebSocket for observability dashboards.
//
//	h := cachehttp.NewHandler(reportCache).Timeout(5 * time.Second)
//	r := chi.NewRouter()
//	r.Mount("/reports/daily", h.Routes())
package cachehttp
