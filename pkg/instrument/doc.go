// Package instrument provides observability decorators for pkg/cache.
//
// Metrics attaches Prometheus counters, gauges, and histograms to a cache
// via a state observer and hook wrappers; TraceFetcher and TraceTransformer
// wrap the cache's hooks in OpenTelemetry spans. Both are strictly
// additive: the cache itself stays observability-free and the decorators
// compose with any fetcher or transformer.
package instrument
