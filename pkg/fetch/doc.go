// Package fetch provides ready-made fetch hooks for pkg/cache.
//
// Each constructor returns a cache.Fetcher that produces []byte inputs;
// pair it with a Transformer that decodes the bytes into the resource
// type. All fetchers run their I/O on a separate goroutine so the cache's
// queue is never blocked, and report failure as absence, matching the
// cache's "no distinct error" contract.
package fetch
