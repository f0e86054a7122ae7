package fetch

import (
	"io"
	"net/http"

	"github.com/vango-dev/rescache/pkg/cache"
)

// HTTP returns a fetcher that GETs the URL derived from the current
// parameter and produces the response body as the input. A nil client
// falls back to http.DefaultClient.
//
// Absence is reported for an empty URL, a transport error, or a non-2xx
// status; the cache treats all three the same way.
func HTTP[P, R any](client *http.Client, url func(p *P) string) cache.Fetcher[P, []byte, R] {
	if client == nil {
		client = http.DefaultClient
	}
	return func(s cache.State[P, []byte, R], done func(*[]byte)) {
		u := url(s.Parameter)
		if u == "" {
			done(nil)
			return
		}
		go func() {
			resp, err := client.Get(u)
			if err != nil {
				done(nil)
				return
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				done(nil)
				return
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				done(nil)
				return
			}
			done(&body)
		}()
	}
}
