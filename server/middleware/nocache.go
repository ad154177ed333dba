package middleware

import "net/http"

// NoCache returns middleware that keeps browsers from caching build output.
// Conditional request headers are dropped so a rebuilt file is always sent
// in full after a reload.
func NoCache() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del("If-Modified-Since")
			r.Header.Del("If-None-Match")

			h := w.Header()
			h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
			next.ServeHTTP(w, r)
		})
	}
}
