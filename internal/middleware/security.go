// internal/middleware/security.go
//
// Security-header middleware.
//
// Injects defensive headers on every response:
//
//   • X-Content-Type-Options    –  MIME-sniffing defence
//   • X-Frame-Options           –  click-jacking defence
//   • Referrer-Policy           –  drops path/query from Referer
//
// Notes
// -----
// • Headers are set *before* next.ServeHTTP so they are part of the flushed
//   header block; the middleware never overwrites an existing value.
// • The service speaks JSON only, so no Content-Security-Policy is set; a
//   TLS-terminating proxy in front of it owns HSTS.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		xfo   = "DENY"
		nosn  = "nosniff"
		refer = "strict-origin-when-cross-origin"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		add := w.Header().Add // shorthand

		if w.Header().Get("X-Frame-Options") == "" {
			add("X-Frame-Options", xfo)
		}
		if w.Header().Get("X-Content-Type-Options") == "" {
			add("X-Content-Type-Options", nosn)
		}
		if w.Header().Get("Referrer-Policy") == "" {
			add("Referrer-Policy", refer)
		}

		next.ServeHTTP(w, r)
	})
}
