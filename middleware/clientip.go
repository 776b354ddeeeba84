package middleware

import (
	"net"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// ClientIP attaches the request's remote IP to the context with
// goSession.WithClientIP. Proxy headers are not trusted.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		if ip == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(goSession.WithClientIP(r.Context(), ip)))
	})
}
