package middleware

import "net/http"

// RequireToken is [Guard] in [ModeTokenOnly]: the session header is ignored.
func RequireToken(resolver Resolver) func(http.Handler) http.Handler {
	return Guard(resolver, ModeTokenOnly)
}
