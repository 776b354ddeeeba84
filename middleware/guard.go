package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// SessionHeader carries a raw session id when no bearer token is sent.
const SessionHeader = "X-Session-ID"

// Mode selects which credentials a guard accepts.
type Mode uint8

const (
	// ModeAny accepts a bearer token first, then the session header.
	ModeAny Mode = iota
	// ModeTokenOnly accepts only a bearer session token.
	ModeTokenOnly
)

// Resolver looks up sessions. *goSession.Service implements it.
type Resolver interface {
	GetSession(ctx context.Context, id string) (*goSession.Session, error)
	SessionFromToken(ctx context.Context, token string) (*goSession.Session, error)
}

type sessionContextKey struct{}

// SessionFromContext returns the session stored by a guard.
func SessionFromContext(ctx context.Context) (*goSession.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*goSession.Session)
	return sess, ok && sess != nil
}

// RequireSession rejects requests without a live session, accepting either
// a bearer session token or the [SessionHeader] header.
func RequireSession(resolver Resolver) func(http.Handler) http.Handler {
	return Guard(resolver, ModeAny)
}

// Guard returns middleware that resolves the session according to mode.
// Missing or unknown credentials get 401; backend outages get 503.
func Guard(resolver Resolver, mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := resolve(r, resolver, mode)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var errNoCredentials = errors.New("no session credentials")

func resolve(r *http.Request, resolver Resolver, mode Mode) (*goSession.Session, error) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return resolver.SessionFromToken(r.Context(), token)
	}
	if mode == ModeTokenOnly {
		return nil, errNoCredentials
	}
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return resolver.GetSession(r.Context(), id)
	}
	return nil, errNoCredentials
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, goSession.ErrBackendUnavailable) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
