package httputil

import (
	"context"
	"net/http"
	"strings"

	"github.com/plantops/breakdown-board/internal/domain"
)

// Token headers used by the floor terminals and the admin console.
const (
	TechTokenHeader  = "X-Tech-Token"
	AdminTokenHeader = "X-Admin-Token"
)

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if originsSet[origin] || originsSet["*"] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TechTokenHeader+", "+AdminTokenHeader)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

const actorKey contextKey = "actor"

// TechAuthenticator resolves a technician session token to an actor.
type TechAuthenticator interface {
	AuthenticateTech(ctx context.Context, token string) (domain.Actor, error)
}

// AdminAuthenticator resolves an admin session token.
type AdminAuthenticator interface {
	AuthenticateAdmin(ctx context.Context, token string) (domain.Actor, error)
}

// TechAuth rejects requests without a valid technician session and puts
// the resolved actor into the request context.
func TechAuth(auth TechAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(TechTokenHeader))
			if token == "" {
				Error(w, http.StatusUnauthorized, "missing technician token")
				return
			}

			actor, err := auth.AuthenticateTech(r.Context(), token)
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// AdminAuth rejects requests without a valid admin session.
func AdminAuth(auth AdminAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(AdminTokenHeader))
			if token == "" {
				Error(w, http.StatusUnauthorized, "missing admin token")
				return
			}

			actor, err := auth.AuthenticateAdmin(r.Context(), token)
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// AnyAuth accepts either a technician or an admin session. Used by the
// history endpoint, where the resolved actor decides result scoping.
func AnyAuth(tech TechAuthenticator, admin AdminAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := strings.TrimSpace(r.Header.Get(AdminTokenHeader)); token != "" {
				if actor, err := admin.AuthenticateAdmin(r.Context(), token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
					return
				}
			}
			if token := strings.TrimSpace(r.Header.Get(TechTokenHeader)); token != "" {
				if actor, err := tech.AuthenticateTech(r.Context(), token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
					return
				}
			}
			Error(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// WithActor stores the authenticated actor in the context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor extracts the authenticated actor from the context.
func GetActor(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}
