package chi

import (
	"context"
	"net/http"
	"strings"

	"github.com/studycat-io/studycat/internal/config"
	"github.com/studycat-io/studycat/internal/domain"
)

type actorKey struct{}

// ActorFromContext returns the request's actor, anonymous when none was
// resolved.
func ActorFromContext(ctx context.Context) domain.Actor {
	if a, ok := ctx.Value(actorKey{}).(domain.Actor); ok {
		return a
	}
	return domain.Anonymous()
}

// ActorMiddleware resolves the Bearer token to an actor identity. The
// catalog is public, so unknown or missing tokens degrade to an anonymous
// reader instead of rejecting the request; write endpoints then fail on the
// role checks downstream.
func ActorMiddleware(tokens []config.TokenConfig) func(http.Handler) http.Handler {
	byToken := make(map[string]domain.Actor, len(tokens))
	for _, t := range tokens {
		if t.Token == "" {
			continue
		}
		byToken[t.Token] = domain.Actor{ID: t.Subject, Admin: t.Admin}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := domain.Anonymous()

			const bearerPrefix = "Bearer "
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
				if a, ok := byToken[auth[len(bearerPrefix):]]; ok {
					actor = a
				}
			}

			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
