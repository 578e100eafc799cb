package middleware

import (
	"context"
	"net/http"

	authflow "github.com/MrEthical07/authflow"
)

type stateContextKey struct{}

// StateFromContext returns the challenge state snapshot injected by [Gate].
func StateFromContext(ctx context.Context) (authflow.State, bool) {
	state, ok := ctx.Value(stateContextKey{}).(authflow.State)
	return state, ok
}

// Gate returns middleware that enforces the route decision table for every
// request. A request whose path the orchestrator decides must land elsewhere
// receives a 303 redirect; everything else passes through with the current
// state injected into the request context.
func Gate(orch *authflow.Orchestrator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if orch == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			current := authflow.Route(r.URL.Path)
			target, redirect := orch.Decide(current)
			if redirect {
				http.Redirect(w, r, string(target), http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), stateContextKey{}, orch.State())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated returns middleware for API routes that have no page to
// redirect to: non-authenticated requests get a 401 instead of a 303.
func RequireAuthenticated(orch *authflow.Orchestrator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if orch == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			state := orch.State()
			if !state.Authenticated() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), stateContextKey{}, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
