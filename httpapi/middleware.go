// Package httpapi exposes the action and read surfaces over HTTP, binding
// gorilla/mux routes to an action.Pipeline, the sync fabric, and the spatial
// analyzer. It is the outermost layer: every handler here either accepts or
// rejects a request and then delegates entirely to an inner package.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"weltgrid/auth"
	"weltgrid/worldstore"
)

type contextKey int

const agentIDKey contextKey = 0

// AgentRegistry is the narrow seam httpapi needs beyond worldstore.Store's
// in-memory view: the entry endpoint must be able to create or refresh an
// agent's durable row, not just touch the live one.
type AgentRegistry interface {
	UpsertAgent(agent worldstore.Agent) error
}

// AuthMiddleware verifies the bearer session token on every action request,
// then rebinds it against the stored agent per §6.1: a token whose
// ownerWallet no longer matches the agent's recorded owner is
// auth/token-mismatch, not a generic 401, since the distinction matters to a
// client deciding whether to re-authenticate or give up.
func AuthMiddleware(verifier *auth.Verifier, issuer *auth.TokenIssuer, store *worldstore.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "auth/unauthorized", "missing bearer token")
				return
			}

			claims, err := issuer.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "auth/unauthorized", "invalid or expired session token")
				return
			}

			agent, ok := store.GetAgent(claims.AgentID)
			if !ok {
				writeError(w, http.StatusUnauthorized, "auth/unauthorized", "unknown agent")
				return
			}

			if err := verifier.Rebind(claims, agent.OwnerID); err != nil {
				writeError(w, http.StatusUnauthorized, "auth/token-mismatch", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), agentIDKey, claims.AgentID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func agentIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(agentIDKey).(string)
	return id
}
