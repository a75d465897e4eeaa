package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated staff member behind a request, whichever
// token issuer vouched for them.
type Identity struct {
	Subject string
	Email   string
	Groups  []string
	Issuer  string
}

// InGroup reports whether the identity carries group g.
func (id Identity) InGroup(g string) bool {
	for _, have := range id.Groups {
		if strings.EqualFold(have, g) {
			return true
		}
	}
	return false
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by an auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" && strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		// Browsers cannot set headers on a websocket handshake.
		token := strings.TrimSpace(r.URL.Query().Get("access_token"))
		return token, token != ""
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
