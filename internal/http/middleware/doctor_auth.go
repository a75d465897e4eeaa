package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/pkg/logging"
)

const doctorKey contextKey = "doctor"

// DoctorGroup is the identity group that may use the doctor dashboard.
const (
	DoctorGroup    = "doctors"
	FrontDeskGroup = "front-desk"
)

// RequireDoctor correlates the authenticated identity to a roster entry by
// exact e-mail. Identities that are not on the roster get 403.
func RequireDoctor(roster *doctors.Roster, logger *logging.Logger) func(http.Handler) http.Handler {
	if roster == nil {
		panic("middleware: roster required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				unauthorized(w, "not signed in")
				return
			}
			doc, err := roster.ByEmail(id.Email)
			if err != nil {
				logger.Warn("signed-in user is not on the doctor roster", "subject", id.Subject)
				http.Error(w, `{"error":"doctor profile not found"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDoctor(r.Context(), doc)))
		})
	}
}

// DoctorFromContext returns the doctor set by RequireDoctor.
func DoctorFromContext(ctx context.Context) (doctors.Doctor, bool) {
	doc, ok := ctx.Value(doctorKey).(doctors.Doctor)
	return doc, ok
}

// RequireGroup rejects identities outside group with 403. Identities that
// carry no groups at all are let through; HMAC staff tokens often have none.
func RequireGroup(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				unauthorized(w, "not signed in")
				return
			}
			if len(id.Groups) > 0 && !id.InGroup(group) {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DeskID names the front-desk context for a request: the X-Desk-Id header
// when set, otherwise the signed-in subject.
func DeskID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(DeskIDHeader)); v != "" {
		return v
	}
	if id, ok := IdentityFromContext(r.Context()); ok && id.Subject != "" {
		return id.Subject
	}
	return "default"
}

// WithDoctor returns ctx carrying doc, as RequireDoctor would set it.
func WithDoctor(ctx context.Context, doc doctors.Doctor) context.Context {
	return context.WithValue(ctx, doctorKey, doc)
}
