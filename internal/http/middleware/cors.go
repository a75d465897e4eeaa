package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DeskIDHeader carries the front-desk context on intake requests.
const DeskIDHeader = "X-Desk-Id"

// baseCORSHeaders are the request headers the clinic API itself reads.
var baseCORSHeaders = []string{"Authorization", "Content-Type", DeskIDHeader, "X-Request-ID"}

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins is an allowlist; "*" echoes any Origin back.
	AllowedOrigins []string
	// ExtraHeaders are allowed on top of the headers the API reads.
	ExtraHeaders []string
	// MaxAge caps how long browsers cache a preflight. Zero means 10 minutes.
	MaxAge time.Duration
}

// CORS provides an allowlist-based CORS middleware.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowAny := false
	allow := map[string]struct{}{}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAny = true
			continue
		}
		allow[origin] = struct{}{}
	}

	allowedHeaders := strings.Join(mergeHeaders(baseCORSHeaders, cfg.ExtraHeaders), ", ")
	allowedMethods := "GET, POST, PATCH, DELETE, OPTIONS"
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && (allowAny || isAllowedOrigin(allow, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", maxAgeSeconds)
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// mergeHeaders appends extra to base in canonical form, skipping blanks and
// names already present.
func mergeHeaders(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, h := range list {
			h = http.CanonicalHeaderKey(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

func isAllowedOrigin(allow map[string]struct{}, origin string) bool {
	_, ok := allow[origin]
	return ok
}
