package middleware

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// StaffClaims are the claims of an HMAC-signed staff token. These tokens
// are used when no Cognito user pool is configured.
type StaffClaims struct {
	jwt.RegisteredClaims
	Email  string   `json:"email"`
	Groups []string `json:"groups,omitempty"`
}

// StaffJWT validates HS256 staff tokens and stores the Identity.
func StaffJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				unauthorized(w, "staff auth disabled")
				return
			}
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing authorization header")
				return
			}
			claims := &StaffClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}
			ctx := withIdentity(r.Context(), Identity{
				Subject: claims.Subject,
				Email:   claims.Email,
				Groups:  claims.Groups,
				Issuer:  "staff",
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
