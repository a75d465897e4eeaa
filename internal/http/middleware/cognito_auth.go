package middleware

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CognitoConfig holds AWS Cognito configuration for JWT validation.
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string // app client id, checked as audience or client_id
}

func (c CognitoConfig) Enabled() bool {
	return c.Region != "" && c.UserPoolID != ""
}

func (c CognitoConfig) issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// CognitoClaims represents the claims in a Cognito JWT.
type CognitoClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	CognitoGroups []string `json:"cognito:groups"`
	TokenUse      string   `json:"token_use"`
	ClientID      string   `json:"client_id"`
}

// keySet caches one issuer's signing keys.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func newKeySet(url string) *keySet {
	return &keySet{url: url, ttl: time.Hour, client: &http.Client{Timeout: 10 * time.Second}}
}

// key returns the public key for kid, refreshing the set when it is stale or
// the kid is unknown (Cognito rotates keys).
func (k *keySet) key(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	if time.Now().Before(k.expires) {
		if key, ok := k.keys[kid]; ok {
			k.mu.RUnlock()
			return key, nil
		}
	}
	k.mu.RUnlock()

	keys, err := fetchJWKS(k.client, k.url)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.keys = keys
	k.expires = time.Now().Add(k.ttl)
	k.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}
	return key, nil
}

// CognitoJWT validates ID and access tokens issued by the configured user
// pool and stores the Identity.
func CognitoJWT(cfg CognitoConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				unauthorized(w, "cognito auth not configured")
			})
		}
	}
	issuer := cfg.issuer()
	return cognitoJWT(cfg, issuer, newKeySet(issuer+"/.well-known/jwks.json"))
}

func cognitoJWT(cfg CognitoConfig, issuer string, keys *keySet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing authorization header")
				return
			}

			claims := &CognitoClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				kid, _ := t.Header["kid"].(string)
				if kid == "" {
					return nil, fmt.Errorf("missing key id")
				}
				return keys.key(kid)
			}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}
			if !clientMatches(cfg.ClientID, claims) {
				unauthorized(w, "invalid audience")
				return
			}

			ctx := withIdentity(r.Context(), Identity{
				Subject: claims.Subject,
				Email:   claims.Email,
				Groups:  claims.CognitoGroups,
				Issuer:  "cognito",
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientMatches checks aud for ID tokens and client_id for access tokens.
func clientMatches(clientID string, claims *CognitoClaims) bool {
	if clientID == "" {
		return true
	}
	switch claims.TokenUse {
	case "id":
		aud, _ := claims.GetAudience()
		for _, a := range aud {
			if a == clientID {
				return true
			}
		}
		return false
	case "access":
		return claims.ClientID == clientID
	default:
		return false
	}
}

// CognitoOrStaffJWT routes RS256 tokens with a key id to Cognito and
// everything else to the HMAC staff validator.
func CognitoOrStaffJWT(cognitoCfg CognitoConfig, staffSecret string) func(http.Handler) http.Handler {
	cognitoMW := CognitoJWT(cognitoCfg)
	staffMW := StaffJWT(staffSecret)

	return func(next http.Handler) http.Handler {
		viaCognito := cognitoMW(next)
		viaStaff := staffMW(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing authorization header")
				return
			}
			if cognitoCfg.Enabled() && looksLikeCognito(tokenString) {
				viaCognito.ServeHTTP(w, r)
				return
			}
			viaStaff.ServeHTTP(w, r)
		})
	}
}

func looksLikeCognito(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if json.Unmarshal(raw, &header) != nil {
		return false
	}
	return header.Alg == "RS256" && header.Kid != ""
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func fetchJWKS(client *http.Client, url string) (map[string]*rsa.PublicKey, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed with status %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			continue
		}
		keys[key.Kid] = pubKey
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid RSA keys found in JWKS")
	}
	return keys, nil
}

// parseRSAPublicKey decodes base64url modulus and exponent.
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}
