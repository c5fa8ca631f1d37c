package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/api/presenter"
)

const (
	adminRole = "admin"

	// Issuer is the iss claim of admin tokens.
	Issuer = "linkgate"
)

// MintAdminToken creates an HS256 admin token for subject valid for ttl.
func MintAdminToken(signingKey []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   Issuer,
		"sub":   subject,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"roles": []string{adminRole},
	})
	return token.SignedString(signingKey)
}

// AdminAuth is a middleware that checks for admin privileges in the JWT token.
// Requests are rejected with 503 if no signing key is configured.
func AdminAuth(signingKey []byte) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(signingKey) == 0 {
				presenter.Error(w, r, "admin api is disabled", http.StatusServiceUnavailable)
				return
			}

			auth := r.Header.Get("Authorization")
			tokenStr := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			if tokenStr == "" {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method")
				}
				return signingKey, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer))
			if err != nil || !token.Valid {
				presenter.Error(w, r, "invalid session token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				presenter.Error(w, r, "invalid claims", http.StatusUnauthorized)
				return
			}

			roles, ok := claims["roles"].([]any)
			if !ok {
				presenter.Error(w, r, "invalid claims", http.StatusUnauthorized)
				return
			}

			hasPrivilege := false
			for _, roleAny := range roles {
				roleStr, ok := roleAny.(string)
				if !ok {
					continue
				}
				if roleStr == adminRole {
					hasPrivilege = true
					break
				}
			}
			if !hasPrivilege {
				presenter.Error(w, r, "insufficient privileges", http.StatusUnauthorized)
				return
			}

			if sub, err := claims.GetSubject(); err == nil && sub != "" {
				log.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("admin", sub)
				})
			}

			next.ServeHTTP(w, r)
		})
	}
}
