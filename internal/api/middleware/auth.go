package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys
type ContextKey string

// ContextKeyClaims is the context key for verified token claims
const ContextKeyClaims ContextKey = "claims"

// Roles carried in the token's role claim. Any verified token may change
// review state; the role is only recorded.
const (
	RoleAdmin  = "ADMIN"
	RolePolice = "POLICE"
)

// Claims are the staff token claims. Subject is the staff member's ID.
type Claims struct {
	Role      string `json:"role"`
	StationID *int64 `json:"station_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth verifies HS256 bearer tokens signed with secret. When issuer is
// set the token's iss claim must match it.
func JWTAuth(secret, issuer string) func(next http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflight carries no credentials
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(parts[1], claims, func(*jwt.Token) (any, error) {
				if secret == "" {
					return nil, errors.New("jwt secret not configured")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims returns the verified claims, or nil
func GetClaims(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ContextKeyClaims).(*Claims); ok {
		return claims
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
