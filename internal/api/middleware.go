/**
 * @description
 * This file contains the authentication middleware for the verification API.
 * Bearer tokens are issued by the CarePro backend (HS256 JWTs); this service
 * validates them locally, extracts the user id and roles, and keeps the raw token
 * in the request context so it can be passed through to the backend on forward.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthContextKey is a custom type for the context key to avoid collisions.
type AuthContextKey string

const (
	userIDKey    AuthContextKey = "userID"
	authTokenKey AuthContextKey = "authToken"
	rolesKey     AuthContextKey = "roles"
)

// Claim names the ASP.NET backend uses alongside the registered ones.
const (
	claimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimRoleURI        = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// AuthMiddleware validates the bearer token and stores the caller in the context.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	secret := []byte(cfg.Secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeEnvelope(w, http.StatusUnauthorized, statusUnauthorized, "Authorization header required", nil)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				writeEnvelope(w, http.StatusUnauthorized, statusUnauthorized, "Invalid Authorization header format", nil)
				return
			}
			tokenString := strings.TrimSpace(parts[1])

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			}, opts...)
			if err != nil || !token.Valid || len(secret) == 0 {
				writeEnvelope(w, http.StatusUnauthorized, statusUnauthorized, "Invalid token", nil)
				return
			}

			userID := firstStringClaim(claims, "sub", claimNameIdentifier, "nameid", "userId")
			if userID == "" {
				writeEnvelope(w, http.StatusUnauthorized, statusUnauthorized, "User ID not found in token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, authTokenKey, tokenString)
			ctx = context.WithValue(ctx, rolesKey, rolesFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers that hold none of the allowed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, have := range GetRoles(r.Context()) {
				for _, want := range allowed {
					if strings.EqualFold(have, want) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			writeEnvelope(w, http.StatusForbidden, statusForbidden, "Admin access required", nil)
		})
	}
}

// GetUserID retrieves the authenticated user id from the request context.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

// GetAuthToken retrieves the raw bearer token from the request context.
func GetAuthToken(ctx context.Context) string {
	token, _ := ctx.Value(authTokenKey).(string)
	return token
}

// GetRoles retrieves the caller's roles from the request context.
func GetRoles(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	return roles
}

func firstStringClaim(claims jwt.MapClaims, names ...string) string {
	for _, name := range names {
		if v, ok := claims[name].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func rolesFromClaims(claims jwt.MapClaims) []string {
	var roles []string
	for _, name := range []string{"role", "roles", claimRoleURI} {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				roles = append(roles, v)
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					roles = append(roles, s)
				}
			}
		}
	}
	return roles
}
