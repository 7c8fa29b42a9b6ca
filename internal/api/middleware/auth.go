package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/pratik-mahalle/fleetfix/internal/auth"
	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// ClaimsKey holds the operator's *auth.Claims
	ClaimsKey ContextKey = "claims"
	// HostIDKey holds the id of an authenticated host
	HostIDKey ContextKey = "hostID"

	// HostIDHeader names the host presenting a check-in secret.
	HostIDHeader = "X-Host-ID"
)

// HostAuthenticator verifies a host's enrollment secret.
type HostAuthenticator interface {
	Authenticate(ctx context.Context, id, secret string) (*host.Host, error)
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// OperatorAuth validates the operator JWT and stores its claims in the context.
func OperatorAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
				return
			}

			claims, err := auth.ParseClaims(tokenStr, jwtSecret)
			if err != nil {
				utils.WriteError(w, errors.Unauthorized("Invalid or expired token"))
				return
			}

			AddLogField(w, "actor", claims.Actor())
			AddLogField(w, "role", claims.Role)

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator rejects viewers. Must run after OperatorAuth.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r)
		if !ok {
			utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
			return
		}
		if !claims.CanMutate() {
			utils.WriteError(w, errors.Forbidden("Operator role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HostAuth authenticates a host by X-Host-ID and its bearer secret.
func HostAuth(authenticator HostAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hostID := strings.TrimSpace(r.Header.Get(HostIDHeader))
			secret := bearerToken(r)
			if hostID == "" || secret == "" {
				utils.WriteError(w, errors.Unauthorized("Missing host credentials"))
				return
			}

			h, err := authenticator.Authenticate(r.Context(), hostID, secret)
			if err != nil {
				if stderrors.Is(err, host.ErrInvalidCredentials) {
					utils.WriteError(w, errors.Unauthorized("Invalid host credentials"))
					return
				}
				utils.WriteError(w, errors.Internal("Failed to authenticate host", err))
				return
			}

			AddLogField(w, "host_id", h.ID)
			ctx := context.WithValue(r.Context(), HostIDKey, h.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims extracts operator claims from the request context
func GetClaims(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

// GetActor returns the audit name of the calling operator, or "" when unauthenticated.
func GetActor(r *http.Request) string {
	if claims, ok := GetClaims(r); ok {
		return claims.Actor()
	}
	return ""
}

// GetHostID extracts the authenticated host id from the request context
func GetHostID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(HostIDKey).(string)
	return id, ok
}
