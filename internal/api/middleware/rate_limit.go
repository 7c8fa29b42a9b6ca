package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/metrics"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/ratelimit"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/utils"
)

// KeyFunc picks the bucket a request is charged to. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// KeyByIP charges the client address.
func KeyByIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + ip
}

// KeyByHost charges the host named in the X-Host-ID header, falling back to the client
// address. It reads the claimed id so it can run ahead of HostAuth and bound the
// number of secret comparisons per host.
func KeyByHost(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(HostIDHeader)); id != "" {
		return "host:" + id
	}
	return KeyByIP(r)
}

// RateLimit rejects requests over budget with 429. A limiter backend error lets the
// request through so a Redis outage does not stop check-ins.
func RateLimit(limiter ratelimit.Limiter, keyFn KeyFunc, scope string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.WithFields(map[string]interface{}{
					"key":   key,
					"scope": scope,
				}).WithError(err).Warn("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RecordRateLimited(scope)
				w.Header().Set("Retry-After", "1")
				utils.WriteError(w, errors.RateLimited("Too many requests. Please try again later."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
