package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/pkg/config"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
	"github.com/pharmadata/pharmadata-backend/pkg/redis"
)

// IPRateLimit throttles unauthenticated public traffic per client IP.
// When Redis is unreachable the request goes through; the limiter never
// takes the catalog down with it.
func IPRateLimit(cfg config.RateLimitConfig, limiter redis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			scope := fmt.Sprintf("public:ip:%s", ip)
			allowed, _, err := limiter.FixedWindowAllow(r.Context(), scope, int64(cfg.PublicIPLimit), cfg.PublicWindow)
			if err != nil {
				if logg != nil {
					logg.Error(r.Context(), "rate limiter unavailable, failing open", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeRateLimited, "too many requests from this address"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
