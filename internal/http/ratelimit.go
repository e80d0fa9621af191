package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiterTTL bounds how long idle client limiters are kept.
const limiterTTL = time.Hour

// clientLimiter hands out one token bucket per client IP.
type clientLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
	now         func() time.Time
}

func newClientLimiter(rps float64) *clientLimiter {
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		limit:       rate.Limit(rps),
		burst:       burst,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (l *clientLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.lastCleanup) > limiterTTL {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = l.now()
	}

	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	return lim.AllowN(l.now(), 1)
}

// rateLimitMiddleware rejects clients exceeding rps requests per second with
// 429 Too Many Requests.
func (s *Server) rateLimitMiddleware(rps float64) echo.MiddlewareFunc {
	limiter := newClientLimiter(rps)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !limiter.allow(ip) {
				s.metrics.recordRateLimited(c)
				s.logger.Warn(c.Request().Context(), "rate limit exceeded", zap.String("ip", ip))
				return c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
