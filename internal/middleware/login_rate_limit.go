package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/qr-menu/qr_menu/internal/auth"
)

const (
	rateLimitPrefix = "rl:v1:"

	// maxLocalLimiters forces a sweep of idle buckets when exceeded.
	maxLocalLimiters = 10000
)

// LoginRateLimit caps attempts per identifier (the identifier or
// phone_number body field, falling back to the client IP) per minute. Redis
// counts attempts when available; otherwise, or when Redis errors, an
// in-process token bucket per identifier takes over.
func LoginRateLimit(cache redis.UniversalClient, scope string, maxPerMin int) fiber.Handler {
	return rateLimit(cache, scope, maxPerMin, identifierSubject)
}

// SessionRateLimit caps attempts per pending-flow session id, read from the
// session header or cookie, falling back to the client IP.
func SessionRateLimit(cache redis.UniversalClient, scope string, maxPerMin int) fiber.Handler {
	return rateLimit(cache, scope, maxPerMin, sessionSubject)
}

func rateLimit(cache redis.UniversalClient, scope string, maxPerMin int, subjectOf func(*fiber.Ctx) string) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	local := newLocalLimiter(maxPerMin)
	return func(c *fiber.Ctx) error {
		subject := subjectOf(c)
		var allowed bool
		if cache != nil {
			key := rateLimitPrefix + scope + ":" + subject
			cnt, err := cache.Incr(c.UserContext(), key).Result()
			if err == nil {
				if cnt == 1 {
					cache.Expire(c.UserContext(), key, time.Minute)
				}
				allowed = cnt <= int64(maxPerMin)
			} else {
				allowed = local.allow(scope + ":" + subject)
			}
		} else {
			allowed = local.allow(scope + ":" + subject)
		}
		if !allowed {
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}

func identifierSubject(c *fiber.Ctx) string {
	var req struct {
		Identifier string `json:"identifier"`
		Phone      string `json:"phone_number"`
	}
	_ = c.BodyParser(&req)
	if s := strings.TrimSpace(req.Identifier); s != "" {
		return s
	}
	if s := strings.TrimSpace(req.Phone); s != "" {
		return s
	}
	return c.IP()
}

func sessionSubject(c *fiber.Ctx) string {
	if sid := strings.TrimSpace(c.Get(auth.SessionHeader)); sid != "" {
		return "sid:" + sid
	}
	if sid := strings.TrimSpace(c.Cookies(auth.SessionCookie)); sid != "" {
		return "sid:" + sid
	}
	return c.IP()
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// localLimiter keeps one token bucket per key. A bucket idle for a full
// minute has refilled completely, so dropping it loses no state.
type localLimiter struct {
	mu        sync.Mutex
	perMin    int
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{perMin: perMin, buckets: make(map[string]*bucket), now: time.Now}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= time.Minute || len(l.buckets) >= maxLocalLimiters {
		l.sweepLocked(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.buckets[key] = b
	}
	b.seen = now
	allowed := b.lim.AllowN(now, 1)
	l.mu.Unlock()
	return allowed
}

func (l *localLimiter) sweepLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= time.Minute {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}
