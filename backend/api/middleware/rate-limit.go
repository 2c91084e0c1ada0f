package middleware

import (
	"net/http"
	"sync"
	"time"

	"filebox/backend/common"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	lastGC   time.Time
}

func newIPRateLimiter(maxRequestNum int, duration time.Duration) *ipRateLimiter {
	if maxRequestNum <= 0 {
		maxRequestNum = 1
	}
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(duration / time.Duration(maxRequestNum)),
		burst:    maxRequestNum,
		lastGC:   time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	// 定期清理长时间未访问的 IP
	if now.Sub(l.lastGC) > 10*time.Minute {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > 10*time.Minute {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

func rateLimitFactory(maxRequestNum int, duration time.Duration) gin.HandlerFunc {
	limiter := newIPRateLimiter(maxRequestNum, duration)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			common.AbortWithErrorStr(c, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		c.Next()
	}
}

func GlobalAPIRateLimit() gin.HandlerFunc {
	return rateLimitFactory(common.GlobalApiRateLimitNum, common.RateLimitDuration)
}

// CriticalRateLimit guards credential endpoints such as /register and /token.
func CriticalRateLimit() gin.HandlerFunc {
	return rateLimitFactory(common.CriticalRateLimitNum, common.RateLimitDuration)
}
