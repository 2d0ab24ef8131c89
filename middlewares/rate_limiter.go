package middlewares

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/agrimarket/utils"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per key. Buckets idle for longer
// than ttl are dropped on the next sweep.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		ttl:       10 * time.Minute,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rl.ttl {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// RateLimit limits by client IP.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return rl.handler("Too many requests, please slow down", func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// PerUser limits by authenticated user, falling back to the client IP. It
// must run after AuthMiddleware.
func (rl *RateLimiter) PerUser(message string) gin.HandlerFunc {
	return rl.handler(message, func(c *gin.Context) string {
		if uid, ok := c.Get(ContextUserID); ok {
			if id, ok := uid.(uint); ok {
				return "user:" + strconv.FormatUint(uint64(id), 10)
			}
		}
		return c.ClientIP()
	})
}

func (rl *RateLimiter) handler(message string, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		if !rl.Allow(k) {
			utils.InfoLogger.WithFields(logrus.Fields{
				"key":  k,
				"path": c.Request.URL.Path,
			}).Warn("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, utils.JSONResponse{Status: false, Message: message})
			c.Abort()
			return
		}
		c.Next()
	}
}

// NewStrictRateLimiter guards login and register: five attempts a minute per
// client IP.
func NewStrictRateLimiter() gin.HandlerFunc {
	rl := NewRateLimiter(float64(rate.Every(12*time.Second)), 5)
	return rl.handler("Too many attempts, please wait a moment", func(c *gin.Context) string {
		return c.ClientIP()
	})
}
