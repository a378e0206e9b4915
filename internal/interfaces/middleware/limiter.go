package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyConnections = errors.New("too many concurrent streams")
	ErrRateLimited        = errors.New("connection rate limit exceeded")
)

const visitorTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ConnectionLimiter caps concurrent streams and rate limits new streams per client IP.
type ConnectionLimiter struct {
	current atomic.Int64
	max     int64

	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
	now       func() time.Time
}

// NewConnectionLimiter returns a limiter allowing max concurrent streams (0 =
// unlimited) and perSecond new streams per IP with the given burst (0 = unlimited).
func NewConnectionLimiter(max int, perSecond float64, burst int) *ConnectionLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ConnectionLimiter{
		max:      int64(max),
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Acquire reserves a stream slot for ip. Every successful Acquire must be
// paired with Release.
func (l *ConnectionLimiter) Acquire(ip string) error {
	if l.rate > 0 && !l.allow(ip) {
		return ErrRateLimited
	}

	if l.max <= 0 {
		l.current.Add(1)
		return nil
	}
	for {
		cur := l.current.Load()
		if cur >= l.max {
			return ErrTooManyConnections
		}
		if l.current.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

func (l *ConnectionLimiter) Release() {
	l.current.Add(-1)
}

func (l *ConnectionLimiter) Current() int64 {
	return l.current.Load()
}

func (l *ConnectionLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.cleanupAt) {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(l.visitors, key)
			}
		}
		l.cleanupAt = now.Add(visitorTTL)
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware guards streaming routes: 429 when the client reconnects too fast,
// 503 when the instance is at capacity. The slot is held until the handler returns.
func (l *ConnectionLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := l.Acquire(c.ClientIP())
		switch {
		case errors.Is(err, ErrRateLimited):
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		case errors.Is(err, ErrTooManyConnections):
			c.Header("Retry-After", strconv.Itoa(5))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		defer l.Release()
		c.Next()
	}
}
