package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pfrederiksen/telefication/internal/config"
	"github.com/pfrederiksen/telefication/internal/logger"
)

// RequestIDHeader carries the request id in requests and responses
const RequestIDHeader = "X-Request-ID"

// APIKeyHeader carries the API key. "Authorization: Bearer <key>" is accepted too.
const APIKeyHeader = "X-API-Key"

const limiterIdleTTL = 10 * time.Minute

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logger.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_ip":   c.ClientIP(),
			"request_id":  c.GetString("request_id"),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("Request failed", fields)
			return
		}
		logger.Debug("Request handled", fields)
	}
}

// requireAPIKey rejects requests that do not present the configured API key. The key
// is read from a fresh snapshot, so a changed key applies to the next request. An
// empty key leaves the routes open.
func requireAPIKey(src config.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := src.Load()
		if err != nil {
			logger.Error("Loading settings failed", nil, err)
			c.String(http.StatusInternalServerError, MsgFailed)
			c.Abort()
			return
		}
		if cfg.APIKey == "" {
			c.Next()
			return
		}

		if subtle.ConstantTimeCompare([]byte(presentedKey(c)), []byte(cfg.APIKey)) != 1 {
			logger.IncrCounter("http.unauthorized")
			logger.Warn("Rejected request without valid API key", logger.Fields{
				"path":      c.Request.URL.Path,
				"remote_ip": c.ClientIP(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func presentedKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiters hands out one token bucket per client address. Buckets unused for
// limiterIdleTTL are dropped.
type limiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
	clients   map[string]*clientLimiter
}

func newLimiters(perSecond float64, burst int) *limiters {
	if burst < 1 {
		burst = 1
	}
	return &limiters{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		idle:      limiterIdleTTL,
		now:       time.Now,
		lastSweep: time.Now(),
		clients:   make(map[string]*clientLimiter),
	}
}

func (l *limiters) get(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	cl, ok := l.clients[client]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = cl
	}
	cl.seen = now
	return cl.lim
}

func (l *limiters) sweep(now time.Time) {
	for client, cl := range l.clients {
		if now.Sub(cl.seen) >= l.idle {
			delete(l.clients, client)
		}
	}
	l.lastSweep = now
}

func rateLimit(l *limiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			logger.IncrCounter("http.rate_limited")
			c.String(http.StatusTooManyRequests, "Too many requests, please wait a moment.")
			c.Abort()
			return
		}
		c.Next()
	}
}
