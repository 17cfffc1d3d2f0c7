package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimiterFactory builds per-route limiter middleware sharing one backing store kind.
// With a redis client the counters are shared between replicas; without one they are per-process.
type RateLimiterFactory struct {
	redis *redis.Client
	log   *zap.Logger
}

// NewRateLimiterFactory creates a factory. client may be nil.
func NewRateLimiterFactory(client *redis.Client, log *zap.Logger) *RateLimiterFactory {
	return &RateLimiterFactory{redis: client, log: log}
}

// Limit returns middleware enforcing rateStr (e.g. "10-2m") for routeID,
// keyed by caller email when authenticated and by client IP otherwise.
// An invalid rate or store error yields a pass-through handler.
func (f *RateLimiterFactory) Limit(routeID, rateStr string) gin.HandlerFunc {
	rate, err := ParseRate(rateStr)
	if err != nil {
		f.log.Warn("rate limiter disabled", zap.String("route", routeID), zap.Error(err))
		return func(c *gin.Context) { c.Next() }
	}

	store, err := f.store(routeID, rate.Period)
	if err != nil {
		f.log.Warn("rate limiter disabled", zap.String("route", routeID), zap.Error(err))
		return func(c *gin.Context) { c.Next() }
	}

	return ginlimiter.NewMiddleware(limiter.New(store, rate),
		ginlimiter.WithKeyGetter(func(c *gin.Context) string {
			if id, ok := GetIdentity(c); ok {
				return id.Email
			}
			return c.ClientIP()
		}),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
			})
		}),
	)
}

func (f *RateLimiterFactory) store(routeID string, period time.Duration) (limiter.Store, error) {
	prefix := fmt.Sprintf("rate_limiter:%s", routeID)
	if f.redis == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          prefix,
			CleanUpInterval: period,
		}), nil
	}
	store, err := redisstore.NewStoreWithOptions(f.redis, limiter.StoreOptions{
		Prefix:   prefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store for route %s: %w", routeID, err)
	}
	return store, nil
}

// ParseRate parses "<limit>-<n><unit>" with unit s, m or h, e.g. "10-2m".
func ParseRate(rateStr string) (limiter.Rate, error) {
	parts := strings.Split(rateStr, "-")
	if len(parts) != 2 {
		return limiter.Rate{}, fmt.Errorf("invalid rate format: %q", rateStr)
	}

	limit, err := strconv.Atoi(parts[0])
	if err != nil || limit <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid limit: %q", parts[0])
	}

	period := parts[1]
	if len(period) < 2 {
		return limiter.Rate{}, fmt.Errorf("invalid period: %q", period)
	}
	var unit time.Duration
	switch period[len(period)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	default:
		return limiter.Rate{}, fmt.Errorf("unsupported period: %q", period)
	}
	n, err := strconv.Atoi(period[:len(period)-1])
	if err != nil || n <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid period: %q", period)
	}

	return limiter.Rate{Period: time.Duration(n) * unit, Limit: int64(limit)}, nil
}
