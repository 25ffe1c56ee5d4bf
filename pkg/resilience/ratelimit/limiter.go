// Package ratelimit throttles verification attempts per client address with
// ulule/limiter.
//
// The limiter runs before the request body is read, so a throttled response
// carries nothing about the credential it would have checked.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/pkg/httputil"
	"github.com/your-org/credguard/pkg/logger"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

var throttled = httputil.NewFixedResponse(http.StatusTooManyRequests,
	httputil.ErrorResponse{Error: "too many requests"})

// Limiter counts attempts per client.
type Limiter struct {
	instance *limiter.Limiter
	client   *redis.Client
	headers  bool
}

// NewLimiter builds a limiter over the configured store. A redis store must
// be reachable at construction.
func NewLimiter(ctx context.Context, cfg config.RateLimitConfig) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", cfg.Rate, err)
	}

	l := &Limiter{headers: cfg.Headers}

	var store limiter.Store
	switch cfg.Store {
	case "redis":
		l.client = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := l.client.Ping(ctx).Err(); err != nil {
			l.client.Close()
			return nil, fmt.Errorf("rate limit redis unreachable: %w", err)
		}
		store, err = redisstore.NewStoreWithOptions(l.client, limiter.StoreOptions{
			Prefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			l.client.Close()
			return nil, err
		}
	default:
		store = memory.NewStore()
	}

	l.instance = limiter.New(store, rate)
	return l, nil
}

// Close releases the redis connection, if any.
func (l *Limiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

// Handler wraps next. Store errors fail open.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientKey(r)

		lc, err := l.instance.Get(r.Context(), key)
		if err != nil {
			logger.WithContext(r.Context()).Error("rate limiter error", logger.Err(err))
			next.ServeHTTP(w, r)
			return
		}

		if l.headers {
			h := w.Header()
			h.Set(HeaderLimit, strconv.FormatInt(lc.Limit, 10))
			h.Set(HeaderRemaining, strconv.FormatInt(lc.Remaining, 10))
			h.Set(HeaderReset, strconv.FormatInt(lc.Reset, 10))
		}

		if lc.Reached {
			logger.WithContext(r.Context()).Warn("rate limit exceeded",
				logger.String("client", key),
				logger.Int64("limit", lc.Limit),
			)
			throttled.Write(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Reset clears the counter for a client.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	_, err := l.instance.Reset(ctx, key)
	return err
}

// ClientKey is the host part of r.RemoteAddr. Proxy headers are honoured
// only through the server's RealIP middleware, which rewrites RemoteAddr.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
