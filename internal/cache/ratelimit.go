package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/greencart/pkg/httpmiddleware"
)

const rateLimitKey = "ratelimit:"

// RateLimiter is a fixed window request counter shared by every API
// instance using the same Redis.
type RateLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	now    func() time.Time
}

var _ httpmiddleware.Limiter = (*RateLimiter)(nil)

// NewRateLimiter allows limit requests per window per key.
func NewRateLimiter(client redis.UniversalClient, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

// Take counts one request for key in the current window.
func (l *RateLimiter) Take(ctx context.Context, key string) (httpmiddleware.Quota, error) {
	start := l.now().Truncate(l.window)
	k := rateLimitKey + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, l.window)
		return nil
	}); err != nil {
		return httpmiddleware.Quota{}, errors.Wrap(err, "count request")
	}

	used := int(incr.Val())
	return httpmiddleware.Quota{
		Limit:     l.limit,
		Remaining: max(l.limit-used, 0),
		Reset:     start.Add(l.window),
		Allowed:   used <= l.limit,
	}, nil
}
