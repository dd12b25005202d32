package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Ulule adapts a ulule/limiter instance to the Limiter interface. The rate
// is fixed at construction, so the window and max arguments on Allow are
// ignored in favour of the configured rate.
type Ulule struct {
	inner *limiter.Limiter
	max   int
}

// NewUlule builds a Redis-backed fixed window limiter.
func NewUlule(client *redis.Client, prefix string, window time.Duration, max int) (Ulule, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   prefix,
		MaxRetry: 3,
	})
	if err != nil {
		return Ulule{}, err
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return Ulule{inner: limiter.New(store, rate), max: max}, nil
}

// Allow implements Limiter.
func (u Ulule) Allow(ctx context.Context, key string, _ time.Duration, _ int) (bool, int, time.Time, error) {
	if u.inner == nil {
		return true, u.max, time.Now(), nil
	}
	res, err := u.inner.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now(), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
