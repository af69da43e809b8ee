package rate

import (
	"context"
	"time"
)

// Limiter counts requests per key inside a fixed window. Allow reports
// whether the request fits and, when it does not, how long until the
// window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}
