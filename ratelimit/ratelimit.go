package ratelimit

import (
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/xeptore/mpdq/config"
)

// New limits manifest refreshes to conf.Rate per second with conf.Burst.
func New(conf config.Refresh) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(conf.Rate), conf.Burst)
}

// Jitter spreads d by up to a tenth either way so that many watchers of one
// origin do not poll in lockstep.
func Jitter(d time.Duration) time.Duration {
	spread := int64(d / 10)
	if spread <= 0 {
		return d
	}

	return d - time.Duration(spread) + time.Duration(rand.Int64N(2*spread+1)) //nolint:gosec
}
