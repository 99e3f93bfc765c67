package domain

import (
	"math/rand"
	"time"
)

// backoffJitterFactor is the upper bound of the random multiplier applied to
// each delay, spreading reconnect storms across time.
const backoffJitterFactor = 0.3

// BackoffDelay returns the delay to wait before the next connection attempt.
// The base delay doubles with every completed retry and is capped at max,
// then a random jitter of up to 30% is added:
//
//	delay = min(base * 2^retries, max) * (1 + uniform(0, 0.3))
func BackoffDelay(retries int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if max < base {
		max = base
	}

	delay := base
	for i := 0; i < retries && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}

	jitter := 1 + rand.Float64()*backoffJitterFactor
	return time.Duration(float64(delay) * jitter)
}
