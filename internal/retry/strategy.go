package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// Strategy returns how long to wait before attempt retryCount+1, and whether
// the retry budget is exhausted.
type Strategy interface {
	Sleep(uint) (time.Duration, bool)
}

type never struct{}

func NewNever() *never {
	return &never{}
}

func (nr *never) Sleep(n uint) (time.Duration, bool) {
	return 0, true
}

type constantBackOff struct {
	delay         time.Duration
	maxRetryCount uint
}

func NewConstantBackOff(delay time.Duration, maxRetryCount uint) *constantBackOff {
	return &constantBackOff{
		delay:         delay,
		maxRetryCount: maxRetryCount,
	}
}

func (cb *constantBackOff) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= cb.maxRetryCount {
		return 0, true
	}
	return cb.delay, false
}

// Entropy returns a value in [0, n). It is never called with n <= 0.
type Entropy func(int64) int64

type exponentialBackOff struct {
	base          time.Duration
	max           time.Duration
	maxRetryCount uint
	entropy       Entropy
}

// NewExponentialBackOff uses full jitter: the delay is drawn from
// [0, min(max, base*2^retryCount)).
func NewExponentialBackOff(base time.Duration, max time.Duration, maxRetryCount uint, entropy Entropy) *exponentialBackOff {
	return &exponentialBackOff{
		base:          base,
		max:           max,
		maxRetryCount: maxRetryCount,
		entropy:       entropy,
	}
}

func (eb *exponentialBackOff) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= eb.maxRetryCount {
		return 0, true
	}

	if retryCount >= 63 {
		return eb.jitter(min(math.MaxInt64, int64(eb.max))), false
	}

	delay, err := checkedMulInt64(1<<retryCount, int64(eb.base))
	if err != nil {
		return eb.jitter(min(math.MaxInt64, int64(eb.max))), false
	}
	return eb.jitter(min(delay, int64(eb.max))), false
}

func (eb *exponentialBackOff) jitter(upper int64) time.Duration {
	if upper <= 0 {
		return 0
	}
	if eb.entropy == nil {
		return time.Duration(rand.Int63n(upper))
	}
	return time.Duration(eb.entropy(upper))
}

func min[T constraints.Ordered](l T, r T) T {
	if l > r {
		return r
	}
	return l
}

var OverflowError = errors.New("overflow")

func checkedMulInt64(l int64, r int64) (int64, error) {
	if l == 0 || r == 0 {
		return l * r, nil
	}
	if l > math.MaxInt64/r {
		return 0, OverflowError
	}
	return l * r, nil
}
