package rate

import "errors"

// ErrRateLimited is returned by [Limiter.Check] when a key is over its limit.
var ErrRateLimited = errors.New("rate limited")
