package rate

import "errors"

var (
	// ErrRateLimited is returned once a failed-login budget is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps every Redis command failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
