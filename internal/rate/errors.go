package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter has reached its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
