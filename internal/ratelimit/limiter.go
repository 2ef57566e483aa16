// Package ratelimit admits requests per (caller, endpoint) over a sliding window.
//
// MemoryLimiter keeps the window in process memory and is only correct for a
// single instance. RedisLimiter keeps the same window in Redis so several
// instances share one budget.
package ratelimit

import (
	"context"
	"time"
)

// Defaults match the public API budget: 60 requests per rolling minute.
const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// Limiter decides whether a caller may hit an endpoint now.
type Limiter interface {
	Admit(ctx context.Context, caller, endpoint string) (Decision, error)
}

// Decision is the outcome of one Admit call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is set when Allowed is false: the time until the oldest
	// request in the window falls out of it.
	RetryAfter time.Duration
}

// Key is the composite window key for a caller and endpoint.
func Key(caller, endpoint string) string {
	return caller + ":" + endpoint
}
