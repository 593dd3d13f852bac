package ratelimit

import "context"

// RateLimiter bounds outbound delivery throughput per destination host, so
// one integrator's incident recovery does not get hammered by a retry burst.
type RateLimiter interface {
	Allow(ctx context.Context, host string) (bool, error)
	Wait(ctx context.Context, host string) error
}
