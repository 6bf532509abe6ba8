package handlers

import (
	"context"
	"fmt"
)

// Pinger is satisfied by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker fails when the request log store is unreachable. Without it
// every fetch fails closed.
func StoreChecker(store Pinger) HealthChecker {
	return CheckerFunc(func(ctx context.Context) error {
		if store == nil {
			return fmt.Errorf("store not configured")
		}
		return store.Ping(ctx)
	})
}

// UpstreamChecker reports degraded when the provider credential is missing.
// Cached data can still be served in that state.
func UpstreamChecker(ready func() error) HealthChecker {
	return CheckerFunc(func(ctx context.Context) error {
		if ready == nil {
			return fmt.Errorf("upstream: %w", ErrDegraded)
		}
		if err := ready(); err != nil {
			return fmt.Errorf("upstream: %v: %w", err, ErrDegraded)
		}
		return nil
	})
}
