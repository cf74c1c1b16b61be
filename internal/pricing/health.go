package pricing

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CheckPricingSourceHealth probes every provider's live endpoint once. It ignores the cache.
// Providers without an adapter report HealthUnavailable.
func (r *Resolver) CheckPricingSourceHealth(ctx context.Context) map[Provider]HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mu sync.Mutex
	statuses := make(map[Provider]HealthStatus, len(Providers))

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range Providers {
		adapter, ok := r.adapters[p]
		if !ok {
			mu.Lock()
			statuses[p] = HealthUnavailable
			mu.Unlock()
			continue
		}
		p := p
		g.Go(func() error {
			status := adapter.CheckHealth(gctx)
			mu.Lock()
			statuses[p] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}
