package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoLiveSource is reported when a provider has no live price for a resource kind
	ErrNoLiveSource = errors.New("no live price source")

	// ErrNotConfigured is reported when a live source needs credentials that are absent
	ErrNotConfigured = errors.New("live source not configured")

	ErrImplausiblePrice = errors.New("implausible price")
	ErrPriceNotFound    = errors.New("price not found")
)

// Result is the outcome of a single adapter call: either an amount with its source name, or
// the reason no live price is available.
type Result struct {
	Amount float64
	Source string
	Reason error
}

func Ok(amount float64, source string) Result {
	return Result{Amount: amount, Source: source}
}

func Unavailable(reason error) Result {
	if reason == nil {
		reason = ErrPriceNotFound
	}
	return Result{Reason: reason}
}

func (r Result) Available() bool {
	return r.Reason == nil
}

// HealthStatus reports whether a provider's live pricing endpoint answers
type HealthStatus string

const (
	HealthLive        HealthStatus = "live"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnavailable HealthStatus = "unavailable"
	HealthNoAPIKey    HealthStatus = "no API key"
)

// Adapter fetches live unit prices from one provider's pricing source. Implementations
// must bound every upstream call and must never panic or block past ctx; failures are
// reported as Unavailable results.
type Adapter interface {
	Provider() Provider
	// FetchComputePrice returns the hourly on-demand price of the instance behind size
	FetchComputePrice(ctx context.Context, size ComputeSize, region string) Result
	// FetchStoragePrice returns the per GB-month price of the storage tier
	FetchStoragePrice(ctx context.Context, tier StorageTier, region string) Result
	// CheckHealth performs one lightweight reachability probe
	CheckHealth(ctx context.Context) HealthStatus
}

// CheckPlausible rejects prices that cannot be real list prices for the kind
func CheckPlausible(kind ResourceKind, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("%w: %v for %s", ErrImplausiblePrice, amount, kind)
	}
	switch kind {
	case KindStorage:
		if amount < 0.0001 || amount > 1.0 {
			return fmt.Errorf("%w: storage price %v outside [0.0001, 1.0] per GB", ErrImplausiblePrice, amount)
		}
	case KindCompute:
		if amount > 100 {
			return fmt.Errorf("%w: compute price %v per hour", ErrImplausiblePrice, amount)
		}
	}
	return nil
}
