package estimator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudcost-estimator/internal/metrics"
	"github.com/cloudcost-estimator/internal/pricing"
)

// downAdapter simulates an unreachable live source
type downAdapter struct {
	provider pricing.Provider
}

func (d downAdapter) Provider() pricing.Provider { return d.provider }

func (d downAdapter) FetchComputePrice(context.Context, pricing.ComputeSize, string) pricing.Result {
	return pricing.Unavailable(errors.New("dial tcp: connection refused"))
}

func (d downAdapter) FetchStoragePrice(context.Context, pricing.StorageTier, string) pricing.Result {
	return pricing.Unavailable(errors.New("dial tcp: connection refused"))
}

func (d downAdapter) CheckHealth(context.Context) pricing.HealthStatus {
	return pricing.HealthUnavailable
}

// countingAdapter returns a fixed live price and counts calls
type countingAdapter struct {
	provider pricing.Provider
	amount   float64
	calls    atomic.Int32
}

func (c *countingAdapter) Provider() pricing.Provider { return c.provider }

func (c *countingAdapter) FetchComputePrice(context.Context, pricing.ComputeSize, string) pricing.Result {
	c.calls.Add(1)
	return pricing.Ok(c.amount, "Test Live API")
}

func (c *countingAdapter) FetchStoragePrice(context.Context, pricing.StorageTier, string) pricing.Result {
	c.calls.Add(1)
	return pricing.Ok(0.02, "Test Live API")
}

func (c *countingAdapter) CheckHealth(context.Context) pricing.HealthStatus {
	return pricing.HealthLive
}

// flatResolver prices everything at the same amount
type flatResolver struct {
	amount float64
	err    error
}

func (f flatResolver) Resolve(_ context.Context, d pricing.Descriptor) (pricing.UnitPrice, bool, error) {
	if f.err != nil {
		return pricing.UnitPrice{}, false, f.err
	}
	return pricing.UnitPrice{Amount: f.amount, Provenance: pricing.Provenance{Source: "Flat", Mode: pricing.ModeFallback}}, false, nil
}

func fallbackAggregator() *Aggregator {
	resolver := pricing.NewResolver(pricing.ResolverOptions{Adapters: []pricing.Adapter{
		downAdapter{pricing.AWS}, downAdapter{pricing.Azure}, downAdapter{pricing.GCP},
	}})
	return NewAggregator(resolver, nil, nil)
}

func fullSelections() Selections {
	return Selections{
		Compute:             &ComputeSelection{Size: pricing.SizeLarge, HoursPerMonth: 730, Quantity: 2},
		Storage:             &StorageSelection{Tier: pricing.TierPremium, SizeGB: 250},
		Database:            &DatabaseSelection{Type: pricing.DatabaseSQL, Tier: pricing.DatabaseTierStandard, StorageGB: 50},
		DataTransferGB:      100,
		IncludeLoadBalancer: true,
	}
}

func TestAWSMediumComputeScenario(t *testing.T) {
	agg := fallbackAggregator()

	est, err := agg.BuildEstimate(context.Background(), pricing.AWS, Selections{
		Compute: &ComputeSelection{Size: pricing.SizeMedium, HoursPerMonth: 730, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, est.LineItems, 1)

	item := est.LineItems[0]
	assert.Equal(t, 0.0464, item.UnitPrice.Amount)
	assert.Equal(t, "AWS Public Pricing Data (fallback)", item.UnitPrice.Provenance.String())
	assert.Equal(t, "Amazon EC2 t3.medium (medium) x1", item.Label)
	assert.True(t, item.Quantity.Equal(decimal.NewFromInt(730)))
	assert.Equal(t, "33.87", item.MonthlyCost.StringFixed(2))
	assert.Equal(t, "33.87", est.TotalMonthly.StringFixed(2))
	assert.Equal(t, "406.46", est.TotalAnnual.StringFixed(2))
	assert.NotEmpty(t, est.ID)
	assert.False(t, est.GeneratedAt.IsZero())
}

func TestStorageScalesLinearly(t *testing.T) {
	agg := fallbackAggregator()

	big, err := agg.BuildEstimate(context.Background(), pricing.AWS, Selections{
		Storage: &StorageSelection{Tier: pricing.TierStandard, SizeGB: 1000},
	})
	require.NoError(t, err)
	small, err := agg.BuildEstimate(context.Background(), pricing.AWS, Selections{
		Storage: &StorageSelection{Tier: pricing.TierStandard, SizeGB: 100},
	})
	require.NoError(t, err)

	assert.Equal(t, "23.00", big.TotalMonthly.StringFixed(2))
	assert.True(t, big.TotalMonthly.Equal(small.TotalMonthly.Mul(decimal.NewFromInt(10))))
}

func TestArchiveCheaperThanStandard(t *testing.T) {
	agg := fallbackAggregator()

	for _, p := range pricing.Providers {
		archive, err := agg.BuildEstimate(context.Background(), p, Selections{Storage: &StorageSelection{Tier: pricing.TierArchive, SizeGB: 500}})
		require.NoError(t, err)
		standard, err := agg.BuildEstimate(context.Background(), p, Selections{Storage: &StorageSelection{Tier: pricing.TierStandard, SizeGB: 500}})
		require.NoError(t, err)

		assert.True(t, archive.TotalMonthly.LessThan(standard.TotalMonthly), "%s", p)
	}
}

func TestEmptySelections(t *testing.T) {
	est, err := fallbackAggregator().BuildEstimate(context.Background(), pricing.GCP, Selections{})
	require.NoError(t, err)

	assert.Empty(t, est.LineItems)
	assert.True(t, est.TotalMonthly.IsZero())
	assert.True(t, est.TotalAnnual.IsZero())
	assert.Equal(t, "No resources selected", est.PricingNote())
}

func TestLineItemOrderAndCosts(t *testing.T) {
	for _, p := range pricing.Providers {
		est, err := fallbackAggregator().BuildEstimate(context.Background(), p, fullSelections())
		require.NoError(t, err)

		kinds := make([]pricing.ResourceKind, 0, len(est.LineItems))
		sum := decimal.Zero
		for _, item := range est.LineItems {
			kinds = append(kinds, item.Kind)
			expected := decimal.NewFromFloat(item.UnitPrice.Amount).Mul(item.Quantity)
			assert.True(t, item.MonthlyCost.Equal(expected), "%s %s", p, item.Kind)
			assert.NotEmpty(t, item.Label)
			sum = sum.Add(item.MonthlyCost)
		}

		assert.Equal(t, []pricing.ResourceKind{
			pricing.KindCompute,
			pricing.KindStorage,
			pricing.KindDatabase,
			pricing.KindDatabaseStorage,
			pricing.KindNetworkTransfer,
			pricing.KindLoadBalancer,
		}, kinds, "%s", p)
		assert.True(t, est.TotalMonthly.Equal(sum))
		assert.True(t, est.TotalAnnual.Equal(est.TotalMonthly.Mul(decimal.NewFromInt(12))))

		assert.True(t, est.LineItems[0].Quantity.Equal(decimal.NewFromInt(1460)), "hours x quantity")
		assert.True(t, est.LineItems[2].Quantity.Equal(decimal.NewFromInt(1)), "database tier is a flat monthly price")
		assert.True(t, est.LineItems[5].Quantity.Equal(decimal.NewFromInt(HoursPerMonth)))
	}
}

func TestDatabaseScenario(t *testing.T) {
	est, err := fallbackAggregator().BuildEstimate(context.Background(), pricing.AWS, Selections{
		Database: &DatabaseSelection{Type: pricing.DatabaseSQL, Tier: pricing.DatabaseTierStandard, StorageGB: 100},
	})
	require.NoError(t, err)
	require.Len(t, est.LineItems, 2)

	assert.Equal(t, "Amazon RDS for MySQL (standard)", est.LineItems[0].Label)
	assert.Equal(t, "49.64", est.LineItems[0].MonthlyCost.StringFixed(2))
	assert.Equal(t, "11.50", est.LineItems[1].MonthlyCost.StringFixed(2))
	assert.Equal(t, "61.14", est.TotalMonthly.StringFixed(2))
}

func TestOptionalNetworkItems(t *testing.T) {
	agg := fallbackAggregator()

	est, err := agg.BuildEstimate(context.Background(), pricing.Azure, Selections{DataTransferGB: 0, IncludeLoadBalancer: false})
	require.NoError(t, err)
	assert.Empty(t, est.LineItems, "zero transfer and no load balancer emit nothing")

	est, err = agg.BuildEstimate(context.Background(), pricing.Azure, Selections{IncludeLoadBalancer: true})
	require.NoError(t, err)
	require.Len(t, est.LineItems, 1)
	assert.Equal(t, "18.25", est.TotalMonthly.StringFixed(2))
}

func TestBuildEstimateIsIdempotentWithWarmCache(t *testing.T) {
	adapter := &countingAdapter{provider: pricing.Azure, amount: 0.05}
	resolver := pricing.NewResolver(pricing.ResolverOptions{Adapters: []pricing.Adapter{adapter}})
	agg := NewAggregator(resolver, nil, nil)

	sel := fullSelections()
	_, err := agg.BuildEstimate(context.Background(), pricing.Azure, sel)
	require.NoError(t, err)
	assert.Equal(t, int32(2), adapter.calls.Load())

	first, err := agg.BuildEstimate(context.Background(), pricing.Azure, sel)
	require.NoError(t, err)
	second, err := agg.BuildEstimate(context.Background(), pricing.Azure, sel)
	require.NoError(t, err)

	assert.Equal(t, first.LineItems, second.LineItems)
	assert.True(t, first.TotalMonthly.Equal(second.TotalMonthly))
	assert.True(t, first.TotalAnnual.Equal(second.TotalAnnual))
	assert.Equal(t, pricing.ModeCached, first.LineItems[0].UnitPrice.Provenance.Mode)
	assert.Equal(t, int32(2), adapter.calls.Load(), "warm cache serves every live kind")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPricingNote(t *testing.T) {
	adapter := &countingAdapter{provider: pricing.Azure, amount: 0.05}
	resolver := pricing.NewResolver(pricing.ResolverOptions{Adapters: []pricing.Adapter{adapter}})
	agg := NewAggregator(resolver, nil, nil)

	est, err := agg.BuildEstimate(context.Background(), pricing.Azure, Selections{
		Compute:        &ComputeSelection{Size: pricing.SizeSmall, HoursPerMonth: 730, Quantity: 1},
		Storage:        &StorageSelection{Tier: pricing.TierStandard, SizeGB: 10},
		DataTransferGB: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Prices from: Test Live API (live), Azure Public Pricing Data (fallback)", est.PricingNote())
}

func TestCompareProviders(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)
	resolver := pricing.NewResolver(pricing.ResolverOptions{Metrics: recorder})
	agg := NewAggregator(resolver, nil, recorder)

	result, err := agg.CompareProviders(context.Background(), Selections{
		Compute: &ComputeSelection{Size: pricing.SizeMedium, HoursPerMonth: 730, Quantity: 1},
		Storage: &StorageSelection{Tier: pricing.TierStandard, SizeGB: 100},
	})
	require.NoError(t, err)
	require.Len(t, result.Estimates, 3)

	minTotal, maxTotal := result.Estimates[0].TotalMonthly, result.Estimates[0].TotalMonthly
	for i, e := range result.Estimates {
		assert.Equal(t, pricing.Providers[i], e.Provider, "estimates keep provider order")
		minTotal = decimal.Min(minTotal, e.TotalMonthly)
		maxTotal = decimal.Max(maxTotal, e.TotalMonthly)
	}

	// gcp: 0.0335*730 + 0.020*100 = 26.455
	assert.Equal(t, pricing.GCP, result.CheapestProvider)
	assert.True(t, result.PotentialSavings.Equal(maxTotal.Sub(minTotal)))
	assert.False(t, result.PotentialSavings.IsNegative())
	assert.Equal(t, "9.72", result.PotentialSavings.StringFixed(2))

	for _, p := range pricing.Providers {
		assert.Equal(t, 1.0, testutil.ToFloat64(recorder.Lookups().WithLabelValues(string(p), "compute", "fallback")))
		assert.Equal(t, 1.0, testutil.ToFloat64(recorder.Estimates().WithLabelValues(string(p))))
	}
}

func TestCompareProvidersTieGoesToFirstProvider(t *testing.T) {
	agg := NewAggregator(flatResolver{amount: 0.1}, nil, nil)

	result, err := agg.CompareProviders(context.Background(), Selections{
		Storage: &StorageSelection{Tier: pricing.TierStandard, SizeGB: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, pricing.AWS, result.CheapestProvider)
	assert.True(t, result.PotentialSavings.IsZero())
}

func TestCompareProvidersEmptySelections(t *testing.T) {
	result, err := fallbackAggregator().CompareProviders(context.Background(), Selections{})
	require.NoError(t, err)
	assert.Equal(t, pricing.AWS, result.CheapestProvider)
	assert.True(t, result.PotentialSavings.IsZero())
}

func TestBuildEstimateErrors(t *testing.T) {
	_, err := fallbackAggregator().BuildEstimate(context.Background(), "oracle", Selections{})
	assert.ErrorIs(t, err, pricing.ErrUnknownProvider)

	agg := NewAggregator(flatResolver{err: pricing.ErrNoStaticPrice}, nil, nil)
	_, err = agg.BuildEstimate(context.Background(), pricing.AWS, Selections{
		Compute: &ComputeSelection{Size: pricing.SizeSmall, HoursPerMonth: 1, Quantity: 1},
	})
	assert.ErrorIs(t, err, pricing.ErrNoStaticPrice)

	_, err = agg.CompareProviders(context.Background(), Selections{
		Compute: &ComputeSelection{Size: pricing.SizeSmall, HoursPerMonth: 1, Quantity: 1},
	})
	assert.ErrorIs(t, err, pricing.ErrNoStaticPrice)
}
