package pricing

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cloudcost-estimator/internal/metrics"
)

const (
	// DefaultTimeout bounds a single live fetch
	DefaultTimeout = 10 * time.Second
	MinTimeout     = 5 * time.Second
	MaxTimeout     = 15 * time.Second
)

// ResolverOptions configures a Resolver. Zero values fall back to defaults.
type ResolverOptions struct {
	Adapters []Adapter
	// Regions overrides the default region per provider
	Regions map[Provider]string
	Timeout time.Duration
	Cache   *Cache
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Resolver turns a Descriptor into a UnitPrice: cache first, then a live fetch through the
// provider's adapter, then the static table.
type Resolver struct {
	cache    *Cache
	adapters map[Provider]Adapter
	regions  map[Provider]string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Recorder
	tracer   trace.Tracer
}

func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		cache:    opts.Cache,
		adapters: make(map[Provider]Adapter, len(opts.Adapters)),
		regions:  make(map[Provider]string, len(Providers)),
		timeout:  ClampTimeout(opts.Timeout),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		tracer:   otel.Tracer("cloudcost/pricing"),
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	for _, a := range opts.Adapters {
		if a != nil {
			r.adapters[a.Provider()] = a
		}
	}
	for _, p := range Providers {
		r.regions[p] = Info(p).DefaultRegion
		if region := opts.Regions[p]; region != "" {
			r.regions[p] = region
		}
	}
	return r
}

// ClampTimeout keeps an upstream timeout within [MinTimeout, MaxTimeout]
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultTimeout
	case d < MinTimeout:
		return MinTimeout
	case d > MaxTimeout:
		return MaxTimeout
	}
	return d
}

// Region returns the region prices are looked up in for p
func (r *Resolver) Region(p Provider) string {
	return r.regions[p]
}

func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the unit price for d and whether a cache entry was written. It fails only
// when the static table has no entry for d, never because an upstream source is unavailable.
func (r *Resolver) Resolve(ctx context.Context, d Descriptor) (UnitPrice, bool, error) {
	if !d.Provider.Valid() {
		return UnitPrice{}, false, ErrUnknownProvider
	}
	if d.Region == "" {
		d.Region = r.Region(d.Provider)
	}

	ctx, span := r.tracer.Start(ctx, "pricing.Resolve", trace.WithAttributes(
		attribute.String("provider", string(d.Provider)),
		attribute.String("kind", string(d.Kind)),
		attribute.String("variant", d.Variant),
		attribute.String("region", d.Region),
	))
	defer span.End()

	key := d.Key()
	if entry, ok := r.cache.Get(key); ok {
		r.logger.Debug("price cache hit", zap.String("key", key), zap.Float64("amount", entry.Amount))
		return r.finish(span, d, UnitPrice{
			Amount:     entry.Amount,
			Provenance: Provenance{Source: entry.Source, Mode: ModeCached},
		}), false, nil
	}

	if res := r.fetchLive(ctx, d); res.Available() {
		r.cache.Put(key, res.Amount, res.Source, CacheTTL)
		return r.finish(span, d, UnitPrice{
			Amount:     res.Amount,
			Provenance: Provenance{Source: res.Source, Mode: ModeLive},
		}), true, nil
	}

	amount, err := LookupStatic(d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return UnitPrice{}, false, err
	}
	return r.finish(span, d, UnitPrice{
		Amount:     amount,
		Provenance: Provenance{Source: FallbackSource(d.Provider), Mode: ModeFallback},
	}), false, nil
}

func (r *Resolver) finish(span trace.Span, d Descriptor, price UnitPrice) UnitPrice {
	span.SetAttributes(
		attribute.String("price.mode", string(price.Provenance.Mode)),
		attribute.Float64("price.amount", price.Amount),
	)
	r.metrics.ObserveLookup(string(d.Provider), string(d.Kind), string(price.Provenance.Mode))
	return price
}

// fetchLive asks the provider's adapter for a price, bounded by the resolver timeout. Every
// failure is turned into an Unavailable result here.
func (r *Resolver) fetchLive(ctx context.Context, d Descriptor) Result {
	adapter, ok := r.adapters[d.Provider]
	if !ok {
		return Unavailable(ErrNoLiveSource)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var res Result
	switch d.Kind {
	case KindCompute:
		res = adapter.FetchComputePrice(fetchCtx, ComputeSize(d.Variant), d.Region)
	case KindStorage:
		res = adapter.FetchStoragePrice(fetchCtx, StorageTier(d.Variant), d.Region)
	default:
		return Unavailable(ErrNoLiveSource)
	}

	if res.Available() {
		if err := CheckPlausible(d.Kind, res.Amount); err != nil {
			res = Unavailable(err)
		}
	}
	if !res.Available() {
		if !errors.Is(res.Reason, ErrNoLiveSource) && !errors.Is(res.Reason, ErrNotConfigured) {
			r.metrics.ObserveUpstreamFailure(string(d.Provider), string(d.Kind))
			r.logger.Warn("live price unavailable, using fallback",
				zap.String("provider", string(d.Provider)),
				zap.String("kind", string(d.Kind)),
				zap.String("variant", d.Variant),
				zap.String("region", d.Region),
				zap.Error(res.Reason),
			)
		}
		return res
	}

	r.logger.Info("fetched live price",
		zap.String("provider", string(d.Provider)),
		zap.String("kind", string(d.Kind)),
		zap.String("variant", d.Variant),
		zap.Float64("amount", res.Amount),
		zap.String("source", res.Source),
	)
	return res
}
