// Package estimator turns resource selections into priced estimates and compares providers.
package estimator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudcost-estimator/internal/metrics"
	"github.com/cloudcost-estimator/internal/pricing"
)

// HoursPerMonth is the billing month used for always-on resources
const HoursPerMonth = 730

// PriceResolver resolves a descriptor to a unit price. *pricing.Resolver implements it.
type PriceResolver interface {
	Resolve(ctx context.Context, d pricing.Descriptor) (pricing.UnitPrice, bool, error)
}

type ComputeSelection struct {
	Size          pricing.ComputeSize
	HoursPerMonth int
	Quantity      int
}

type StorageSelection struct {
	Tier   pricing.StorageTier
	SizeGB float64
}

type DatabaseSelection struct {
	Type      pricing.DatabaseType
	Tier      pricing.DatabaseTier
	StorageGB float64
}

// Selections is the set of resources to price. Every part is optional.
type Selections struct {
	Compute             *ComputeSelection
	Storage             *StorageSelection
	Database            *DatabaseSelection
	DataTransferGB      float64
	IncludeLoadBalancer bool
}

// LineItem is one billed row of an estimate
type LineItem struct {
	Label       string
	Kind        pricing.ResourceKind
	UnitPrice   pricing.UnitPrice
	Quantity    decimal.Decimal
	MonthlyCost decimal.Decimal
}

// Estimate is the priced result for one provider. TotalAnnual is always TotalMonthly * 12.
type Estimate struct {
	ID           string
	Provider     pricing.Provider
	LineItems    []LineItem
	TotalMonthly decimal.Decimal
	TotalAnnual  decimal.Decimal
	GeneratedAt  time.Time
}

// Sources returns the distinct provenance labels of the line items in line item order
func (e *Estimate) Sources() []string {
	seen := make(map[string]bool, len(e.LineItems))
	var sources []string
	for _, item := range e.LineItems {
		label := item.UnitPrice.Provenance.String()
		if !seen[label] {
			seen[label] = true
			sources = append(sources, label)
		}
	}
	return sources
}

// PricingNote summarizes where the estimate's prices came from
func (e *Estimate) PricingNote() string {
	sources := e.Sources()
	if len(sources) == 0 {
		return "No resources selected"
	}
	return "Prices from: " + strings.Join(sources, ", ")
}

// ComparisonResult holds one estimate per provider in enumeration order
type ComparisonResult struct {
	Estimates        []*Estimate
	CheapestProvider pricing.Provider
	PotentialSavings decimal.Decimal
}

type Aggregator struct {
	resolver PriceResolver
	logger   *zap.Logger
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

func NewAggregator(resolver PriceResolver, logger *zap.Logger, recorder *metrics.Recorder) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		resolver: resolver,
		logger:   logger,
		metrics:  recorder,
		tracer:   otel.Tracer("cloudcost/estimator"),
		now:      time.Now,
	}
}

// linePlan is a line item waiting for its unit price
type linePlan struct {
	label      string
	descriptor pricing.Descriptor
	quantity   decimal.Decimal
}

// BuildEstimate prices the selections for one provider. Lookups run concurrently; line items
// keep the order compute, storage, database, database storage, transfer, load balancer. It
// fails only when a price is missing from the static table, never because a live source is
// down.
func (a *Aggregator) BuildEstimate(ctx context.Context, provider pricing.Provider, sel Selections) (*Estimate, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %q", pricing.ErrUnknownProvider, provider)
	}

	plans := planLineItems(provider, sel)
	items := make([]LineItem, len(plans))

	ctx, span := a.tracer.Start(ctx, "estimator.BuildEstimate", trace.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.Int("line_items", len(plans)),
	))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	for i, plan := range plans {
		i, plan := i, plan
		g.Go(func() error {
			price, _, err := a.resolver.Resolve(gctx, plan.descriptor)
			if err != nil {
				return fmt.Errorf("pricing %s: %w", plan.descriptor, err)
			}
			items[i] = LineItem{
				Label:       plan.label,
				Kind:        plan.descriptor.Kind,
				UnitPrice:   price,
				Quantity:    plan.quantity,
				MonthlyCost: decimal.NewFromFloat(price.Amount).Mul(plan.quantity),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Error("failed to build estimate", zap.String("provider", string(provider)), zap.Error(err))
		return nil, err
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.MonthlyCost)
	}

	id := uuid.NewString()
	span.SetAttributes(attribute.String("estimate.id", id), attribute.String("estimate.total_monthly", total.StringFixed(2)))
	a.metrics.ObserveEstimate(string(provider))
	return &Estimate{
		ID:           id,
		Provider:     provider,
		LineItems:    items,
		TotalMonthly: total,
		TotalAnnual:  total.Mul(decimal.NewFromInt(12)),
		GeneratedAt:  a.now().UTC(),
	}, nil
}

func planLineItems(provider pricing.Provider, sel Selections) []linePlan {
	var plans []linePlan

	if c := sel.Compute; c != nil {
		instance := pricing.InstanceType(provider, c.Size)
		plans = append(plans, linePlan{
			label:      fmt.Sprintf("%s %s (%s) x%d", instance.Name, instance.SKU, c.Size, c.Quantity),
			descriptor: pricing.ComputeDescriptor(provider, c.Size),
			quantity:   decimal.NewFromInt(int64(c.HoursPerMonth)).Mul(decimal.NewFromInt(int64(c.Quantity))),
		})
	}

	if s := sel.Storage; s != nil {
		plans = append(plans, linePlan{
			label:      fmt.Sprintf("%s (%s)", pricing.StorageService(provider, s.Tier).Name, s.Tier),
			descriptor: pricing.StorageDescriptor(provider, s.Tier),
			quantity:   decimal.NewFromFloat(s.SizeGB),
		})
	}

	if db := sel.Database; db != nil {
		service := pricing.DatabaseService(provider, db.Type)
		plans = append(plans,
			linePlan{
				label:      fmt.Sprintf("%s (%s)", service.Name, db.Tier),
				descriptor: pricing.DatabaseDescriptor(provider, db.Type, db.Tier),
				quantity:   decimal.NewFromInt(1),
			},
			linePlan{
				label:      service.Name + " storage",
				descriptor: pricing.DatabaseStorageDescriptor(provider),
				quantity:   decimal.NewFromFloat(db.StorageGB),
			},
		)
	}

	if sel.DataTransferGB > 0 {
		plans = append(plans, linePlan{
			label:      pricing.NetworkServiceName(provider, pricing.KindNetworkTransfer),
			descriptor: pricing.NetworkTransferDescriptor(provider),
			quantity:   decimal.NewFromFloat(sel.DataTransferGB),
		})
	}

	if sel.IncludeLoadBalancer {
		plans = append(plans, linePlan{
			label:      pricing.NetworkServiceName(provider, pricing.KindLoadBalancer),
			descriptor: pricing.LoadBalancerDescriptor(provider),
			quantity:   decimal.NewFromInt(HoursPerMonth),
		})
	}

	return plans
}

// CompareProviders builds one estimate per provider in parallel. The cheapest provider is
// the one with the lowest monthly total, ties going to the earlier provider in
// pricing.Providers.
func (a *Aggregator) CompareProviders(ctx context.Context, sel Selections) (*ComparisonResult, error) {
	estimates := make([]*Estimate, len(pricing.Providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, provider := range pricing.Providers {
		i, provider := i, provider
		g.Go(func() error {
			estimate, err := a.BuildEstimate(gctx, provider, sel)
			if err != nil {
				return err
			}
			estimates[i] = estimate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cheapest, priciest := estimates[0], estimates[0]
	for _, e := range estimates[1:] {
		if e.TotalMonthly.LessThan(cheapest.TotalMonthly) {
			cheapest = e
		}
		if e.TotalMonthly.GreaterThan(priciest.TotalMonthly) {
			priciest = e
		}
	}

	a.logger.Debug("compared providers",
		zap.String("cheapest", string(cheapest.Provider)),
		zap.String("savings", priciest.TotalMonthly.Sub(cheapest.TotalMonthly).StringFixed(2)),
	)
	return &ComparisonResult{
		Estimates:        estimates,
		CheapestProvider: cheapest.Provider,
		PotentialSavings: priciest.TotalMonthly.Sub(cheapest.TotalMonthly),
	}, nil
}
