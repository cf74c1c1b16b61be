package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloudcost-estimator/internal/estimator"
	"github.com/cloudcost-estimator/internal/pricing"
)

const (
	defaultHoursPerMonth = estimator.HoursPerMonth
	defaultQuantity      = 1
	currency             = "USD"
)

// ComputeSpec selects compute instances. Omitted hours and quantity default to 730 and 1.
type ComputeSpec struct {
	Size          string `json:"size" binding:"required,oneof=small medium large xlarge"`
	HoursPerMonth *int   `json:"hours_per_month,omitempty" binding:"omitempty,min=1,max=744"`
	Quantity      *int   `json:"quantity,omitempty" binding:"omitempty,min=1,max=1000"`
}

type StorageSpec struct {
	StorageType string  `json:"storage_type" binding:"required,oneof=standard premium archive"`
	SizeGB      float64 `json:"size_gb" binding:"required,gte=0.1,lte=1000000"`
}

// DatabaseSpec selects a managed database. Tier defaults to standard.
type DatabaseSpec struct {
	DatabaseType string   `json:"database_type" binding:"required,oneof=sql nosql cache"`
	Tier         string   `json:"tier,omitempty" binding:"omitempty,oneof=basic standard premium"`
	StorageGB    *float64 `json:"storage_gb,omitempty" binding:"omitempty,gte=0,lte=65536"`
}

type ComputeEstimateRequest struct {
	Provider string `json:"provider" binding:"required,oneof=aws azure gcp"`
	ComputeSpec
}

type StorageEstimateRequest struct {
	Provider string `json:"provider" binding:"required,oneof=aws azure gcp"`
	StorageSpec
}

type DatabaseEstimateRequest struct {
	Provider string `json:"provider" binding:"required,oneof=aws azure gcp"`
	DatabaseSpec
}

type FullEstimateRequest struct {
	Provider            string        `json:"provider" binding:"required,oneof=aws azure gcp"`
	Compute             *ComputeSpec  `json:"compute,omitempty"`
	Storage             *StorageSpec  `json:"storage,omitempty"`
	Database            *DatabaseSpec `json:"database,omitempty"`
	DataTransferGB      float64       `json:"data_transfer_gb" binding:"gte=0,lte=1000000"`
	IncludeLoadBalancer bool          `json:"include_load_balancer"`
}

// CompareQuery holds the /compare query parameters
type CompareQuery struct {
	ComputeSize         string  `form:"compute_size,default=medium" binding:"oneof=small medium large xlarge"`
	StorageGB           float64 `form:"storage_gb,default=100" binding:"gte=0.1,lte=1000000"`
	StorageType         string  `form:"storage_type,default=standard" binding:"oneof=standard premium archive"`
	HoursPerMonth       int     `form:"hours_per_month,default=730" binding:"min=1,max=744"`
	IncludeDatabase     bool    `form:"include_database"`
	DatabaseType        string  `form:"database_type,default=sql" binding:"oneof=sql nosql cache"`
	DatabaseTier        string  `form:"database_tier,default=standard" binding:"oneof=basic standard premium"`
	DatabaseStorageGB   float64 `form:"database_storage_gb,default=0" binding:"gte=0,lte=65536"`
	DataTransferGB      float64 `form:"data_transfer_gb,default=0" binding:"gte=0,lte=1000000"`
	IncludeLoadBalancer bool    `form:"include_load_balancer"`
}

type CostBreakdown struct {
	Item          string  `json:"item"`
	ResourceKind  string  `json:"resource_kind"`
	UnitCost      float64 `json:"unit_cost"`
	Unit          string  `json:"unit"`
	Quantity      float64 `json:"quantity"`
	MonthlyCost   float64 `json:"monthly_cost"`
	PricingSource string  `json:"pricing_source"`
}

type EstimateResponse struct {
	EstimateID          string          `json:"estimate_id"`
	Provider            string          `json:"provider"`
	ProviderDisplayName string          `json:"provider_display_name"`
	Region              string          `json:"region"`
	Breakdown           []CostBreakdown `json:"breakdown"`
	TotalMonthlyCost    float64         `json:"total_monthly_cost"`
	TotalAnnualCost     float64         `json:"total_annual_cost"`
	Currency            string          `json:"currency"`
	LastUpdated         string          `json:"last_updated"`
	PricingNote         string          `json:"pricing_note"`
}

type ComparisonResponse struct {
	Estimates        []EstimateResponse `json:"estimates"`
	CheapestProvider string             `json:"cheapest_provider"`
	PotentialSavings float64            `json:"potential_savings"`
	Currency         string             `json:"currency"`
}

func (spec *ComputeSpec) selection() *estimator.ComputeSelection {
	sel := &estimator.ComputeSelection{
		Size:          pricing.ComputeSize(spec.Size),
		HoursPerMonth: defaultHoursPerMonth,
		Quantity:      defaultQuantity,
	}
	if spec.HoursPerMonth != nil {
		sel.HoursPerMonth = *spec.HoursPerMonth
	}
	if spec.Quantity != nil {
		sel.Quantity = *spec.Quantity
	}
	return sel
}

func (spec *StorageSpec) selection() *estimator.StorageSelection {
	return &estimator.StorageSelection{
		Tier:   pricing.StorageTier(spec.StorageType),
		SizeGB: spec.SizeGB,
	}
}

func (spec *DatabaseSpec) selection() *estimator.DatabaseSelection {
	sel := &estimator.DatabaseSelection{
		Type: pricing.DatabaseType(spec.DatabaseType),
		Tier: pricing.DatabaseTierStandard,
	}
	if spec.Tier != "" {
		sel.Tier = pricing.DatabaseTier(spec.Tier)
	}
	if spec.StorageGB != nil {
		sel.StorageGB = *spec.StorageGB
	}
	return sel
}

func (q CompareQuery) selections() estimator.Selections {
	sel := estimator.Selections{
		DataTransferGB:      q.DataTransferGB,
		IncludeLoadBalancer: q.IncludeLoadBalancer,
	}
	sel.Compute = &estimator.ComputeSelection{
		Size:          pricing.ComputeSize(q.ComputeSize),
		HoursPerMonth: q.HoursPerMonth,
		Quantity:      defaultQuantity,
	}
	sel.Storage = (&StorageSpec{StorageType: q.StorageType, SizeGB: q.StorageGB}).selection()
	if q.IncludeDatabase {
		storage := q.DatabaseStorageGB
		sel.Database = (&DatabaseSpec{DatabaseType: q.DatabaseType, Tier: q.DatabaseTier, StorageGB: &storage}).selection()
	}
	return sel
}

// EstimateCompute godoc
// @Summary      Estimate compute cost
// @Tags         estimates
// @Accept       json
// @Produce      json
// @Param        request  body      ComputeEstimateRequest  true  "Compute selection"
// @Success      200      {object}  EstimateResponse
// @Failure      422      {object}  map[string]string
// @Router       /estimate/compute [post]
func (s *Server) estimateCompute(c *gin.Context) {
	var req ComputeEstimateRequest
	if !bindJSON(c, &req) {
		return
	}
	s.respondEstimate(c, req.Provider, estimator.Selections{Compute: req.ComputeSpec.selection()})
}

// EstimateStorage godoc
// @Summary      Estimate storage cost
// @Tags         estimates
// @Accept       json
// @Produce      json
// @Param        request  body      StorageEstimateRequest  true  "Storage selection"
// @Success      200      {object}  EstimateResponse
// @Failure      422      {object}  map[string]string
// @Router       /estimate/storage [post]
func (s *Server) estimateStorage(c *gin.Context) {
	var req StorageEstimateRequest
	if !bindJSON(c, &req) {
		return
	}
	s.respondEstimate(c, req.Provider, estimator.Selections{Storage: req.StorageSpec.selection()})
}

// EstimateDatabase godoc
// @Summary      Estimate managed database cost
// @Tags         estimates
// @Accept       json
// @Produce      json
// @Param        request  body      DatabaseEstimateRequest  true  "Database selection"
// @Success      200      {object}  EstimateResponse
// @Failure      422      {object}  map[string]string
// @Router       /estimate/database [post]
func (s *Server) estimateDatabase(c *gin.Context) {
	var req DatabaseEstimateRequest
	if !bindJSON(c, &req) {
		return
	}
	s.respondEstimate(c, req.Provider, estimator.Selections{Database: req.DatabaseSpec.selection()})
}

// EstimateFull godoc
// @Summary      Estimate a full stack
// @Description  Any combination of compute, storage, database, data transfer and a load balancer
// @Tags         estimates
// @Accept       json
// @Produce      json
// @Param        request  body      FullEstimateRequest  true  "Resource selections"
// @Success      200      {object}  EstimateResponse
// @Failure      422      {object}  map[string]string
// @Router       /estimate/full [post]
func (s *Server) estimateFull(c *gin.Context) {
	var req FullEstimateRequest
	if !bindJSON(c, &req) {
		return
	}

	sel := estimator.Selections{
		DataTransferGB:      req.DataTransferGB,
		IncludeLoadBalancer: req.IncludeLoadBalancer,
	}
	if req.Compute != nil {
		sel.Compute = req.Compute.selection()
	}
	if req.Storage != nil {
		sel.Storage = req.Storage.selection()
	}
	if req.Database != nil {
		sel.Database = req.Database.selection()
	}
	s.respondEstimate(c, req.Provider, sel)
}

// CompareProviders godoc
// @Summary      Compare providers
// @Description  Prices the same selections on every provider and reports the cheapest
// @Tags         compare
// @Produce      json
// @Param        compute_size           query     string   false  "small, medium, large or xlarge"  default(medium)
// @Param        storage_gb             query     number   false  "Storage size in GB"              default(100)
// @Param        storage_type           query     string   false  "standard, premium or archive"    default(standard)
// @Param        hours_per_month        query     int      false  "Compute hours per month"         default(730)
// @Param        include_database       query     bool     false  "Add a managed database"
// @Param        database_type          query     string   false  "sql, nosql or cache"             default(sql)
// @Param        database_tier          query     string   false  "basic, standard or premium"      default(standard)
// @Param        database_storage_gb    query     number   false  "Database storage in GB"
// @Param        data_transfer_gb       query     number   false  "Outbound data transfer in GB"
// @Param        include_load_balancer  query     bool     false  "Add a load balancer"
// @Success      200  {object}  ComparisonResponse
// @Failure      422  {object}  map[string]string
// @Router       /compare [post]
func (s *Server) compareProviders(c *gin.Context) {
	var q CompareQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	result, err := s.aggregator.CompareProviders(c.Request.Context(), q.selections())
	if err != nil {
		s.internalError(c, err)
		return
	}

	resp := ComparisonResponse{
		Estimates:        make([]EstimateResponse, 0, len(result.Estimates)),
		CheapestProvider: string(result.CheapestProvider),
		PotentialSavings: result.PotentialSavings.Round(2).InexactFloat64(),
		Currency:         currency,
	}
	for _, est := range result.Estimates {
		resp.Estimates = append(resp.Estimates, s.toResponse(est))
	}
	c.JSON(http.StatusOK, resp)
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) respondEstimate(c *gin.Context, provider string, sel estimator.Selections) {
	est, err := s.aggregator.BuildEstimate(c.Request.Context(), pricing.Provider(provider), sel)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownProvider) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.toResponse(est))
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("estimate failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// toResponse renders an estimate with money rounded to cents
func (s *Server) toResponse(est *estimator.Estimate) EstimateResponse {
	breakdown := make([]CostBreakdown, 0, len(est.LineItems))
	for _, item := range est.LineItems {
		breakdown = append(breakdown, CostBreakdown{
			Item:          item.Label,
			ResourceKind:  string(item.Kind),
			UnitCost:      item.UnitPrice.Amount,
			Unit:          item.Kind.Unit(),
			Quantity:      item.Quantity.InexactFloat64(),
			MonthlyCost:   item.MonthlyCost.Round(2).InexactFloat64(),
			PricingSource: item.UnitPrice.Provenance.String(),
		})
	}

	return EstimateResponse{
		EstimateID:          est.ID,
		Provider:            string(est.Provider),
		ProviderDisplayName: est.Provider.DisplayName(),
		Region:              s.resolver.Region(est.Provider),
		Breakdown:           breakdown,
		TotalMonthlyCost:    est.TotalMonthly.Round(2).InexactFloat64(),
		TotalAnnualCost:     est.TotalAnnual.Round(2).InexactFloat64(),
		Currency:            currency,
		LastUpdated:         est.GeneratedAt.Format(time.RFC3339),
		PricingNote:         est.PricingNote(),
	}
}
