package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudcost-estimator/internal/config"
	"github.com/cloudcost-estimator/internal/pricing"
)

// stubAdapter answers every fetch with the same result
type stubAdapter struct {
	provider pricing.Provider
	compute  pricing.Result
	storage  pricing.Result
	health   pricing.HealthStatus
}

func (s *stubAdapter) Provider() pricing.Provider { return s.provider }

func (s *stubAdapter) FetchComputePrice(context.Context, pricing.ComputeSize, string) pricing.Result {
	return s.compute
}

func (s *stubAdapter) FetchStoragePrice(context.Context, pricing.StorageTier, string) pricing.Result {
	return s.storage
}

func (s *stubAdapter) CheckHealth(context.Context) pricing.HealthStatus { return s.health }

func downAdapters() []pricing.Adapter {
	var adapters []pricing.Adapter
	for _, p := range pricing.Providers {
		adapters = append(adapters, &stubAdapter{
			provider: p,
			compute:  pricing.Unavailable(nil),
			storage:  pricing.Unavailable(nil),
			health:   pricing.HealthUnavailable,
		})
	}
	return adapters
}

func testConfig() *config.Config {
	return &config.Config{
		APIPort:     "8080",
		AWSRegion:   "us-east-1",
		AzureRegion: "uksouth",
		GCPRegion:   "us-central1",
	}
}

func setupTestServer(adapters ...pricing.Adapter) *Server {
	gin.SetMode(gin.TestMode)
	if len(adapters) == 0 {
		adapters = downAdapters()
	}
	return newServer(testConfig(), zap.NewNop(), adapters)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeEstimate(t *testing.T, w *httptest.ResponseRecorder) EstimateResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	server := setupTestServer(
		&stubAdapter{provider: pricing.AWS, health: pricing.HealthLive},
		&stubAdapter{provider: pricing.Azure, health: pricing.HealthDegraded},
		&stubAdapter{provider: pricing.GCP, health: pricing.HealthNoAPIKey},
	)

	w := doRequest(server, "GET", "/api/v1/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status         string            `json:"status"`
		Service        string            `json:"service"`
		PricingSources map[string]string `json:"pricing_sources"`
		CachedPrices   int               `json:"cached_prices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, ServiceName, body.Service)
	assert.Equal(t, map[string]string{
		"aws":   "live",
		"azure": "degraded",
		"gcp":   "no API key",
	}, body.PricingSources)
	assert.Zero(t, body.CachedPrices)
}

func TestSwaggerEndpoint(t *testing.T) {
	server := setupTestServer()

	w := doRequest(server, "GET", "/api/swagger/index.html", "")

	// Swagger UI should be accessible
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSwaggerDocJSON(t *testing.T) {
	server := setupTestServer()

	req := httptest.NewRequest("GET", "/api/swagger/doc.json", nil)
	req.Header.Set("X-Forwarded-Host", "costs.example.com")
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), "swagger")
	assert.Contains(t, w.Body.String(), `"host":"costs.example.com"`)
}

func TestEstimateComputeFallback(t *testing.T) {
	server := setupTestServer()

	w := doRequest(server, "POST", "/api/v1/estimate/compute", `{"provider":"aws","size":"medium"}`)
	resp := decodeEstimate(t, w)

	assert.Equal(t, "aws", resp.Provider)
	assert.Equal(t, "Amazon Web Services", resp.ProviderDisplayName)
	assert.Equal(t, "us-east-1", resp.Region)
	assert.Equal(t, "USD", resp.Currency)
	assert.NotEmpty(t, resp.EstimateID)
	assert.NotEmpty(t, resp.LastUpdated)

	require.Len(t, resp.Breakdown, 1)
	item := resp.Breakdown[0]
	assert.Equal(t, "compute", item.ResourceKind)
	assert.Equal(t, "hour", item.Unit)
	assert.Equal(t, 0.0464, item.UnitCost)
	assert.Equal(t, 730.0, item.Quantity)
	assert.Equal(t, 33.87, item.MonthlyCost)
	assert.Equal(t, "AWS Public Pricing Data (fallback)", item.PricingSource)

	assert.Equal(t, 33.87, resp.TotalMonthlyCost)
	assert.Equal(t, 406.46, resp.TotalAnnualCost)
	assert.Equal(t, "Prices from: AWS Public Pricing Data (fallback)", resp.PricingNote)
}

func TestEstimateComputeLive(t *testing.T) {
	server := setupTestServer(&stubAdapter{
		provider: pricing.Azure,
		compute:  pricing.Ok(0.05, "Azure Retail Prices API"),
		health:   pricing.HealthLive,
	})

	w := doRequest(server, "POST", "/api/v1/estimate/compute",
		`{"provider":"azure","size":"medium","hours_per_month":100,"quantity":2}`)
	resp := decodeEstimate(t, w)

	require.Len(t, resp.Breakdown, 1)
	assert.Equal(t, 200.0, resp.Breakdown[0].Quantity)
	assert.Equal(t, 10.0, resp.TotalMonthlyCost)
	assert.Equal(t, 120.0, resp.TotalAnnualCost)
	assert.Equal(t, "Azure Retail Prices API (live)", resp.Breakdown[0].PricingSource)

	// The second call is served from the cache
	w = doRequest(server, "POST", "/api/v1/estimate/compute",
		`{"provider":"azure","size":"medium","hours_per_month":100,"quantity":2}`)
	resp = decodeEstimate(t, w)
	assert.Equal(t, "Azure Retail Prices API (cached)", resp.Breakdown[0].PricingSource)
}

func TestEstimateStorage(t *testing.T) {
	server := setupTestServer()

	w := doRequest(server, "POST", "/api/v1/estimate/storage",
		`{"provider":"gcp","storage_type":"standard","size_gb":100}`)
	resp := decodeEstimate(t, w)

	require.Len(t, resp.Breakdown, 1)
	assert.Equal(t, "GB-month", resp.Breakdown[0].Unit)
	assert.Equal(t, 2.0, resp.TotalMonthlyCost)
	assert.Equal(t, 24.0, resp.TotalAnnualCost)
}

func TestEstimateDatabase(t *testing.T) {
	server := setupTestServer()

	w := doRequest(server, "POST", "/api/v1/estimate/database",
		`{"provider":"aws","database_type":"sql","storage_gb":100}`)
	resp := decodeEstimate(t, w)

	require.Len(t, resp.Breakdown, 2)
	assert.Equal(t, "database", resp.Breakdown[0].ResourceKind)
	assert.Equal(t, 49.64, resp.Breakdown[0].MonthlyCost, "tier defaults to standard")
	assert.Equal(t, "database-storage", resp.Breakdown[1].ResourceKind)
	assert.Equal(t, 11.5, resp.Breakdown[1].MonthlyCost)
	assert.Equal(t, 61.14, resp.TotalMonthlyCost)
}

func TestEstimateFull(t *testing.T) {
	server := setupTestServer()

	body := `{
		"provider": "aws",
		"compute": {"size": "medium"},
		"storage": {"storage_type": "standard", "size_gb": 100},
		"database": {"database_type": "sql", "tier": "basic"},
		"data_transfer_gb": 50,
		"include_load_balancer": true
	}`
	resp := decodeEstimate(t, doRequest(server, "POST", "/api/v1/estimate/full", body))

	kinds := make([]string, 0, len(resp.Breakdown))
	exact := decimal.Zero
	for _, item := range resp.Breakdown {
		kinds = append(kinds, item.ResourceKind)
		exact = exact.Add(decimal.NewFromFloat(item.UnitCost).Mul(decimal.NewFromFloat(item.Quantity)))
	}
	assert.Equal(t, []string{"compute", "storage", "database", "database-storage", "network-transfer", "load-balancer"}, kinds)

	// 33.872 + 2.3 + 12.41 + 0 + 4.5 + 16.425 = 69.507; both totals round from the exact sum
	assert.Equal(t, "69.507", exact.String())
	assert.Equal(t, 69.51, resp.TotalMonthlyCost)
	assert.Equal(t, 834.08, resp.TotalAnnualCost)
	assert.Equal(t, exact.Mul(decimal.NewFromInt(12)).Round(2).InexactFloat64(), resp.TotalAnnualCost)
	assert.InDelta(t, resp.TotalMonthlyCost*12, resp.TotalAnnualCost, 0.06)
}

func TestEstimateFullEmpty(t *testing.T) {
	server := setupTestServer()

	resp := decodeEstimate(t, doRequest(server, "POST", "/api/v1/estimate/full", `{"provider":"gcp"}`))

	assert.Empty(t, resp.Breakdown)
	assert.Zero(t, resp.TotalMonthlyCost)
	assert.Zero(t, resp.TotalAnnualCost)
	assert.Equal(t, "No resources selected", resp.PricingNote)
}

func TestEstimateValidation(t *testing.T) {
	server := setupTestServer()

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown provider", "/api/v1/estimate/compute", `{"provider":"oracle","size":"medium"}`},
		{"missing provider", "/api/v1/estimate/compute", `{"size":"medium"}`},
		{"unknown size", "/api/v1/estimate/compute", `{"provider":"aws","size":"huge"}`},
		{"hours above month", "/api/v1/estimate/compute", `{"provider":"aws","size":"small","hours_per_month":745}`},
		{"zero quantity", "/api/v1/estimate/compute", `{"provider":"aws","size":"small","quantity":0}`},
		{"storage too small", "/api/v1/estimate/storage", `{"provider":"aws","storage_type":"standard","size_gb":0.01}`},
		{"unknown storage type", "/api/v1/estimate/storage", `{"provider":"aws","storage_type":"cold","size_gb":10}`},
		{"unknown database type", "/api/v1/estimate/database", `{"provider":"aws","database_type":"graph"}`},
		{"negative transfer", "/api/v1/estimate/full", `{"provider":"aws","data_transfer_gb":-1}`},
		{"invalid nested compute", "/api/v1/estimate/full", `{"provider":"aws","compute":{"size":"tiny"}}`},
		{"malformed json", "/api/v1/estimate/full", `{"provider":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(server, "POST", tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestCompareProviders(t *testing.T) {
	server := setupTestServer()

	w := doRequest(server, "POST", "/api/v1/compare", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ComparisonResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Estimates, 3)
	assert.Equal(t, "aws", resp.Estimates[0].Provider)
	assert.Equal(t, "azure", resp.Estimates[1].Provider)
	assert.Equal(t, "gcp", resp.Estimates[2].Provider)
	assert.Equal(t, "gcp", resp.CheapestProvider)
	assert.Equal(t, 9.72, resp.PotentialSavings)
	assert.Equal(t, "USD", resp.Currency)

	for _, est := range resp.Estimates {
		assert.Len(t, est.Breakdown, 2, "defaults select compute and storage")
	}
}

func TestCompareProvidersQuery(t *testing.T) {
	server := setupTestServer()

	w := doRequest(server, "POST",
		"/api/v1/compare?compute_size=small&storage_gb=10&include_database=true&database_type=cache&include_load_balancer=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ComparisonResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	for _, est := range resp.Estimates {
		assert.Len(t, est.Breakdown, 5)
	}

	w = doRequest(server, "POST", "/api/v1/compare?compute_size=gigantic", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	server := setupTestServer()

	t.Run("providers", func(t *testing.T) {
		w := doRequest(server, "GET", "/api/v1/providers", "")
		require.Equal(t, http.StatusOK, w.Code)

		var providers map[string]struct {
			Name          string   `json:"name"`
			DefaultRegion string   `json:"default_region"`
			Regions       []string `json:"regions"`
			PricingRegion string   `json:"pricing_region"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &providers))
		assert.Len(t, providers, 3)
		assert.Equal(t, "uksouth", providers["azure"].PricingRegion)
		assert.NotEmpty(t, providers["gcp"].Regions)
	})

	t.Run("resource types", func(t *testing.T) {
		w := doRequest(server, "GET", "/api/v1/resource-types", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "xlarge")
		assert.Contains(t, w.Body.String(), "archive")
		assert.Contains(t, w.Body.String(), "load_balancer")
	})

	t.Run("instance types", func(t *testing.T) {
		w := doRequest(server, "GET", "/api/v1/instance-types", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "t3.medium")
		assert.Contains(t, w.Body.String(), "Standard_B2s")
		assert.Contains(t, w.Body.String(), "e2-medium")
	})

	t.Run("storage services", func(t *testing.T) {
		w := doRequest(server, "GET", "/api/v1/storage-services", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("database services", func(t *testing.T) {
		w := doRequest(server, "GET", "/api/v1/database-services", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("service info", func(t *testing.T) {
		w := doRequest(server, "GET", "/api/v1/", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), Version)

		var info map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		assert.Equal(t, "Cloud Cost Estimator API", info["message"])
		assert.Equal(t, "Cloud Cost Estimator API", info["name"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer()

	decodeEstimate(t, doRequest(server, "POST", "/api/v1/estimate/compute", `{"provider":"aws","size":"small"}`))

	w := doRequest(server, "GET", "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `cloudcost_estimates_total{provider="aws"} 1`)
	assert.Contains(t, w.Body.String(), `cloudcost_price_lookups_total{kind="compute",mode="fallback",provider="aws"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	server := setupTestServer()

	w := doRequest(server, "OPTIONS", "/api/v1/estimate/full", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
