package gcppricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/cloudcost-estimator/internal/pricing"
)

const (
	DefaultBaseURL = "https://cloudbilling.googleapis.com/v1"
	Source         = "GCP Cloud Billing Catalog API"

	serviceComputeEngine = "Compute Engine"
	serviceCloudStorage  = "Cloud Storage"

	// maxPages bounds pagination through the SKU list of one service
	maxPages = 20
)

// Client reads list prices from the Cloud Billing Catalog API. An API key is required;
// without one every fetch is Unavailable and no request is made.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger

	mu sync.Mutex
	// display name -> resource name, e.g. "Compute Engine" -> "services/6F81-5844-456A"
	services map[string]string
}

type servicesPage struct {
	Services []struct {
		Name        string `json:"name"`
		ServiceID   string `json:"serviceId"`
		DisplayName string `json:"displayName"`
	} `json:"services"`
	NextPageToken string `json:"nextPageToken"`
}

type skusPage struct {
	Skus          []SKU  `json:"skus"`
	NextPageToken string `json:"nextPageToken"`
}

// SKU is the subset of a catalog SKU needed for matching and price decoding
type SKU struct {
	Name        string `json:"name"`
	SkuID       string `json:"skuId"`
	Description string `json:"description"`
	Category    struct {
		ServiceDisplayName string `json:"serviceDisplayName"`
		ResourceFamily     string `json:"resourceFamily"`
		ResourceGroup      string `json:"resourceGroup"`
		UsageType          string `json:"usageType"`
	} `json:"category"`
	ServiceRegions []string      `json:"serviceRegions"`
	PricingInfo    []PricingInfo `json:"pricingInfo"`
}

type PricingInfo struct {
	PricingExpression struct {
		UsageUnit   string       `json:"usageUnit"`
		TieredRates []TieredRate `json:"tieredRates"`
	} `json:"pricingExpression"`
}

type TieredRate struct {
	StartUsageAmount float64 `json:"startUsageAmount"`
	UnitPrice        Money   `json:"unitPrice"`
}

// Money is the google.type.Money encoding: units is an int64 serialized as a string
type Money struct {
	CurrencyCode string `json:"currencyCode"`
	Units        string `json:"units"`
	Nanos        int64  `json:"nanos"`
}

// Decode returns units + nanos/1e9
func (m Money) Decode() (float64, error) {
	var units int64
	if m.Units != "" {
		var err error
		units, err = strconv.ParseInt(m.Units, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid units %q: %w", m.Units, err)
		}
	}
	return float64(units) + float64(m.Nanos)/1_000_000_000, nil
}

// skuQuery selects the catalog SKU for one variant
type skuQuery struct {
	service string
	include []string
	exclude []string
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: pricing.ClampTimeout(timeout),
		},
		logger:   logger,
		services: make(map[string]string),
	}
}

func (c *Client) Provider() pricing.Provider {
	return pricing.GCP
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// FetchComputePrice matches the machine type name against SKU descriptions. Predefined E2
// machine types are billed per vCPU and GB of memory, so most sizes find no SKU and resolve
// through the static table.
func (c *Client) FetchComputePrice(ctx context.Context, size pricing.ComputeSize, region string) pricing.Result {
	machineType := pricing.InstanceType(pricing.GCP, size).SKU
	return c.fetch(ctx, pricing.KindCompute, region, skuQuery{
		service: serviceComputeEngine,
		include: []string{machineType},
		exclude: []string{"preemptible", "spot", "commitment"},
	})
}

func (c *Client) FetchStoragePrice(ctx context.Context, tier pricing.StorageTier, region string) pricing.Result {
	var q skuQuery
	switch tier {
	case pricing.TierStandard:
		q = skuQuery{service: serviceCloudStorage, include: []string{"standard storage"}, exclude: []string{"dual-region", "multi-region"}}
	case pricing.TierArchive:
		q = skuQuery{service: serviceCloudStorage, include: []string{"archive storage"}, exclude: []string{"retrieval", "dual-region", "multi-region"}}
	case pricing.TierPremium:
		q = skuQuery{service: serviceComputeEngine, include: []string{"ssd backed pd capacity"}, exclude: []string{"regional"}}
	default:
		return pricing.Unavailable(fmt.Errorf("%w: storage tier %q", pricing.ErrPriceNotFound, tier))
	}
	return c.fetch(ctx, pricing.KindStorage, region, q)
}

func (c *Client) fetch(ctx context.Context, kind pricing.ResourceKind, region string, q skuQuery) pricing.Result {
	if !c.Configured() {
		return pricing.Unavailable(pricing.ErrNotConfigured)
	}

	serviceName, err := c.serviceName(ctx, q.service)
	if err != nil {
		return pricing.Unavailable(err)
	}

	sku, err := c.findSKU(ctx, serviceName, region, q)
	if err != nil {
		return pricing.Unavailable(err)
	}

	price, err := firstPositiveRate(sku)
	if err != nil {
		return pricing.Unavailable(err)
	}
	if err := pricing.CheckPlausible(kind, price); err != nil {
		return pricing.Unavailable(err)
	}

	c.logger.Debug("matched gcp sku",
		zap.String("sku", sku.SkuID),
		zap.String("description", sku.Description),
		zap.Float64("price", price),
	)
	return pricing.Ok(price, Source)
}

// serviceName resolves a service display name to its resource name. Results are kept for
// the life of the client since service ids do not change.
func (c *Client) serviceName(ctx context.Context, displayName string) (string, error) {
	c.mu.Lock()
	name, ok := c.services[displayName]
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	pageToken := ""
	for page := 0; page < maxPages; page++ {
		var resp servicesPage
		if err := c.get(ctx, "/services", pageToken, &resp); err != nil {
			return "", err
		}
		for _, svc := range resp.Services {
			if svc.DisplayName == displayName {
				c.mu.Lock()
				c.services[displayName] = svc.Name
				c.mu.Unlock()
				return svc.Name, nil
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return "", fmt.Errorf("%w: billing service %q", pricing.ErrPriceNotFound, displayName)
}

func (c *Client) findSKU(ctx context.Context, serviceName, region string, q skuQuery) (SKU, error) {
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		var resp skusPage
		if err := c.get(ctx, "/"+serviceName+"/skus", pageToken, &resp); err != nil {
			return SKU{}, err
		}
		for _, sku := range resp.Skus {
			if matchesSKU(sku, region, q) {
				return sku, nil
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return SKU{}, fmt.Errorf("%w: no %s sku matching %v in %s", pricing.ErrPriceNotFound, q.service, q.include, region)
}

func matchesSKU(sku SKU, region string, q skuQuery) bool {
	description := strings.ToLower(sku.Description)
	for _, kw := range q.include {
		if !strings.Contains(description, strings.ToLower(kw)) {
			return false
		}
	}
	for _, kw := range q.exclude {
		if strings.Contains(description, kw) {
			return false
		}
	}
	if sku.Category.UsageType != "" && sku.Category.UsageType != "OnDemand" {
		return false
	}
	for _, r := range sku.ServiceRegions {
		if r == region {
			return true
		}
	}
	return false
}

// firstPositiveRate decodes the first non-zero tiered rate. A zero tier is a free usage
// allowance ahead of the paid tier; a SKU whose rates are all zero has no price.
func firstPositiveRate(sku SKU) (float64, error) {
	for _, info := range sku.PricingInfo {
		for _, rate := range info.PricingExpression.TieredRates {
			price, err := rate.UnitPrice.Decode()
			if err != nil {
				return 0, err
			}
			if price > 0 {
				return price, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: sku %s has no non-zero rate", pricing.ErrPriceNotFound, sku.SkuID)
}

// CheckHealth lists services once. Without an API key the catalog cannot be queried.
func (c *Client) CheckHealth(ctx context.Context) pricing.HealthStatus {
	if !c.Configured() {
		return pricing.HealthNoAPIKey
	}

	var resp servicesPage
	err := c.get(ctx, "/services", "", &resp)
	if err == nil {
		return pricing.HealthLive
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return pricing.HealthDegraded
	}
	c.logger.Debug("gcp billing catalog health check failed", zap.Error(err))
	return pricing.HealthUnavailable
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gcp billing catalog request failed with status %d: %s", e.code, e.body)
}

func (c *Client) get(ctx context.Context, path, pageToken string, out any) error {
	params := url.Values{}
	params.Set("key", c.apiKey)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the API key; keep it out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore close errors
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
