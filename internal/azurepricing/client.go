package azurepricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/cloudcost-estimator/internal/pricing"
)

const (
	DefaultBaseURL = "https://prices.azure.com/api/retail/prices"
	Source         = "Azure Retail Prices API"

	// p10DiskSizeGB converts the monthly P10 managed disk price to a per GB-month rate
	p10DiskSizeGB = 128
)

// Client queries the public Azure Retail Prices API. No authentication is needed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// RetailPriceResponse is one page of the Retail Prices API
type RetailPriceResponse struct {
	BillingCurrency string            `json:"BillingCurrency"`
	Items           []RetailPriceItem `json:"Items"`
	NextPageLink    *string           `json:"NextPageLink"`
	Count           int               `json:"Count"`
}

type RetailPriceItem struct {
	CurrencyCode     string  `json:"currencyCode"`
	TierMinimumUnits float64 `json:"tierMinimumUnits"`
	RetailPrice      float64 `json:"retailPrice"`
	UnitPrice        float64 `json:"unitPrice"`
	ArmRegionName    string  `json:"armRegionName"`
	MeterName        string  `json:"meterName"`
	ProductName      string  `json:"productName"`
	SkuName          string  `json:"skuName"`
	ServiceName      string  `json:"serviceName"`
	UnitOfMeasure    string  `json:"unitOfMeasure"`
	Type             string  `json:"type"`
	ArmSkuName       string  `json:"armSkuName"`
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: pricing.ClampTimeout(timeout),
		},
		logger: logger,
	}
}

func (c *Client) Provider() pricing.Provider {
	return pricing.Azure
}

// FetchComputePrice returns the Linux pay-as-you-go hourly price of the VM size mapped to size
func (c *Client) FetchComputePrice(ctx context.Context, size pricing.ComputeSize, region string) pricing.Result {
	sku := pricing.InstanceType(pricing.Azure, size).SKU
	filter := fmt.Sprintf(
		"serviceName eq 'Virtual Machines' and armSkuName eq '%s' and armRegionName eq '%s' and priceType eq 'Consumption'",
		sku, region,
	)

	items, err := c.query(ctx, filter, 0)
	if err != nil {
		return pricing.Unavailable(fmt.Errorf("vm %s: %w", sku, err))
	}

	for _, item := range items {
		if !isLinuxOnDemand(item) {
			continue
		}
		return c.accept(pricing.KindCompute, item.RetailPrice)
	}
	return pricing.Unavailable(fmt.Errorf("%w: vm %s in %s", pricing.ErrPriceNotFound, sku, region))
}

// isLinuxOnDemand drops Windows licensed, Spot and Low Priority meters, which share the
// armSkuName of the plain Linux meter
func isLinuxOnDemand(item RetailPriceItem) bool {
	if item.Type != "" && item.Type != "Consumption" {
		return false
	}
	product := strings.ToLower(item.ProductName)
	sku := strings.ToLower(item.SkuName)
	meter := strings.ToLower(item.MeterName)
	switch {
	case strings.Contains(product, "windows"):
		return false
	case strings.Contains(sku, "spot"), strings.Contains(meter, "spot"):
		return false
	case strings.Contains(sku, "low priority"), strings.Contains(meter, "low priority"):
		return false
	}
	return true
}

func (c *Client) FetchStoragePrice(ctx context.Context, tier pricing.StorageTier, region string) pricing.Result {
	var filter string
	divisor := 1.0
	switch tier {
	case pricing.TierStandard:
		filter = fmt.Sprintf("serviceName eq 'Storage' and armRegionName eq '%s' and skuName eq 'Hot LRS' and meterName eq 'Hot LRS Data Stored'", region)
	case pricing.TierArchive:
		filter = fmt.Sprintf("serviceName eq 'Storage' and armRegionName eq '%s' and skuName eq 'Archive LRS' and meterName eq 'Archive LRS Data Stored'", region)
	case pricing.TierPremium:
		filter = fmt.Sprintf("serviceName eq 'Storage' and armRegionName eq '%s' and productName eq 'Premium SSD Managed Disks' and skuName eq 'P10 LRS'", region)
		divisor = p10DiskSizeGB
	default:
		return pricing.Unavailable(fmt.Errorf("%w: storage tier %q", pricing.ErrPriceNotFound, tier))
	}

	items, err := c.query(ctx, filter, 0)
	if err != nil {
		return pricing.Unavailable(fmt.Errorf("storage %s: %w", tier, err))
	}

	for _, item := range items {
		// Hot and Archive capacity meters are tiered; the first tier is the list price
		if item.TierMinimumUnits != 0 || item.RetailPrice <= 0 {
			continue
		}
		if tier == pricing.TierPremium && strings.Contains(strings.ToLower(item.MeterName), "mount") {
			continue
		}
		return c.accept(pricing.KindStorage, item.RetailPrice/divisor)
	}
	return pricing.Unavailable(fmt.Errorf("%w: storage %s in %s", pricing.ErrPriceNotFound, tier, region))
}

func (c *Client) accept(kind pricing.ResourceKind, price float64) pricing.Result {
	if err := pricing.CheckPlausible(kind, price); err != nil {
		return pricing.Unavailable(err)
	}
	return pricing.Ok(price, Source)
}

// CheckHealth requests a single item from the catalog
func (c *Client) CheckHealth(ctx context.Context) pricing.HealthStatus {
	_, err := c.query(ctx, "", 1)
	if err == nil {
		return pricing.HealthLive
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return pricing.HealthDegraded
	}
	c.logger.Debug("azure retail prices health check failed", zap.Error(err))
	return pricing.HealthUnavailable
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("azure retail prices request failed with status %d: %s", e.code, e.body)
}

// query fetches the first page matching filter. top <= 0 leaves the page size to the API.
func (c *Client) query(ctx context.Context, filter string, top int) ([]RetailPriceItem, error) {
	params := url.Values{}
	if filter != "" {
		params.Set("$filter", filter)
	}
	if top > 0 {
		params.Set("$top", fmt.Sprint(top))
	}
	reqURL := c.baseURL
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore close errors
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var page RetailPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return page.Items, nil
}
