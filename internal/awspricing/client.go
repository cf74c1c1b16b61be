package awspricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	pricingapi "github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/cloudcost-estimator/internal/pricing"
)

const (
	// DefaultIndexURL is the public bulk offer index. It is only probed for reachability;
	// the per-service files it points at are hundreds of megabytes.
	DefaultIndexURL = "https://pricing.us-east-1.amazonaws.com/offers/v1.0/aws/index.json"

	SourcePriceListAPI  = "AWS Price List API"
	SourceVerifiedIndex = "AWS Public Pricing (verified via live index)"
)

var (
	errIndexUnreachable = errors.New("aws public price index unreachable")
	errIndexStatus      = errors.New("aws public price index returned an error status")
)

// getLocationForRegion maps AWS region to Pricing API location format
func getLocationForRegion(region string) string {
	locationMap := map[string]string{
		"us-east-1":      "US East (N. Virginia)",
		"us-east-2":      "US East (Ohio)",
		"us-west-1":      "US West (N. California)",
		"us-west-2":      "US West (Oregon)",
		"eu-west-1":      "EU (Ireland)",
		"eu-west-2":      "EU (London)",
		"eu-west-3":      "EU (Paris)",
		"eu-central-1":   "EU (Frankfurt)",
		"ap-southeast-1": "Asia Pacific (Singapore)",
		"ap-southeast-2": "Asia Pacific (Sydney)",
		"ap-northeast-1": "Asia Pacific (Tokyo)",
		"ap-south-1":     "Asia Pacific (Mumbai)",
		"ca-central-1":   "Canada (Central)",
		"sa-east-1":      "South America (Sao Paulo)",
	}

	if location, ok := locationMap[region]; ok {
		return location
	}
	return "US East (N. Virginia)"
}

// ProductsAPI is the subset of the Pricing service client used here
type ProductsAPI interface {
	GetProducts(ctx context.Context, params *pricingapi.GetProductsInput, optFns ...func(*pricingapi.Options)) (*pricingapi.GetProductsOutput, error)
}

// Options configures the AWS adapter
type Options struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Timeout         time.Duration
	IndexURL        string
	Logger          *zap.Logger
}

// Client is the AWS price adapter. With credentials it queries the Price List GetProducts
// API; without them it only confirms the public offer index is reachable and vouches for the
// static reference price.
type Client struct {
	httpClient *http.Client
	indexURL   string
	products   ProductsAPI
	logger     *zap.Logger
}

// NewClient creates the AWS adapter. A failure to load SDK configuration is not fatal; the
// client then runs in index-verification mode.
func NewClient(ctx context.Context, opts Options) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: pricing.ClampTimeout(opts.Timeout),
		},
		indexURL: opts.IndexURL,
		logger:   opts.Logger,
	}
	if client.indexURL == "" {
		client.indexURL = DefaultIndexURL
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}

	accessKeyID := strings.TrimSpace(opts.AccessKeyID)
	secretAccessKey := strings.TrimSpace(opts.SecretAccessKey)
	if accessKeyID == "" || secretAccessKey == "" {
		client.logger.Info("AWS credentials not configured, live AWS prices limited to index verification")
		return client
	}

	// GetProducts is only served from us-east-1 and ap-south-1; the location filter selects
	// the priced region.
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			strings.TrimSpace(opts.SessionToken),
		)),
	)
	if err != nil {
		client.logger.Warn("failed to load AWS config, using index verification", zap.Error(err))
		return client
	}

	client.products = pricingapi.NewFromConfig(cfg)
	return client
}

// NewClientWithProducts creates an adapter backed by an existing GetProducts implementation
func NewClientWithProducts(products ProductsAPI, opts Options) *Client {
	client := NewClient(context.Background(), Options{
		Timeout:  opts.Timeout,
		IndexURL: opts.IndexURL,
		Logger:   opts.Logger,
	})
	client.products = products
	return client
}

func (c *Client) Provider() pricing.Provider {
	return pricing.AWS
}

// UsesPriceListAPI reports whether live prices come from GetProducts
func (c *Client) UsesPriceListAPI() bool {
	return c.products != nil
}

func (c *Client) FetchComputePrice(ctx context.Context, size pricing.ComputeSize, region string) pricing.Result {
	if c.products == nil {
		return c.verifiedStaticPrice(ctx, pricing.ComputeDescriptor(pricing.AWS, size))
	}

	instanceType := pricing.InstanceType(pricing.AWS, size).SKU
	filters := []pricingtypes.Filter{
		termMatch("instanceType", instanceType),
		termMatch("tenancy", "Shared"),
		termMatch("operatingSystem", "Linux"),
		termMatch("preInstalledSw", "NA"),
		termMatch("capacitystatus", "Used"),
		termMatch("location", getLocationForRegion(region)),
	}

	price, err := c.queryGetProducts(ctx, "AmazonEC2", filters)
	if err != nil {
		return pricing.Unavailable(fmt.Errorf("ec2 %s: %w", instanceType, err))
	}
	return c.accept(pricing.KindCompute, price)
}

func (c *Client) FetchStoragePrice(ctx context.Context, tier pricing.StorageTier, region string) pricing.Result {
	if c.products == nil {
		return c.verifiedStaticPrice(ctx, pricing.StorageDescriptor(pricing.AWS, tier))
	}

	location := termMatch("location", getLocationForRegion(region))
	var serviceCode string
	var filters []pricingtypes.Filter
	switch tier {
	case pricing.TierStandard:
		serviceCode = "AmazonS3"
		filters = []pricingtypes.Filter{termMatch("volumeType", "Standard"), termMatch("storageClass", "General Purpose"), location}
	case pricing.TierArchive:
		serviceCode = "AmazonS3"
		filters = []pricingtypes.Filter{termMatch("volumeType", "Glacier Instant Retrieval"), location}
	case pricing.TierPremium:
		serviceCode = "AmazonEC2"
		filters = []pricingtypes.Filter{termMatch("productFamily", "Storage"), termMatch("volumeApiName", "io2"), location}
	default:
		return pricing.Unavailable(fmt.Errorf("%w: storage tier %q", pricing.ErrPriceNotFound, tier))
	}

	price, err := c.queryGetProducts(ctx, serviceCode, filters)
	if err != nil {
		return pricing.Unavailable(fmt.Errorf("%s %s: %w", serviceCode, tier, err))
	}
	return c.accept(pricing.KindStorage, price)
}

func (c *Client) accept(kind pricing.ResourceKind, price float64) pricing.Result {
	if err := pricing.CheckPlausible(kind, price); err != nil {
		return pricing.Unavailable(err)
	}
	return pricing.Ok(price, SourcePriceListAPI)
}

// verifiedStaticPrice returns the static reference price labelled as verified when the
// public index answers. It does not parse the index.
func (c *Client) verifiedStaticPrice(ctx context.Context, d pricing.Descriptor) pricing.Result {
	if err := c.probeIndex(ctx); err != nil {
		return pricing.Unavailable(err)
	}
	amount, err := pricing.LookupStatic(d)
	if err != nil {
		return pricing.Unavailable(err)
	}
	return pricing.Ok(amount, SourceVerifiedIndex)
}

func (c *Client) probeIndex(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.indexURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errIndexUnreachable, err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore close errors
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", errIndexStatus, resp.StatusCode)
	}
	return nil
}

// CheckHealth probes the public offer index, which is reachable without credentials
func (c *Client) CheckHealth(ctx context.Context) pricing.HealthStatus {
	err := c.probeIndex(ctx)
	switch {
	case err == nil:
		return pricing.HealthLive
	case errors.Is(err, errIndexStatus):
		return pricing.HealthDegraded
	}
	return pricing.HealthUnavailable
}

func termMatch(field, value string) pricingtypes.Filter {
	return pricingtypes.Filter{
		Type:  pricingtypes.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

// queryGetProducts runs one GetProducts call and extracts the on-demand USD price of the
// first product returned
func (c *Client) queryGetProducts(ctx context.Context, serviceCode string, filters []pricingtypes.Filter) (float64, error) {
	input := &pricingapi.GetProductsInput{
		ServiceCode: aws.String(serviceCode),
		Filters:     append([]pricingtypes.Filter{termMatch("ServiceCode", serviceCode)}, filters...),
		MaxResults:  aws.Int32(1),
	}

	result, err := c.products.GetProducts(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("GetProducts API failed: %w", err)
	}
	if len(result.PriceList) == 0 {
		return 0, pricing.ErrPriceNotFound
	}

	return extractOnDemandPrice(result.PriceList[0])
}

// priceListItem is one GetProducts PriceList entry
type priceListItem struct {
	Product struct {
		SKU        string            `json:"sku"`
		Attributes map[string]string `json:"attributes"`
	} `json:"product"`
	Terms struct {
		// sku -> offer term code -> term
		OnDemand map[string]map[string]offerTerm `json:"OnDemand"`
	} `json:"terms"`
}

type offerTerm struct {
	PriceDimensions map[string]priceDimension `json:"priceDimensions"`
}

type priceDimension struct {
	Unit         string            `json:"unit"`
	BeginRange   string            `json:"beginRange"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

// extractOnDemandPrice returns the first positive USD price, preferring the dimension that
// starts at usage 0. Keys are walked in sorted order so the result is stable.
func extractOnDemandPrice(raw string) (float64, error) {
	var item priceListItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return 0, fmt.Errorf("failed to parse product data: %w", err)
	}

	terms, ok := item.Terms.OnDemand[item.Product.SKU]
	if !ok {
		// Fall back to the only sku present when the product section has none
		for _, t := range item.Terms.OnDemand {
			terms = t
			break
		}
	}
	if len(terms) == 0 {
		return 0, fmt.Errorf("%w: no OnDemand terms for sku %q", pricing.ErrPriceNotFound, item.Product.SKU)
	}

	var candidates []priceDimension
	for _, termCode := range sortedKeys(terms) {
		dims := terms[termCode].PriceDimensions
		for _, dimCode := range sortedKeys(dims) {
			candidates = append(candidates, dims[dimCode])
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].BeginRange == "0" && candidates[j].BeginRange != "0"
	})

	for _, dim := range candidates {
		usd, ok := dim.PricePerUnit["USD"]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(usd, 64)
		if err == nil && price > 0 {
			return price, nil
		}
	}
	return 0, fmt.Errorf("%w: no positive USD price for sku %q", pricing.ErrPriceNotFound, item.Product.SKU)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
