package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	apiURL     string
	outputJSON bool

	provider            string
	computeSize         string
	hoursPerMonth       int
	quantity            int
	storageGB           float64
	storageType         string
	databaseType        string
	databaseTier        string
	databaseStorageGB   float64
	dataTransferGB      float64
	includeLoadBalancer bool
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

var rootCmd = &cobra.Command{
	Use:   "cloudcost",
	Short: "Cloud Cost Estimator CLI - Estimate and compare cloud costs",
	Long:  `A CLI tool to estimate monthly and annual costs on AWS, Azure and GCP and to compare the providers.`,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate costs on one provider",
	Long: `Estimate compute, storage, database and networking costs on one provider.
Resources are included only when their flags are set.`,
	RunE: runEstimate,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the same resources across providers",
	RunE:  runCompare,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show API and pricing source health",
	RunE:  runHealth,
}

var catalogCmd = &cobra.Command{
	Use:       "catalog [instance-types|storage-services|database-services]",
	Short:     "Show the concrete services behind each option",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"instance-types", "storage-services", "database-services"},
	RunE:      runCatalog,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	for _, cmd := range []*cobra.Command{estimateCmd, compareCmd} {
		cmd.Flags().StringVar(&computeSize, "size", "", "Compute size (small, medium, large, xlarge)")
		cmd.Flags().IntVar(&hoursPerMonth, "hours", 730, "Compute hours per month")
		cmd.Flags().Float64Var(&storageGB, "storage-gb", 0, "Storage size in GB")
		cmd.Flags().StringVar(&storageType, "storage-type", "standard", "Storage type (standard, premium, archive)")
		cmd.Flags().StringVar(&databaseType, "db-type", "", "Database type (sql, nosql, cache)")
		cmd.Flags().StringVar(&databaseTier, "db-tier", "standard", "Database tier (basic, standard, premium)")
		cmd.Flags().Float64Var(&databaseStorageGB, "db-storage-gb", 0, "Database storage in GB")
		cmd.Flags().Float64Var(&dataTransferGB, "transfer-gb", 0, "Outbound data transfer in GB")
		cmd.Flags().BoolVar(&includeLoadBalancer, "lb", false, "Include a load balancer")
	}
	estimateCmd.Flags().StringVarP(&provider, "provider", "p", "", "Cloud provider (aws, azure, gcp)")
	estimateCmd.Flags().IntVar(&quantity, "quantity", 1, "Number of compute instances")
	_ = estimateCmd.MarkFlagRequired("provider")

	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(catalogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type costBreakdown struct {
	Item          string  `json:"item"`
	UnitCost      float64 `json:"unit_cost"`
	Unit          string  `json:"unit"`
	Quantity      float64 `json:"quantity"`
	MonthlyCost   float64 `json:"monthly_cost"`
	PricingSource string  `json:"pricing_source"`
}

type estimate struct {
	Provider            string          `json:"provider"`
	ProviderDisplayName string          `json:"provider_display_name"`
	Region              string          `json:"region"`
	Breakdown           []costBreakdown `json:"breakdown"`
	TotalMonthlyCost    float64         `json:"total_monthly_cost"`
	TotalAnnualCost     float64         `json:"total_annual_cost"`
	PricingNote         string          `json:"pricing_note"`
}

type comparison struct {
	Estimates        []estimate `json:"estimates"`
	CheapestProvider string     `json:"cheapest_provider"`
	PotentialSavings float64    `json:"potential_savings"`
}

func runEstimate(cmd *cobra.Command, args []string) error {
	req := map[string]interface{}{
		"provider":              provider,
		"data_transfer_gb":      dataTransferGB,
		"include_load_balancer": includeLoadBalancer,
	}
	if computeSize != "" {
		req["compute"] = map[string]interface{}{
			"size":            computeSize,
			"hours_per_month": hoursPerMonth,
			"quantity":        quantity,
		}
	}
	if storageGB > 0 {
		req["storage"] = map[string]interface{}{
			"storage_type": storageType,
			"size_gb":      storageGB,
		}
	}
	if databaseType != "" {
		req["database"] = map[string]interface{}{
			"database_type": databaseType,
			"tier":          databaseTier,
			"storage_gb":    databaseStorageGB,
		}
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := call(http.MethodPost, apiURL+"/api/v1/estimate/full", bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(body)
	}

	var result estimate
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	printEstimate(result)
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	query := url.Values{}
	if computeSize != "" {
		query.Set("compute_size", computeSize)
	}
	query.Set("hours_per_month", strconv.Itoa(hoursPerMonth))
	if storageGB > 0 {
		query.Set("storage_gb", strconv.FormatFloat(storageGB, 'f', -1, 64))
	}
	query.Set("storage_type", storageType)
	if databaseType != "" {
		query.Set("include_database", "true")
		query.Set("database_type", databaseType)
		query.Set("database_tier", databaseTier)
		query.Set("database_storage_gb", strconv.FormatFloat(databaseStorageGB, 'f', -1, 64))
	}
	query.Set("data_transfer_gb", strconv.FormatFloat(dataTransferGB, 'f', -1, 64))
	query.Set("include_load_balancer", strconv.FormatBool(includeLoadBalancer))

	body, err := call(http.MethodPost, apiURL+"/api/v1/compare?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(body)
	}

	var result comparison
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tREGION\tMONTHLY\tANNUAL")
	for _, e := range result.Estimates {
		marker := ""
		if e.Provider == result.CheapestProvider {
			marker = "  <- cheapest"
		}
		fmt.Fprintf(w, "%s\t%s\t$%.2f\t$%.2f%s\n", e.ProviderDisplayName, e.Region, e.TotalMonthlyCost, e.TotalAnnualCost, marker)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nPotential savings: $%.2f/month\n", result.PotentialSavings)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	body, err := call(http.MethodGet, apiURL+"/api/v1/health", nil)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(body)
	}

	var result struct {
		Status         string            `json:"status"`
		Version        string            `json:"version"`
		PricingSources map[string]string `json:"pricing_sources"`
		CachedPrices   int               `json:"cached_prices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Status:         %s (v%s)\n", result.Status, result.Version)
	fmt.Printf("Cached prices:  %d\n", result.CachedPrices)
	providers := make([]string, 0, len(result.PricingSources))
	for p := range result.PricingSources {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		fmt.Printf("  %-6s %s\n", p, result.PricingSources[p])
	}
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	body, err := call(http.MethodGet, apiURL+"/api/v1/"+args[0], nil)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(body)
	}

	var result map[string]map[string]struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tOPTION\tSERVICE\tTYPE")
	for _, p := range sortedKeys(result) {
		for _, option := range sortedKeys(result[p]) {
			svc := result[p][option]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p, option, svc.Name, svc.Type)
		}
	}
	return w.Flush()
}

// call performs the request and returns the body of a 200 response
func call(method, target string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequest(method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call API: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func printJSON(body []byte) error {
	var result interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	prettyJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(prettyJSON))
	return nil
}

func printEstimate(e estimate) {
	fmt.Printf("\n%s (%s)\n\n", e.ProviderDisplayName, e.Region)

	if len(e.Breakdown) == 0 {
		fmt.Println("  No resources selected")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ITEM\tUNIT COST\tQUANTITY\tMONTHLY\tSOURCE")
	for _, item := range e.Breakdown {
		fmt.Fprintf(w, "  %s\t$%g/%s\t%g\t$%.2f\t%s\n",
			item.Item, item.UnitCost, item.Unit, item.Quantity, item.MonthlyCost, item.PricingSource)
	}
	_ = w.Flush()

	fmt.Printf("\n  Monthly total:  $%.2f\n", e.TotalMonthlyCost)
	fmt.Printf("  Annual total:   $%.2f\n", e.TotalAnnualCost)
	fmt.Printf("  %s\n\n", e.PricingNote)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
