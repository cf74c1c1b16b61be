package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloudcost-estimator/internal/logging"
	"github.com/cloudcost-estimator/internal/pricing"
)

// FileEnv names the environment variable holding an optional YAML config file path
const FileEnv = "CLOUDCOST_CONFIG"

type Config struct {
	APIPort string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSPricingIndexURL string

	AzureRegion     string
	AzurePricingURL string

	GCPRegion     string
	GCPAPIKey     string
	GCPPricingURL string

	// PricingTimeout bounds each upstream pricing call; kept within [5s, 15s]
	PricingTimeout time.Duration

	Log         logging.Config
	TraceStdout bool
	Debug       bool
}

// fileConfig is the YAML layout of the optional config file
type fileConfig struct {
	Port    string `yaml:"port"`
	Pricing struct {
		Timeout string `yaml:"timeout"`
		AWS     struct {
			Region          string `yaml:"region"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			SessionToken    string `yaml:"session_token"`
			IndexURL        string `yaml:"index_url"`
		} `yaml:"aws"`
		Azure struct {
			Region string `yaml:"region"`
			URL    string `yaml:"url"`
		} `yaml:"azure"`
		GCP struct {
			Region string `yaml:"region"`
			APIKey string `yaml:"api_key"`
			URL    string `yaml:"url"`
		} `yaml:"gcp"`
	} `yaml:"pricing"`
	Log     logging.Config `yaml:"log"`
	Tracing struct {
		Stdout *bool `yaml:"stdout"`
	} `yaml:"tracing"`
	Debug *bool `yaml:"debug"`
}

func defaults() *Config {
	return &Config{
		APIPort:        "8080",
		AWSRegion:      pricing.Info(pricing.AWS).DefaultRegion,
		AzureRegion:    pricing.Info(pricing.Azure).DefaultRegion,
		GCPRegion:      pricing.Info(pricing.GCP).DefaultRegion,
		PricingTimeout: pricing.DefaultTimeout,
		Log:            logging.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the YAML file named by CLOUDCOST_CONFIG, and
// the environment, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := getEnv(FileEnv, ""); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.APIPort = getEnv("PORT", cfg.APIPort)

	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.AWSAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", cfg.AWSAccessKeyID)
	cfg.AWSSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", cfg.AWSSecretAccessKey)
	cfg.AWSSessionToken = getEnv("AWS_SESSION_TOKEN", cfg.AWSSessionToken)
	cfg.AWSPricingIndexURL = getEnv("AWS_PRICING_INDEX_URL", cfg.AWSPricingIndexURL)

	cfg.AzureRegion = getEnv("AZURE_REGION", cfg.AzureRegion)
	cfg.AzurePricingURL = getEnv("AZURE_PRICING_URL", cfg.AzurePricingURL)

	cfg.GCPRegion = getEnv("GCP_REGION", cfg.GCPRegion)
	cfg.GCPAPIKey = getEnv("GCP_API_KEY", cfg.GCPAPIKey)
	cfg.GCPPricingURL = getEnv("GCP_PRICING_URL", cfg.GCPPricingURL)

	if raw := getEnv("PRICING_TIMEOUT", ""); raw != "" {
		timeout, err := parseTimeout(raw)
		if err != nil {
			return nil, fmt.Errorf("PRICING_TIMEOUT: %w", err)
		}
		cfg.PricingTimeout = timeout
	}
	cfg.PricingTimeout = pricing.ClampTimeout(cfg.PricingTimeout)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Output = getEnv("LOG_OUTPUT", cfg.Log.Output)

	cfg.TraceStdout = getEnvBool("OTEL_TRACES_STDOUT", cfg.TraceStdout)
	cfg.Debug = getEnvBool("DEBUG", cfg.Debug)
	if cfg.Debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	return cfg, nil
}

// Regions returns the configured pricing region per provider
func (c *Config) Regions() map[pricing.Provider]string {
	return map[pricing.Provider]string{
		pricing.AWS:   c.AWSRegion,
		pricing.Azure: c.AzureRegion,
		pricing.GCP:   c.GCPRegion,
	}
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	overlay(&c.APIPort, fc.Port)
	overlay(&c.AWSRegion, fc.Pricing.AWS.Region)
	overlay(&c.AWSAccessKeyID, fc.Pricing.AWS.AccessKeyID)
	overlay(&c.AWSSecretAccessKey, fc.Pricing.AWS.SecretAccessKey)
	overlay(&c.AWSSessionToken, fc.Pricing.AWS.SessionToken)
	overlay(&c.AWSPricingIndexURL, fc.Pricing.AWS.IndexURL)
	overlay(&c.AzureRegion, fc.Pricing.Azure.Region)
	overlay(&c.AzurePricingURL, fc.Pricing.Azure.URL)
	overlay(&c.GCPRegion, fc.Pricing.GCP.Region)
	overlay(&c.GCPAPIKey, fc.Pricing.GCP.APIKey)
	overlay(&c.GCPPricingURL, fc.Pricing.GCP.URL)
	overlay(&c.Log.Level, fc.Log.Level)
	overlay(&c.Log.Format, fc.Log.Format)
	overlay(&c.Log.Output, fc.Log.Output)
	c.Log.Development = c.Log.Development || fc.Log.Development

	if fc.Pricing.Timeout != "" {
		timeout, err := parseTimeout(fc.Pricing.Timeout)
		if err != nil {
			return fmt.Errorf("config file pricing.timeout: %w", err)
		}
		c.PricingTimeout = timeout
	}
	if fc.Tracing.Stdout != nil {
		c.TraceStdout = *fc.Tracing.Stdout
	}
	if fc.Debug != nil {
		c.Debug = *fc.Debug
	}
	return nil
}

func overlay(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// parseTimeout accepts a Go duration ("10s") or a bare number of seconds ("10")
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return time.ParseDuration(raw)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
