// @title           Cloud Cost Estimator API
// @version         1.0
// @description     Estimates monthly and annual cloud costs for compute, storage, database and networking across AWS, Azure and GCP using live provider pricing with cached and static fallbacks.

// @contact.name   Cloud Cost Estimator Support
// @contact.url    https://github.com/cloudcost-estimator/issues

// @license.name  Apache 2.0
// @license.url   https://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @tag.name health
// @tag.description Health check endpoints

// @tag.name catalog
// @tag.description Providers, resource types and concrete services

// @tag.name estimates
// @tag.description Cost estimate endpoints

// @tag.name compare
// @tag.description Cross-provider comparison

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/cloudcost-estimator/internal/awspricing"
	"github.com/cloudcost-estimator/internal/azurepricing"
	"github.com/cloudcost-estimator/internal/config"
	"github.com/cloudcost-estimator/internal/estimator"
	"github.com/cloudcost-estimator/internal/gcppricing"
	"github.com/cloudcost-estimator/internal/metrics"
	"github.com/cloudcost-estimator/internal/pricing"

	"github.com/cloudcost-estimator/internal/docs/swagger" // Swagger docs
)

const (
	ServiceName = "cloudcost-estimator"
	Version     = "2.0.0"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	logger     *zap.Logger
	resolver   *pricing.Resolver
	aggregator *estimator.Aggregator
	registry   *prometheus.Registry
}

// NewServer wires the three provider adapters, the resolver and the aggregator behind the
// HTTP routes
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	aws := awspricing.NewClient(context.Background(), awspricing.Options{
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
		Timeout:         cfg.PricingTimeout,
		IndexURL:        cfg.AWSPricingIndexURL,
		Logger:          logger.Named("aws"),
	})
	azure := azurepricing.NewClient(cfg.AzurePricingURL, cfg.PricingTimeout, logger.Named("azure"))
	gcp := gcppricing.NewClient(cfg.GCPPricingURL, cfg.GCPAPIKey, cfg.PricingTimeout, logger.Named("gcp"))

	if aws.UsesPriceListAPI() {
		logger.Info("AWS prices from the Price List API")
	}
	if !gcp.Configured() {
		logger.Info("GCP_API_KEY not set, GCP prices come from the static table")
	}

	return newServer(cfg, logger, []pricing.Adapter{aws, azure, gcp}), nil
}

func newServer(cfg *config.Config, logger *zap.Logger, adapters []pricing.Adapter) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	resolver := pricing.NewResolver(pricing.ResolverOptions{
		Adapters: adapters,
		Regions:  cfg.Regions(),
		Timeout:  cfg.PricingTimeout,
		Logger:   logger.Named("resolver"),
		Metrics:  recorder,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger.Named("http")))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	server := &Server{
		router:     r,
		config:     cfg,
		logger:     logger,
		resolver:   resolver,
		aggregator: estimator.NewAggregator(resolver, logger.Named("estimator"), recorder),
		registry:   registry,
	}

	server.setupRoutes()

	return server
}

// requestLogger logs one line per request at INFO, or WARN for 5xx responses
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

func (s *Server) setupRoutes() {
	// Swagger UI endpoint with dynamic host detection
	// Accessible at /api/swagger/index.html
	s.router.GET("/api/swagger/*any", func(c *gin.Context) {
		scheme, host := requestOrigin(c)

		if c.Param("any") == "/doc.json" {
			swaggerInfo := swagger.SwaggerInfo.ReadDoc()

			// Point the swagger document at the host the UI was loaded from
			var swaggerDoc map[string]interface{}
			if err := json.Unmarshal([]byte(swaggerInfo), &swaggerDoc); err == nil {
				swaggerDoc["host"] = host
				swaggerDoc["schemes"] = []string{scheme}
				c.JSON(200, swaggerDoc)
				return
			}

			// Fallback: return the document unchanged if parsing fails
			c.Header("Content-Type", "application/json")
			c.String(200, swaggerInfo)
			return
		}

		swaggerURL := fmt.Sprintf("%s://%s/api/swagger/doc.json", scheme, host)
		handler := ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(swaggerURL))
		handler(c)
	})

	api := s.router.Group("/api/v1")
	{
		api.GET("/", s.serviceInfo)
		api.GET("/health", s.healthCheck)
		api.GET("/providers", s.listProviders)
		api.GET("/resource-types", s.listResourceTypes)
		api.GET("/instance-types", s.listInstanceTypes)
		api.GET("/storage-services", s.listStorageServices)
		api.GET("/database-services", s.listDatabaseServices)
		api.POST("/estimate/compute", s.estimateCompute)
		api.POST("/estimate/storage", s.estimateStorage)
		api.POST("/estimate/database", s.estimateDatabase)
		api.POST("/estimate/full", s.estimateFull)
		api.POST("/compare", s.compareProviders)
		api.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
}

// requestOrigin detects scheme and host, honouring ingress forwarding headers
func requestOrigin(c *gin.Context) (string, string) {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	} else if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" {
		scheme = "https"
	}

	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return scheme, host
}

// Handler exposes the router, mainly for http.Server and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// ServiceInfo godoc
// @Summary      Service information
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       / [get]
func (s *Server) serviceInfo(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "Cloud Cost Estimator API",
		"name":    "Cloud Cost Estimator API",
		"version": Version,
		"docs":    "/api/swagger/index.html",
		"features": []string{
			"Real-time Azure pricing via Azure Retail Prices API",
			"AWS pricing via the AWS Price List API or verified public pricing data",
			"GCP pricing via Cloud Billing Catalog API (requires GCP_API_KEY)",
			"One hour price cache with static fallback pricing",
		},
	})
}

// HealthCheck godoc
// @Summary      Health check
// @Description  Check API health and the reachability of each provider's pricing source
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "Health status"
// @Router       /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	statuses := s.resolver.CheckPricingSourceHealth(c.Request.Context())

	sources := make(map[string]string, len(statuses))
	for p, status := range statuses {
		sources[string(p)] = string(status)
	}

	c.JSON(200, gin.H{
		"status":          "healthy",
		"service":         ServiceName,
		"version":         Version,
		"pricing_sources": sources,
		"cached_prices":   s.resolver.Cache().Len(),
	})
}

// ListProviders godoc
// @Summary      List providers
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  map[string]pricing.ProviderInfo
// @Router       /providers [get]
func (s *Server) listProviders(c *gin.Context) {
	providers := make(map[string]gin.H, len(pricing.Providers))
	for _, p := range pricing.Providers {
		info := pricing.Info(p)
		providers[string(p)] = gin.H{
			"name":           info.Name,
			"regions":        info.Regions,
			"default_region": info.DefaultRegion,
			"pricing_region": s.resolver.Region(p),
		}
	}
	c.JSON(200, providers)
}

// ListResourceTypes godoc
// @Summary      List resource types and their options
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /resource-types [get]
func (s *Server) listResourceTypes(c *gin.Context) {
	c.JSON(200, gin.H{
		"compute": gin.H{
			"sizes":       pricing.ComputeSizes,
			"description": "Virtual machines and compute instances",
		},
		"storage": gin.H{
			"types":       pricing.StorageTiers,
			"description": "Object storage, block storage, and archives",
		},
		"database": gin.H{
			"types":       pricing.DatabaseTypes,
			"tiers":       pricing.DatabaseTiers,
			"description": "Managed database services",
		},
		"networking": gin.H{
			"options":     []string{"data_transfer", "load_balancer"},
			"description": "Network and data transfer costs",
		},
	})
}

// ListInstanceTypes godoc
// @Summary      Instance type behind each compute size
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /instance-types [get]
func (s *Server) listInstanceTypes(c *gin.Context) {
	c.JSON(200, pricing.InstanceTypes())
}

// ListStorageServices godoc
// @Summary      Storage service behind each storage tier
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /storage-services [get]
func (s *Server) listStorageServices(c *gin.Context) {
	c.JSON(200, pricing.StorageServices())
}

// ListDatabaseServices godoc
// @Summary      Managed database service behind each database type
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /database-services [get]
func (s *Server) listDatabaseServices(c *gin.Context) {
	c.JSON(200, pricing.DatabaseServices())
}
