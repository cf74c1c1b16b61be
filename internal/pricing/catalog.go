package pricing

import (
	"maps"
	"slices"
)

// Service is a concrete purchasable product behind an abstract variant
type Service struct {
	SKU  string `json:"type"`
	Name string `json:"name"`
}

// ProviderInfo describes a provider for catalog listings
type ProviderInfo struct {
	Name          string   `json:"name"`
	DefaultRegion string   `json:"default_region"`
	Regions       []string `json:"regions"`
}

var providerInfo = map[Provider]ProviderInfo{
	AWS: {
		Name:          AWS.DisplayName(),
		DefaultRegion: "us-east-1",
		Regions:       []string{"us-east-1", "us-west-2", "eu-west-1", "ap-southeast-1"},
	},
	Azure: {
		Name:          Azure.DisplayName(),
		DefaultRegion: "uksouth",
		Regions:       []string{"uksouth", "eastus", "westeurope", "southeastasia"},
	},
	GCP: {
		Name:          GCP.DisplayName(),
		DefaultRegion: "us-central1",
		Regions:       []string{"us-central1", "europe-west1", "asia-southeast1"},
	},
}

var instanceTypes = map[Provider]map[ComputeSize]Service{
	AWS: {
		SizeSmall:  {SKU: "t3.micro", Name: "Amazon EC2"},
		SizeMedium: {SKU: "t3.medium", Name: "Amazon EC2"},
		SizeLarge:  {SKU: "t3.large", Name: "Amazon EC2"},
		SizeXLarge: {SKU: "t3.xlarge", Name: "Amazon EC2"},
	},
	Azure: {
		SizeSmall:  {SKU: "Standard_B1s", Name: "Azure Virtual Machines"},
		SizeMedium: {SKU: "Standard_B2s", Name: "Azure Virtual Machines"},
		SizeLarge:  {SKU: "Standard_B4ms", Name: "Azure Virtual Machines"},
		SizeXLarge: {SKU: "Standard_B8ms", Name: "Azure Virtual Machines"},
	},
	GCP: {
		SizeSmall:  {SKU: "e2-small", Name: "Compute Engine"},
		SizeMedium: {SKU: "e2-medium", Name: "Compute Engine"},
		SizeLarge:  {SKU: "e2-standard-2", Name: "Compute Engine"},
		SizeXLarge: {SKU: "e2-standard-4", Name: "Compute Engine"},
	},
}

var storageServices = map[Provider]map[StorageTier]Service{
	AWS: {
		TierStandard: {SKU: "STANDARD", Name: "Amazon S3 Standard"},
		TierPremium:  {SKU: "io2", Name: "Amazon EBS io2"},
		TierArchive:  {SKU: "GLACIER_IR", Name: "Amazon S3 Glacier Instant Retrieval"},
	},
	Azure: {
		TierStandard: {SKU: "Hot LRS", Name: "Azure Blob Storage Hot LRS"},
		TierPremium:  {SKU: "P10 LRS", Name: "Azure Premium SSD Managed Disks"},
		TierArchive:  {SKU: "Archive LRS", Name: "Azure Blob Storage Archive LRS"},
	},
	GCP: {
		TierStandard: {SKU: "STANDARD", Name: "Cloud Storage Standard"},
		TierPremium:  {SKU: "pd-ssd", Name: "Persistent Disk SSD"},
		TierArchive:  {SKU: "ARCHIVE", Name: "Cloud Storage Archive"},
	},
}

var databaseServices = map[Provider]map[DatabaseType]Service{
	AWS: {
		DatabaseSQL:   {SKU: "db.t3", Name: "Amazon RDS for MySQL"},
		DatabaseNoSQL: {SKU: "provisioned", Name: "Amazon DynamoDB"},
		DatabaseCache: {SKU: "cache.t3", Name: "Amazon ElastiCache for Redis"},
	},
	Azure: {
		DatabaseSQL:   {SKU: "DTU", Name: "Azure SQL Database"},
		DatabaseNoSQL: {SKU: "provisioned", Name: "Azure Cosmos DB"},
		DatabaseCache: {SKU: "C", Name: "Azure Cache for Redis"},
	},
	GCP: {
		DatabaseSQL:   {SKU: "db-custom", Name: "Cloud SQL for MySQL"},
		DatabaseNoSQL: {SKU: "native", Name: "Firestore"},
		DatabaseCache: {SKU: "basic", Name: "Memorystore for Redis"},
	},
}

var networkServices = map[Provider]map[ResourceKind]string{
	AWS:   {KindNetworkTransfer: "AWS Data Transfer Out", KindLoadBalancer: "Elastic Load Balancing (ALB)"},
	Azure: {KindNetworkTransfer: "Azure Bandwidth Egress", KindLoadBalancer: "Azure Load Balancer Standard"},
	GCP:   {KindNetworkTransfer: "GCP Network Egress", KindLoadBalancer: "Cloud Load Balancing"},
}

func Info(p Provider) ProviderInfo {
	info := providerInfo[p]
	info.Regions = slices.Clone(info.Regions)
	return info
}

func InstanceType(p Provider, size ComputeSize) Service {
	return instanceTypes[p][size]
}

func StorageService(p Provider, tier StorageTier) Service {
	return storageServices[p][tier]
}

func DatabaseService(p Provider, dbType DatabaseType) Service {
	return databaseServices[p][dbType]
}

// NetworkServiceName names the transfer or load balancer product of a provider
func NetworkServiceName(p Provider, kind ResourceKind) string {
	return networkServices[p][kind]
}

// InstanceTypes returns a copy of the compute catalog keyed by provider then size
func InstanceTypes() map[Provider]map[ComputeSize]Service {
	return copyCatalog(instanceTypes)
}

func StorageServices() map[Provider]map[StorageTier]Service {
	return copyCatalog(storageServices)
}

func DatabaseServices() map[Provider]map[DatabaseType]Service {
	return copyCatalog(databaseServices)
}

func copyCatalog[K comparable](src map[Provider]map[K]Service) map[Provider]map[K]Service {
	dst := make(map[Provider]map[K]Service, len(src))
	for p, services := range src {
		dst[p] = maps.Clone(services)
	}
	return dst
}
