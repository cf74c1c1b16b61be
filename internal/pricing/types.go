package pricing

import (
	"fmt"
	"strings"
)

// Provider identifies a supported cloud
type Provider string

const (
	AWS   Provider = "aws"
	Azure Provider = "azure"
	GCP   Provider = "gcp"
)

// Providers lists every supported cloud in enumeration order. Comparison ties are broken by
// this order.
var Providers = []Provider{AWS, Azure, GCP}

func (p Provider) Valid() bool {
	switch p {
	case AWS, Azure, GCP:
		return true
	}
	return false
}

// DisplayName returns the provider's marketing name
func (p Provider) DisplayName() string {
	switch p {
	case AWS:
		return "Amazon Web Services"
	case Azure:
		return "Microsoft Azure"
	case GCP:
		return "Google Cloud Platform"
	}
	return string(p)
}

// ResourceKind is the class of resource being priced. It also fixes the unit of a price:
// compute and load balancers are per hour, storage and transfer per GB, databases per month.
type ResourceKind string

const (
	KindCompute         ResourceKind = "compute"
	KindStorage         ResourceKind = "storage"
	KindDatabase        ResourceKind = "database"
	KindDatabaseStorage ResourceKind = "database-storage"
	KindNetworkTransfer ResourceKind = "network-transfer"
	KindLoadBalancer    ResourceKind = "load-balancer"
)

// Unit describes what a price of this kind is charged per
func (k ResourceKind) Unit() string {
	switch k {
	case KindCompute, KindLoadBalancer:
		return "hour"
	case KindStorage, KindDatabaseStorage:
		return "GB-month"
	case KindNetworkTransfer:
		return "GB"
	case KindDatabase:
		return "month"
	}
	return "unit"
}

type ComputeSize string

const (
	SizeSmall  ComputeSize = "small"
	SizeMedium ComputeSize = "medium"
	SizeLarge  ComputeSize = "large"
	SizeXLarge ComputeSize = "xlarge"
)

var ComputeSizes = []ComputeSize{SizeSmall, SizeMedium, SizeLarge, SizeXLarge}

type StorageTier string

const (
	TierStandard StorageTier = "standard"
	TierPremium  StorageTier = "premium"
	TierArchive  StorageTier = "archive"
)

var StorageTiers = []StorageTier{TierStandard, TierPremium, TierArchive}

type DatabaseType string

const (
	DatabaseSQL   DatabaseType = "sql"
	DatabaseNoSQL DatabaseType = "nosql"
	DatabaseCache DatabaseType = "cache"
)

var DatabaseTypes = []DatabaseType{DatabaseSQL, DatabaseNoSQL, DatabaseCache}

type DatabaseTier string

const (
	DatabaseTierBasic    DatabaseTier = "basic"
	DatabaseTierStandard DatabaseTier = "standard"
	DatabaseTierPremium  DatabaseTier = "premium"
)

var DatabaseTiers = []DatabaseTier{DatabaseTierBasic, DatabaseTierStandard, DatabaseTierPremium}

// Variants of the kinds that have a single priced option per provider
const (
	VariantInternetEgress = "internet-egress"
	VariantStandard       = "standard"
)

// Descriptor identifies what is being priced. Region is filled by the resolver from
// configuration when left empty.
type Descriptor struct {
	Provider Provider
	Kind     ResourceKind
	Variant  string
	Region   string
}

func ComputeDescriptor(p Provider, size ComputeSize) Descriptor {
	return Descriptor{Provider: p, Kind: KindCompute, Variant: string(size)}
}

func StorageDescriptor(p Provider, tier StorageTier) Descriptor {
	return Descriptor{Provider: p, Kind: KindStorage, Variant: string(tier)}
}

func DatabaseDescriptor(p Provider, dbType DatabaseType, tier DatabaseTier) Descriptor {
	return Descriptor{Provider: p, Kind: KindDatabase, Variant: DatabaseVariant(dbType, tier)}
}

func DatabaseStorageDescriptor(p Provider) Descriptor {
	return Descriptor{Provider: p, Kind: KindDatabaseStorage, Variant: VariantStandard}
}

func NetworkTransferDescriptor(p Provider) Descriptor {
	return Descriptor{Provider: p, Kind: KindNetworkTransfer, Variant: VariantInternetEgress}
}

func LoadBalancerDescriptor(p Provider) Descriptor {
	return Descriptor{Provider: p, Kind: KindLoadBalancer, Variant: VariantStandard}
}

// DatabaseVariant joins a database type and tier into a single variant string ("sql/standard")
func DatabaseVariant(dbType DatabaseType, tier DatabaseTier) string {
	return string(dbType) + "/" + string(tier)
}

// Key is the cache key for the descriptor
func (d Descriptor) Key() string {
	return strings.Join([]string{string(d.Provider), string(d.Kind), d.Variant, d.Region}, "|")
}

func (d Descriptor) String() string {
	if d.Region == "" {
		return fmt.Sprintf("%s/%s/%s", d.Provider, d.Kind, d.Variant)
	}
	return fmt.Sprintf("%s/%s/%s@%s", d.Provider, d.Kind, d.Variant, d.Region)
}

// Mode tells how a unit price was obtained
type Mode string

const (
	ModeLive     Mode = "live"
	ModeCached   Mode = "cached"
	ModeFallback Mode = "fallback"
)

// Provenance labels where a price came from
type Provenance struct {
	Source string `json:"source"`
	Mode   Mode   `json:"mode"`
}

// String renders the provenance as "<source> (<mode>)"
func (p Provenance) String() string {
	return fmt.Sprintf("%s (%s)", p.Source, p.Mode)
}

// UnitPrice is the result of a price lookup. Amount is never negative.
type UnitPrice struct {
	Amount     float64    `json:"amount"`
	Provenance Provenance `json:"provenance"`
}
