package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStaticPrice means the static table lacks an entry for a valid combination. It is a
	// data error in the table, not an upstream condition.
	ErrNoStaticPrice = errors.New("no static price")

	ErrUnknownProvider = errors.New("unknown provider")
)

// staticPrices is a snapshot of public list prices (USD). Units follow ResourceKind.Unit:
// compute and load balancer per hour, storage per GB-month, transfer per GB, database tiers
// per month.
var staticPrices = map[Provider]map[ResourceKind]map[string]float64{
	AWS: {
		KindCompute: {
			string(SizeSmall):  0.0116,
			string(SizeMedium): 0.0464,
			string(SizeLarge):  0.0928,
			string(SizeXLarge): 0.1856,
		},
		KindStorage: {
			string(TierStandard): 0.023,
			string(TierPremium):  0.125,
			string(TierArchive):  0.004,
		},
		KindDatabase: {
			DatabaseVariant(DatabaseSQL, DatabaseTierBasic):      12.41,
			DatabaseVariant(DatabaseSQL, DatabaseTierStandard):   49.64,
			DatabaseVariant(DatabaseSQL, DatabaseTierPremium):    198.56,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierBasic):    25.00,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierStandard): 91.25,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierPremium):  365.00,
			DatabaseVariant(DatabaseCache, DatabaseTierBasic):    12.41,
			DatabaseVariant(DatabaseCache, DatabaseTierStandard): 49.64,
			DatabaseVariant(DatabaseCache, DatabaseTierPremium):  99.28,
		},
		KindDatabaseStorage: {VariantStandard: 0.115},
		KindNetworkTransfer: {VariantInternetEgress: 0.09},
		KindLoadBalancer:    {VariantStandard: 0.0225},
	},
	Azure: {
		KindCompute: {
			string(SizeSmall):  0.0104,
			string(SizeMedium): 0.0416,
			string(SizeLarge):  0.0832,
			string(SizeXLarge): 0.166,
		},
		KindStorage: {
			string(TierStandard): 0.0184,
			string(TierPremium):  0.15,
			string(TierArchive):  0.00099,
		},
		KindDatabase: {
			DatabaseVariant(DatabaseSQL, DatabaseTierBasic):      4.90,
			DatabaseVariant(DatabaseSQL, DatabaseTierStandard):   14.72,
			DatabaseVariant(DatabaseSQL, DatabaseTierPremium):    465.00,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierBasic):    23.36,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierStandard): 58.40,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierPremium):  233.60,
			DatabaseVariant(DatabaseCache, DatabaseTierBasic):    16.06,
			DatabaseVariant(DatabaseCache, DatabaseTierStandard): 40.15,
			DatabaseVariant(DatabaseCache, DatabaseTierPremium):  302.95,
		},
		KindDatabaseStorage: {VariantStandard: 0.12},
		KindNetworkTransfer: {VariantInternetEgress: 0.087},
		KindLoadBalancer:    {VariantStandard: 0.025},
	},
	GCP: {
		KindCompute: {
			string(SizeSmall):  0.0104,
			string(SizeMedium): 0.0335,
			string(SizeLarge):  0.067,
			string(SizeXLarge): 0.134,
		},
		KindStorage: {
			string(TierStandard): 0.020,
			string(TierPremium):  0.17,
			string(TierArchive):  0.0012,
		},
		KindDatabase: {
			DatabaseVariant(DatabaseSQL, DatabaseTierBasic):      7.67,
			DatabaseVariant(DatabaseSQL, DatabaseTierStandard):   25.55,
			DatabaseVariant(DatabaseSQL, DatabaseTierPremium):    98.55,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierBasic):    5.00,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierStandard): 25.00,
			DatabaseVariant(DatabaseNoSQL, DatabaseTierPremium):  100.00,
			DatabaseVariant(DatabaseCache, DatabaseTierBasic):    35.77,
			DatabaseVariant(DatabaseCache, DatabaseTierStandard): 71.54,
			DatabaseVariant(DatabaseCache, DatabaseTierPremium):  143.08,
		},
		KindDatabaseStorage: {VariantStandard: 0.17},
		KindNetworkTransfer: {VariantInternetEgress: 0.12},
		KindLoadBalancer:    {VariantStandard: 0.025},
	},
}

// LookupStatic returns the reference price for the descriptor's provider, kind and variant.
// Region does not affect the static table.
func LookupStatic(d Descriptor) (float64, error) {
	kinds, ok := staticPrices[d.Provider]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, d.Provider)
	}
	price, ok := kinds[d.Kind][d.Variant]
	if !ok {
		return 0, fmt.Errorf("%w for %s", ErrNoStaticPrice, d)
	}
	return price, nil
}

// FallbackSource is the source name reported for static table prices
func FallbackSource(p Provider) string {
	return fmt.Sprintf("%s Public Pricing Data", providerShortName(p))
}

func providerShortName(p Provider) string {
	switch p {
	case AWS:
		return "AWS"
	case Azure:
		return "Azure"
	case GCP:
		return "GCP"
	}
	return string(p)
}
