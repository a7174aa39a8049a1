// Package fallback builds deterministic, model-free results used when an
// analysis cannot produce a validated answer. Every value it returns
// satisfies the same result contract as a model answer; degraded content is
// recognizable by its sentinel values only.
package fallback

import (
	"fmt"

	"github.com/fashnai/fashnai/analysis/contract"
)

// Sentinels used in place of values that were not extracted. Prices are
// never invented.
const (
	PriceUnavailable        = "N/A (Price extraction unavailable)"
	AvailabilityUnavailable = "N/A (Availability check unavailable)"
	ExtractionMethodKey     = "extraction_method"
	ExtractionMethodURL     = "fallback_url_heuristics"
	ExtractionMethodNone    = "unavailable"
)

// Price returns the price comparison fallback for url: the original listing
// only, with unavailable sentinels for price and availability.
func Price(url string) contract.PriceComparisonResult {
	info := ParseURL(url)
	site := info.Retailer
	return contract.PriceComparisonResult{
		OriginalProductName: info.ProductName,
		OriginalProductURL:  url,
		ProductListings: []contract.ProductListing{{
			WebsiteName:  site,
			ProductURL:   url,
			Price:        PriceUnavailable,
			Availability: AvailabilityUnavailable,
			SellerInfo:   site + " (Direct from retailer)",
		}},
		SearchSummary: fmt.Sprintf("Price comparison unavailable due to search service limitations. "+
			"The product '%s' from %s was identified but cross-retailer price comparison could not be performed.",
			info.ProductName, info.Brand),
		SourcesChecked: []string{url},
	}
}

// Specification returns the specification fallback guessed from the URL.
func Specification(url string) contract.ProductSpecification {
	info := ParseURL(url)
	return contract.ProductSpecification{
		ProductName:    info.ProductName,
		Brand:          info.Brand,
		Category:       info.Category,
		Color:          info.Color,
		Material:       Unknown,
		SizesAvailable: []string{},
		Features:       []string{},
		AdditionalSpecs: map[string]string{
			ExtractionMethodKey: ExtractionMethodURL,
			"retailer":          info.Retailer,
		},
		Sources: []string{url},
	}
}

// ReviewPlaceholder returns an empty review analysis stating why reviews are
// unavailable.
func ReviewPlaceholder(reason string) contract.ReviewAnalysis {
	return contract.ReviewAnalysis{
		Pros:            []string{},
		Cons:            []string{},
		CommonThemes:    []string{},
		Summary:         "Review analysis unavailable: " + reason,
		SourcesAnalyzed: []string{},
	}
}

// PricePlaceholder is the minimal price result used when the price branch
// fails outright.
func PricePlaceholder(url, reason string) contract.PriceComparisonResult {
	return contract.PriceComparisonResult{
		OriginalProductName: "Unknown Product",
		OriginalProductURL:  url,
		ProductListings:     []contract.ProductListing{},
		SearchSummary:       "Price comparison unavailable: " + reason,
		SourcesChecked:      []string{},
	}
}

// SpecificationPlaceholder is the minimal specification result used when the
// specification branch fails outright.
func SpecificationPlaceholder(url, reason string) contract.ProductSpecification {
	return contract.ProductSpecification{
		ProductName:    "Unknown Product",
		Brand:          Unknown,
		Category:       Unknown,
		Color:          Unknown,
		Material:       Unknown,
		SizesAvailable: []string{},
		Features:       []string{},
		AdditionalSpecs: map[string]string{
			ExtractionMethodKey: ExtractionMethodNone,
			"error":             reason,
		},
		Sources: []string{url},
	}
}

// TryOn returns a text-only try-on result used when the try-on agent cannot
// produce a validated answer.
func TryOn(productName, reason string) contract.VirtualTryOnResult {
	if productName == "" {
		productName = "Unknown Product"
	}
	return contract.VirtualTryOnResult{
		GeneratedImageDescription: "Virtual try-on preview unavailable for " + productName + ".",
		FitAnalysis:               "Fit analysis unavailable.",
		StyleRecommendations:      []string{},
		ConfidenceScore:           0,
		SizeRecommendation:        "N/A",
		ProductName:               productName,
		Warnings:                  []string{"Virtual try-on analysis unavailable: " + reason},
	}
}
