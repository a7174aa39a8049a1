// Package contract defines the structured results produced by the analysis
// agents together with the JSON Schemas their raw output must satisfy.
package contract

type (
	// ProductListing is one retailer offer for the product.
	ProductListing struct {
		WebsiteName  string `json:"website_name"`
		ProductURL   string `json:"product_url"`
		Price        string `json:"price"`
		Availability string `json:"availability"`
		SellerInfo   string `json:"seller_info"`
	}

	// PriceComparisonResult lists offers for the same product across retailers.
	PriceComparisonResult struct {
		OriginalProductName string           `json:"original_product_name"`
		OriginalProductURL  string           `json:"original_product_url"`
		ProductListings     []ProductListing `json:"product_listings"`
		SearchSummary       string           `json:"search_summary"`
		SourcesChecked      []string         `json:"sources_checked"`
	}

	// ProductSpecification holds the structured attributes of a product.
	ProductSpecification struct {
		ProductName      string            `json:"product_name"`
		Brand            string            `json:"brand"`
		Category         string            `json:"category"`
		Color            string            `json:"color"`
		Material         string            `json:"material"`
		SizesAvailable   []string          `json:"sizes_available"`
		CareInstructions *string           `json:"care_instructions,omitempty"`
		Features         []string          `json:"features"`
		Dimensions       map[string]string `json:"dimensions,omitempty"`
		Weight           *string           `json:"weight,omitempty"`
		StyleNumber      *string           `json:"style_number,omitempty"`
		CountryOfOrigin  *string           `json:"country_of_origin,omitempty"`
		Sustainability   *string           `json:"sustainability,omitempty"`
		FitType          *string           `json:"fit_type,omitempty"`
		AdditionalSpecs  map[string]string `json:"additional_specs"`
		Sources          []string          `json:"sources"`
	}

	// SentimentScore splits reviews into positive, negative and neutral
	// percentages.
	SentimentScore struct {
		Positive int `json:"positive"`
		Negative int `json:"negative"`
		Neutral  int `json:"neutral"`
	}

	// ReviewAnalysis aggregates customer reviews for a product.
	ReviewAnalysis struct {
		OverallRating              float64        `json:"overall_rating"`
		TotalReviews               int            `json:"total_reviews"`
		Sentiment                  SentimentScore `json:"sentiment"`
		Pros                       []string       `json:"pros"`
		Cons                       []string       `json:"cons"`
		CommonThemes               []string       `json:"common_themes"`
		Summary                    string         `json:"summary"`
		VerifiedPurchasePercentage float64        `json:"verified_purchase_percentage"`
		SourcesAnalyzed            []string       `json:"sources_analyzed"`
	}

	// VirtualTryOnResult describes how a garment would look and fit on a user.
	// GeneratedImage and GeneratedImageMimeType are set by the try-on pipeline
	// and are not produced by the model.
	VirtualTryOnResult struct {
		GeneratedImageDescription string   `json:"generated_image_description"`
		FitAnalysis               string   `json:"fit_analysis"`
		StyleRecommendations      []string `json:"style_recommendations"`
		ConfidenceScore           float64  `json:"confidence_score"`
		SizeRecommendation        string   `json:"size_recommendation"`
		ProductName               string   `json:"product_name"`
		Warnings                  []string `json:"warnings"`
		GeneratedImage            string   `json:"generated_image,omitempty"`
		GeneratedImageMimeType    string   `json:"generated_image_mime_type,omitempty"`
	}

	// BundleStatus is the overall status of an AnalysisBundle.
	BundleStatus string

	// BranchStatus is the status of one analysis branch.
	BranchStatus string

	// BranchReport describes how one branch of a bundle was produced.
	BranchReport struct {
		Status   BranchStatus `json:"status"`
		Cause    string       `json:"cause,omitempty"`
		Reason   string       `json:"reason,omitempty"`
		Attempts int          `json:"attempts"`
	}

	// BundleReports holds the per-branch reports of a bundle.
	BundleReports struct {
		Price         BranchReport `json:"price"`
		Review        BranchReport `json:"review"`
		Specification BranchReport `json:"specification"`
	}

	// AnalysisBundle merges the price, review and specification results for a
	// product URL.
	AnalysisBundle struct {
		PriceComparison PriceComparisonResult `json:"prices"`
		ReviewAnalysis  ReviewAnalysis        `json:"reviews"`
		Specifications  ProductSpecification  `json:"specifications"`
		Status          BundleStatus          `json:"status"`
		Branches        BundleReports         `json:"branches"`
	}
)

const (
	BundleSuccess  BundleStatus = "success"
	BundleDegraded BundleStatus = "degraded"
)

const (
	// BranchOK means the branch produced a validated model result.
	BranchOK BranchStatus = "ok"
	// BranchFallback means the branch exhausted its retries or timed out and
	// returned its deterministic fallback.
	BranchFallback BranchStatus = "fallback"
	// BranchFailed means the branch raised an error and returned a placeholder.
	BranchFailed BranchStatus = "failed"
)

// DefaultSellerInfo is used when a listing omits seller information.
const DefaultSellerInfo = "Not specified"

// Total returns the sum of the sentiment percentages. The sum is advisory
// and is not required to equal 100.
func (s SentimentScore) Total() int {
	return s.Positive + s.Negative + s.Neutral
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
