package contract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPrice = `{
  "original_product_name": "Floral Midi Dress",
  "original_product_url": "https://www.zara.com/us/en/floral-midi-dress-p1.html",
  "product_listings": [
    {"website_name": "Zara", "product_url": "https://www.zara.com/p1", "price": "$49.90", "availability": "In Stock"},
    {"website_name": "ASOS", "product_url": "https://www.asos.com/p2", "price": "$52.00", "availability": "Low Stock", "seller_info": "ASOS Marketplace"}
  ],
  "search_summary": "Found two offers.",
  "sources_checked": ["https://www.zara.com/p1", "https://www.asos.com/p2"]
}`

func TestExtractJSON(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"bare":        {`{"a":1}`, `{"a":1}`},
		"prose":       {"Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`},
		"json fence":  {"```json\n{\"a\":1}\n```", `{"a":1}`},
		"plain fence": {"text\n```\n{\"a\":1}\n```\nmore {x}", `{"a":1}`},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ExtractJSON(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
	_, err := ExtractJSON("no object here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestPriceParseAppliesDefaults(t *testing.T) {
	v, err := Price.Parse("```json\n" + validPrice + "\n```")
	require.NoError(t, err)
	require.Len(t, v.ProductListings, 2)
	assert.Equal(t, DefaultSellerInfo, v.ProductListings[0].SellerInfo)
	assert.Equal(t, "ASOS Marketplace", v.ProductListings[1].SellerInfo)
	assert.Equal(t, "Floral Midi Dress", v.OriginalProductName)
}

func TestPriceParseRejectsMissingField(t *testing.T) {
	_, err := Price.Parse(`{"original_product_name": "x", "original_product_url": "u", "product_listings": []}`)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "price_comparison", verr.Contract)
	assert.Contains(t, err.Error(), "invalid price_comparison output")
}

func TestParseNoJSON(t *testing.T) {
	_, err := Review.Parse("I could not find any reviews.")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestReviewBounds(t *testing.T) {
	base := `{"overall_rating": %s, "total_reviews": 10, "sentiment": {"positive": %s, "negative": 10, "neutral": 5},
	  "pros": [], "cons": [], "common_themes": [], "summary": "s", "sources_analyzed": []}`
	ok := []struct{ rating, pos string }{{"4.5", "85"}, {"0", "0"}, {"5", "100"}}
	for _, c := range ok {
		_, err := Review.Parse(fmt.Sprintf(base, c.rating, c.pos))
		assert.NoError(t, err, c)
	}
	bad := []struct{ rating, pos string }{{"5.5", "80"}, {"-1", "80"}, {"4", "101"}, {"4", "-3"}}
	for _, c := range bad {
		_, err := Review.Parse(fmt.Sprintf(base, c.rating, c.pos))
		assert.Error(t, err, c)
	}
}

func TestReviewSentimentSumIsAdvisory(t *testing.T) {
	v, err := Review.Parse(`{"overall_rating": 4, "total_reviews": 3, "sentiment": {"positive": 70, "negative": 20, "neutral": 20},
	  "pros": ["fit"], "cons": [], "common_themes": [], "summary": "s", "sources_analyzed": ["a"]}`)
	require.NoError(t, err)
	assert.Equal(t, 110, v.Sentiment.Total())
	assert.Zero(t, v.VerifiedPurchasePercentage)
}

func TestReviewAcceptsIntegralFloats(t *testing.T) {
	v, err := Review.Parse(`{"overall_rating": 4.0, "total_reviews": 31.0, "sentiment": {"positive": 6e1, "negative": 30.0, "neutral": 10},
	  "pros": [], "cons": [], "common_themes": [], "summary": "s", "sources_analyzed": [], "verified_purchase_percentage": 80.0}`)
	require.NoError(t, err)
	assert.Equal(t, 31, v.TotalReviews)
	assert.Equal(t, SentimentScore{Positive: 60, Negative: 30, Neutral: 10}, v.Sentiment)
	assert.InDelta(t, 4.0, v.OverallRating, 0)

	_, err = Review.Parse(`{"overall_rating": 4, "total_reviews": 31.5, "sentiment": {"positive": 60, "negative": 30, "neutral": 10},
	  "pros": [], "cons": [], "common_themes": [], "summary": "s", "sources_analyzed": []}`)
	assert.Error(t, err)
}

func TestSpecificationDefaults(t *testing.T) {
	v, err := Specification.Parse(`{"product_name": "Tee", "brand": "H&M", "category": "Tops", "color": "White",
	  "material": "100% Cotton", "sizes_available": ["S", "M"], "features": [], "sources": ["u"],
	  "care_instructions": null, "fit_type": "Regular"}`)
	require.NoError(t, err)
	assert.NotNil(t, v.AdditionalSpecs)
	assert.Empty(t, v.AdditionalSpecs)
	assert.Nil(t, v.CareInstructions)
	require.NotNil(t, v.FitType)
	assert.Equal(t, "Regular", *v.FitType)
}

func TestTryOnBoundsAndDefaults(t *testing.T) {
	v, err := TryOn.Parse(`{"generated_image_description": "d", "fit_analysis": "f", "style_recommendations": ["a"],
	  "confidence_score": 0.8, "size_recommendation": "M", "product_name": "Tee"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{}, v.Warnings)

	_, err = TryOn.Parse(`{"generated_image_description": "d", "fit_analysis": "f", "style_recommendations": [],
	  "confidence_score": 1.5, "size_recommendation": "M", "product_name": "Tee"}`)
	assert.Error(t, err)
}

func TestValidateSynthesizedValues(t *testing.T) {
	assert.NoError(t, Review.Validate(ReviewAnalysis{Summary: "Review analysis unavailable: x"}))
	assert.NoError(t, Specification.Validate(ProductSpecification{ProductName: "Unknown Product"}))
	assert.Error(t, Specification.Validate(ProductSpecification{}))
	assert.Error(t, Price.Validate(PriceComparisonResult{}))
}

func TestNewRejectsBadSchema(t *testing.T) {
	_, err := New[ReviewAnalysis]("broken", `{"type": 12}`, nil)
	assert.Error(t, err)
	_, err = New[ReviewAnalysis]("broken", `{`, nil)
	assert.Error(t, err)
}

func TestSchemaSource(t *testing.T) {
	assert.Contains(t, Price.Schema(), "product_listings")
	assert.Equal(t, "virtual_tryon", TryOn.Name())
}
