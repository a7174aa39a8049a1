package fallback

import (
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashnai/fashnai/analysis/contract"
)

const zalandoURL = "https://en.zalando.de/bershka-baby-gifts-black-bej22s0jx-q11.html"

func TestRetailerName(t *testing.T) {
	cases := map[string]string{
		zalandoURL: "Zalando",
		"https://us.shein.com/Floral-Dress-p-123.html":          "SHEIN",
		"https://www.ASOS.com/asos-design/midi-skirt/prd/1":     "ASOS",
		"https://www.zara.com/us/en/floral-midi-dress-p1.html":  "Zara",
		"https://www2.hm.com/en_us/productpage.0970819001.html": "H&M",
		"https://example.com/shirt":                             "Unknown",
	}
	for u, want := range cases {
		assert.Equal(t, want, RetailerName(u), u)
	}
}

func TestParseURL(t *testing.T) {
	info := ParseURL(zalandoURL)
	assert.Equal(t, "Zalando", info.Retailer)
	assert.Equal(t, "Bershka", info.Brand)
	assert.Equal(t, "Baby Gifts Black", info.ProductName)
	assert.Equal(t, "Black", info.Color)
	assert.Equal(t, Unknown, info.Category)

	info = ParseURL("https://www.zara.com/us/en/floral-midi-dress-p1.html")
	assert.Equal(t, "Zara", info.Brand)
	assert.Equal(t, "Floral Midi Dress", info.ProductName)
	assert.Equal(t, "Dresses", info.Category)

	info = ParseURL("https://www.asos.com/asos-design/asos-design-oversized-t-shirt-in-white/prd/204")
	assert.Equal(t, "Tops", info.Category)
	assert.Equal(t, "White", info.Color)
	assert.Equal(t, "Asos", info.Brand)

	info = ParseURL("https://shop.example.com/Blue%20Denim%20Jacket")
	assert.Equal(t, "Blue Denim Jacket", info.ProductName)
	assert.Equal(t, "Outerwear", info.Category)
	assert.Equal(t, "Blue", info.Color)
}

func TestParseURLNothingToGuess(t *testing.T) {
	info := ParseURL("https://example.com/")
	assert.Equal(t, "Unknown Product", info.ProductName)
	assert.Equal(t, Unknown, info.Brand)
	info = ParseURL("::not a url::")
	assert.NotEmpty(t, info.ProductName)
}

func TestPrice(t *testing.T) {
	res := Price(zalandoURL)
	require.Len(t, res.ProductListings, 1)
	l := res.ProductListings[0]
	assert.Equal(t, "Zalando", l.WebsiteName)
	assert.Equal(t, PriceUnavailable, l.Price)
	assert.Equal(t, AvailabilityUnavailable, l.Availability)
	assert.Equal(t, "Zalando (Direct from retailer)", l.SellerInfo)
	assert.Equal(t, []string{zalandoURL}, res.SourcesChecked)
	assert.True(t, strings.HasPrefix(res.SearchSummary, "Price comparison unavailable due to search service limitations."))
	assert.Contains(t, res.SearchSummary, "'Baby Gifts Black' from Bershka")
	assert.NoError(t, contract.Price.Validate(res))
}

func TestSpecification(t *testing.T) {
	res := Specification("https://www.zara.com/us/en/floral-midi-dress-p1.html")
	assert.Equal(t, ExtractionMethodURL, res.AdditionalSpecs[ExtractionMethodKey])
	assert.Equal(t, "Dresses", res.Category)
	assert.Equal(t, Unknown, res.Material)
	assert.NoError(t, contract.Specification.Validate(res))
}

func TestPlaceholdersValidate(t *testing.T) {
	r := ReviewPlaceholder("search quota exceeded")
	assert.Equal(t, "Review analysis unavailable: search quota exceeded", r.Summary)
	assert.Zero(t, r.OverallRating)
	assert.Zero(t, r.TotalReviews)
	assert.Zero(t, r.Sentiment.Total())
	assert.NoError(t, contract.Review.Validate(r))

	assert.NoError(t, contract.Price.Validate(PricePlaceholder("u", "boom")))
	assert.NoError(t, contract.Specification.Validate(SpecificationPlaceholder("u", "boom")))

	tr := TryOn("", "model unavailable")
	assert.Equal(t, "Unknown Product", tr.ProductName)
	assert.Len(t, tr.Warnings, 1)
	assert.NoError(t, contract.TryOn.Validate(tr))
}

var numericPrice = regexp.MustCompile(`^[^A-Za-z]*\d`)

func TestPriceFallbackNeverFabricatesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	hosts := gen.OneConstOf("https://en.zalando.de/", "https://www.asos.com/", "https://us.shein.com/",
		"https://www.zara.com/", "https://www2.hm.com/", "https://shop.example.org/")

	properties.Property("price and availability are always sentinels", prop.ForAll(
		func(host, path string) bool {
			res := Price(host + path)
			if len(res.ProductListings) != 1 {
				return false
			}
			l := res.ProductListings[0]
			return l.Price == PriceUnavailable &&
				l.Availability == AvailabilityUnavailable &&
				!numericPrice.MatchString(l.Price) &&
				contract.Price.Validate(res) == nil
		},
		hosts,
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
