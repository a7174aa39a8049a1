package tryon

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashnai/fashnai/analysis/contract"
)

func TestClassifyCategory(t *testing.T) {
	cases := []struct {
		category, name string
		want           Category
	}{
		{"T-Shirt", "", CategoryTops},
		{"Blouses", "", CategoryTops},
		{"", "Floral Shirt Dress", CategoryDresses},
		{"Jeans", "", CategoryBottoms},
		{"", "Short Sleeve Shirt", CategoryTops},
		{"", "Denim Shorts", CategoryBottoms},
		{"Sneakers", "", CategoryFootwear},
		{"", "Chelsea Boots", CategoryFootwear},
		{"", "Oversized Shirt Jacket", CategoryOuterwear},
		{"Trench Coat", "", CategoryOuterwear},
		{"Unknown", "Baby Gifts", CategoryOther},
		{"Bags", "Leather Tote", CategoryOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyCategory(c.category, c.name), "%q / %q", c.category, c.name)
	}
}

func TestDetectPattern(t *testing.T) {
	assert.Equal(t, PatternTieDye, DetectPattern("Blue Tie-Dye", ""))
	assert.Equal(t, PatternTieDye, DetectPattern("multi", "tie dye wash"))
	assert.Equal(t, PatternStripe, DetectPattern("Navy", "Breton striped"))
	assert.Equal(t, PatternFloral, DetectPattern("Floral print"))
	assert.Equal(t, PatternFloral, DetectPattern("white", "flower embroidery"))
	assert.Equal(t, PatternNone, DetectPattern("Black", "Relaxed fit"))
}

func TestBuildImagePrompt(t *testing.T) {
	fit := "Slim Fit"
	spec := contract.ProductSpecification{
		ProductName: "Tie-Dye Crop Tee",
		Brand:       "Bershka",
		Category:    "T-Shirt",
		Color:       "Pink",
		Material:    fallbackUnknown,
		FitType:     &fit,
	}
	got := BuildImagePrompt("Person in a black hoodie.", spec, UserProfile{Height: "173cm"}, 0)

	assert.Contains(t, got, "Person in a black hoodie.")
	assert.Contains(t, got, "- Brand: Bershka")
	assert.Contains(t, got, "- Fit: Slim Fit")
	assert.NotContains(t, got, "- Material:")
	assert.Contains(t, got, categoryInstructions[CategoryTops])
	assert.Contains(t, got, patternAddenda[PatternTieDye])
	assert.NotContains(t, got, "remaining")
	assert.Contains(t, got, "Height: 173cm")
}

func TestUserProfileDescribe(t *testing.T) {
	assert.Equal(t, "No specific user characteristics provided", UserProfile{}.Describe())
	assert.Equal(t, "Typical size: M\nBody type: athletic", UserProfile{Size: "M", BodyType: "athletic"}.Describe())
}

func TestDecodePhoto(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("image"))

	cases := map[string]string{
		"data:image/png;base64," + payload:  "image/png",
		"data:image/gif;base64," + payload:  "image/gif",
		"data:image/webp;base64," + payload: "image/webp",
		"data:image/jpeg;base64," + payload: "image/jpeg",
		payload:                             "image/jpeg",
	}
	for in, mime := range cases {
		p, err := DecodePhoto(in)
		require.NoError(t, err, in)
		assert.Equal(t, mime, p.MimeType)
		assert.Equal(t, []byte("image"), p.Data)
	}

	p, err := DecodePhoto(base64.RawStdEncoding.EncodeToString([]byte("image")))
	require.NoError(t, err)
	assert.Equal(t, []byte("image"), p.Data)

	_, err = DecodePhoto("data:image/png;base64,")
	assert.ErrorIs(t, err, ErrEmptyPhoto)
	_, err = DecodePhoto("data:image/png;base64")
	assert.Error(t, err)
	_, err = DecodePhoto("!!!")
	assert.Error(t, err)
}

const fallbackUnknown = "Unknown"
