package tryon

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/fashnai/fashnai/analysis/contract"
)

// Category is a garment bucket that selects the replacement instruction.
type Category string

const (
	CategoryTops      Category = "tops"
	CategoryDresses   Category = "dresses"
	CategoryBottoms   Category = "bottoms"
	CategoryFootwear  Category = "footwear"
	CategoryOuterwear Category = "outerwear"
	CategoryOther     Category = "other"
)

// Pattern is a print family that needs an explicit rendering instruction.
type Pattern string

const (
	PatternTieDye Pattern = "tie-dye"
	PatternStripe Pattern = "stripe"
	PatternFloral Pattern = "floral"
	PatternNone   Pattern = "none"
)

// PhotoAnalysisUnavailable replaces the photo analysis when the vision call
// fails.
const PhotoAnalysisUnavailable = "Photo analysis unavailable, proceeding with basic garment replacement."

// categoryBuckets is checked in order; more specific garments come first so
// that "shirt dress" is a dress and "shirt jacket" is outerwear.
var categoryBuckets = []struct {
	category Category
	keywords []string
}{
	{CategoryFootwear, []string{"shoe", "sneaker", "trainer", "boot", "sandal", "heel", "loafer", "mule", "slipper", "espadrille", "footwear", "pump"}},
	{CategoryDresses, []string{"dress", "gown", "jumpsuit", "romper", "playsuit", "kaftan"}},
	{CategoryOuterwear, []string{"jacket", "coat", "blazer", "parka", "gilet", "trench", "anorak", "bomber", "puffer", "outerwear", "poncho"}},
	{CategoryBottoms, []string{"jean", "trouser", "pants", "shorts", "skirt", "legging", "chino", "jogger", "culotte", "bottom"}},
	{CategoryTops, []string{"shirt", "tee", "top", "blouse", "sweater", "hoodie", "sweatshirt", "cardigan", "tank", "polo", "jumper", "knit", "camisole", "bodysuit", "vest"}},
}

var categoryInstructions = map[Category]string{
	CategoryTops: "Remove only the upper-body garment the person is wearing and replace it with the product top. " +
		"Keep the lower-body clothing unchanged. The top should sit naturally on the shoulders and torso with realistic " +
		"sleeve length, neckline and hem position for the product's fit.",
	CategoryDresses: "Remove the person's current top and bottom garments and replace them with the product dress. " +
		"The dress should follow the body from shoulders to hem with the product's length, waistline and silhouette.",
	CategoryBottoms: "Remove only the lower-body garment the person is wearing and replace it with the product bottoms. " +
		"Keep the top unchanged. The waistband, rise, leg shape and length should match the product's fit.",
	CategoryFootwear: "Replace only the person's footwear with the product shoes. Keep all clothing unchanged. " +
		"The shoes should be correctly sized to the feet, aligned with the pose and resting on the ground plane.",
	CategoryOuterwear: "Layer the product outerwear over the person's current clothing, or replace an existing outer layer. " +
		"The garment should sit on the shoulders with realistic volume, open or closed as the product is shown.",
	CategoryOther: "Add the product to the person's outfit in the place it is normally worn, keeping every other garment " +
		"unchanged and scaling the product realistically to the body.",
}

var patternAddenda = map[Pattern]string{
	PatternTieDye: "The product has a tie-dye print: render organic, irregular color bleeds and spirals with soft edges " +
		"exactly as in the reference images. Do not replace it with a regular geometric or repeating pattern.",
	PatternStripe: "The product is striped: keep the stripe direction, width and spacing from the reference images and " +
		"make the stripes follow the folds and curvature of the fabric.",
	PatternFloral: "The product has a floral print: reproduce the flower motifs, scale and colors from the reference " +
		"images. Do not simplify them into abstract or geometric shapes.",
}

// ClassifyCategory maps a garment category and name to a bucket.
func ClassifyCategory(category, productName string) Category {
	for _, text := range []string{category, productName} {
		words := tokenize(text)
		for _, b := range categoryBuckets {
			for _, w := range words {
				if matchesKeyword(w, b.keywords) {
					return b.category
				}
			}
		}
	}
	return CategoryOther
}

// DetectPattern sniffs color and feature text for a print family.
func DetectPattern(texts ...string) Pattern {
	joined := strings.ToLower(strings.Join(texts, " "))
	switch {
	case strings.Contains(joined, "tie-dye"), strings.Contains(joined, "tie dye"), strings.Contains(joined, "tiedye"):
		return PatternTieDye
	case strings.Contains(joined, "stripe"):
		return PatternStripe
	case strings.Contains(joined, "floral"), strings.Contains(joined, "flower"), strings.Contains(joined, "botanical"):
		return PatternFloral
	}
	return PatternNone
}

// UserProfile holds the optional characteristics supplied by the caller.
type UserProfile struct {
	Size     string
	Height   string
	BodyType string
}

// Describe renders the profile for prompts.
func (u UserProfile) Describe() string {
	var lines []string
	if u.Size != "" {
		lines = append(lines, "Typical size: "+u.Size)
	}
	if u.Height != "" {
		lines = append(lines, "Height: "+u.Height)
	}
	if u.BodyType != "" {
		lines = append(lines, "Body type: "+u.BodyType)
	}
	if len(lines) == 0 {
		return "No specific user characteristics provided"
	}
	return strings.Join(lines, "\n")
}

// BuildImagePrompt assembles the image generation prompt.
func BuildImagePrompt(analysis string, spec contract.ProductSpecification, user UserProfile, references int) string {
	category := ClassifyCategory(spec.Category, spec.ProductName)
	pattern := DetectPattern(spec.Color, spec.ProductName, strings.Join(spec.Features, " "))

	var b strings.Builder
	b.WriteString("Edit the first image, a photo of a person, so that they are wearing the product described below. ")
	b.WriteString("Keep the person's face, hair, skin tone, body shape, pose, background and lighting unchanged.\n\n")

	b.WriteString("Photo analysis:\n")
	b.WriteString(strings.TrimSpace(analysis))
	b.WriteString("\n\nProduct:\n")
	writeField(&b, "Name", spec.ProductName)
	writeField(&b, "Brand", spec.Brand)
	writeField(&b, "Category", spec.Category)
	writeField(&b, "Color", spec.Color)
	writeField(&b, "Material", spec.Material)
	if spec.FitType != nil {
		writeField(&b, "Fit", *spec.FitType)
	}
	if len(spec.Features) > 0 {
		writeField(&b, "Features", strings.Join(spec.Features, "; "))
	}

	b.WriteString("\nGarment replacement:\n")
	b.WriteString(categoryInstructions[category])
	b.WriteString("\n")
	if add, ok := patternAddenda[pattern]; ok {
		b.WriteString("\nPattern:\n")
		b.WriteString(add)
		b.WriteString("\n")
	}
	if references > 0 {
		fmt.Fprintf(&b, "\nThe remaining %d image(s) show the actual product. Match its color, print and details exactly.\n", references)
	}
	b.WriteString("\nUser characteristics:\n")
	b.WriteString(user.Describe())
	b.WriteString("\n\nProduce a single photorealistic image.")
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" || value == "Unknown" {
		return
	}
	b.WriteString("- ")
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func matchesKeyword(word string, keywords []string) bool {
	for _, kw := range keywords {
		if word == kw || word == kw+"s" || word == kw+"es" {
			return true
		}
	}
	return false
}
