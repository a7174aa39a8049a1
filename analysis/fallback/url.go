package fallback

import (
	"net/url"
	"strings"
	"unicode"
)

// BasicInfo is what can be guessed about a product from its URL alone.
type BasicInfo struct {
	ProductName string
	Brand       string
	Category    string
	Color       string
	Retailer    string
}

// Unknown is the placeholder used for attributes that cannot be guessed.
const Unknown = "Unknown"

type retailer struct {
	match string
	name  string
	// brand is set for single-brand retailers.
	brand string
}

// retailers is matched in order against the lower-cased URL.
var retailers = []retailer{
	{match: "shein.com", name: "SHEIN", brand: "SHEIN"},
	{match: "asos.com", name: "ASOS"},
	{match: "zalando", name: "Zalando"},
	{match: "zara.com", name: "Zara", brand: "Zara"},
	{match: "hm.com", name: "H&M", brand: "H&M"},
	{match: "nordstrom.com", name: "Nordstrom"},
	{match: "mango.com", name: "Mango", brand: "Mango"},
	{match: "uniqlo.com", name: "Uniqlo", brand: "Uniqlo"},
	{match: "next.co.uk", name: "Next", brand: "Next"},
	{match: "boohoo.com", name: "boohoo", brand: "boohoo"},
	{match: "farfetch.com", name: "Farfetch"},
	{match: "net-a-porter.com", name: "NET-A-PORTER"},
}

// garments maps garment keywords to category labels.
var garments = map[string]string{
	"dress": "Dresses", "dresses": "Dresses", "gown": "Dresses", "jumpsuit": "Dresses", "playsuit": "Dresses",
	"shirt": "Tops", "t-shirt": "Tops", "tshirt": "Tops", "tee": "Tops", "top": "Tops", "blouse": "Tops",
	"sweater": "Tops", "jumper": "Tops", "hoodie": "Tops", "sweatshirt": "Tops", "cardigan": "Tops",
	"tank": "Tops", "polo": "Tops", "bodysuit": "Tops",
	"jeans": "Bottoms", "trousers": "Bottoms", "pants": "Bottoms", "shorts": "Bottoms", "skirt": "Bottoms",
	"leggings": "Bottoms", "joggers": "Bottoms", "chinos": "Bottoms",
	"jacket": "Outerwear", "coat": "Outerwear", "blazer": "Outerwear", "parka": "Outerwear",
	"trench": "Outerwear", "puffer": "Outerwear", "gilet": "Outerwear",
	"shoes": "Footwear", "sneakers": "Footwear", "trainers": "Footwear", "boots": "Footwear",
	"sandals": "Footwear", "heels": "Footwear", "loafers": "Footwear", "pumps": "Footwear",
	"bag": "Accessories", "handbag": "Accessories", "backpack": "Accessories", "scarf": "Accessories",
	"hat": "Accessories", "belt": "Accessories",
}

var colors = map[string]bool{
	"black": true, "white": true, "red": true, "blue": true, "navy": true, "green": true, "yellow": true,
	"pink": true, "purple": true, "orange": true, "brown": true, "beige": true, "grey": true, "gray": true,
	"cream": true, "ivory": true, "khaki": true, "olive": true, "burgundy": true, "silver": true,
	"gold": true, "tan": true, "camel": true, "multicolor": true, "multi": true, "ecru": true, "lilac": true,
}

// ParseURL guesses basic product information from the URL path. It never
// performs I/O.
func ParseURL(raw string) BasicInfo {
	info := BasicInfo{ProductName: "Unknown Product", Brand: Unknown, Category: Unknown, Color: Unknown, Retailer: Unknown}
	r := matchRetailer(raw)
	if r.name != "" {
		info.Retailer = r.name
	}
	if r.brand != "" {
		info.Brand = r.brand
	}

	tokens := bestSegment(raw)
	if len(tokens) == 0 {
		return info
	}
	for _, t := range tokens {
		if c, ok := garments[t]; ok && info.Category == Unknown {
			info.Category = c
		}
		if colors[t] && info.Color == Unknown {
			info.Color = titleCase(t)
		}
	}
	words := tokens
	if r.brand == "" && !isKeyword(words[0]) && len(words) > 1 {
		info.Brand = titleCase(words[0])
		words = words[1:]
	}
	if name := titleWords(words); name != "" {
		info.ProductName = name
	}
	return info
}

// RetailerName returns the retailer display name for the URL or Unknown.
func RetailerName(raw string) string {
	if r := matchRetailer(raw); r.name != "" {
		return r.name
	}
	return Unknown
}

func matchRetailer(raw string) retailer {
	lower := strings.ToLower(raw)
	for _, r := range retailers {
		if strings.Contains(lower, r.match) {
			return r
		}
	}
	return retailer{}
}

// bestSegment returns the word tokens of the path segment with the most
// garment and color keywords. Ties go to the later segment; when nothing
// matches the last segment with words is used.
func bestSegment(raw string) []string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.EscapedPath()
	}
	if p, err := url.PathUnescape(path); err == nil {
		path = p
	}
	var (
		best      []string
		bestScore = -1
	)
	for _, seg := range strings.Split(path, "/") {
		words := segmentWords(seg)
		if len(words) == 0 {
			continue
		}
		score := 0
		for _, w := range words {
			if isKeyword(w) {
				score++
			}
		}
		if score >= bestScore {
			best, bestScore = words, score
		}
	}
	return best
}

func segmentWords(seg string) []string {
	seg = strings.ToLower(seg)
	for _, ext := range []string{".html", ".htm", ".aspx", ".php"} {
		seg = strings.TrimSuffix(seg, ext)
	}
	fields := strings.FieldsFunc(seg, func(r rune) bool {
		return r == '-' || r == '_' || r == '+' || r == ' ' || r == '.' || r == ','
	})
	var words []string
	for _, f := range fields {
		if len(f) < 2 || strings.IndexFunc(f, unicode.IsDigit) >= 0 {
			continue
		}
		words = append(words, f)
	}
	if len(words) == 1 && len(words[0]) <= 3 {
		// locale and short navigation segments such as "us", "en", "p"
		return nil
	}
	return words
}

func isKeyword(w string) bool {
	_, g := garments[w]
	return g || colors[w]
}

func titleWords(words []string) string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, titleCase(w))
	}
	return strings.Join(out, " ")
}

func titleCase(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
