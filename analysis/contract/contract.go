package contract

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Contract validates raw model output against a JSON Schema and decodes it
// into T, applying the documented defaults.
type Contract[T any] struct {
	name     string
	source   string
	schema   *jsonschema.Schema
	defaults func(*T)
}

// ValidationError reports model output that does not satisfy a contract.
type ValidationError struct {
	// Contract is the name of the violated contract.
	Contract string
	// Excerpt is the beginning of the offending output.
	Excerpt string
	// Err is the underlying decode or schema error.
	Err error
}

// ErrNoJSON is returned when the output contains no JSON object.
var ErrNoJSON = errors.New("no JSON object found in output")

const excerptLen = 200

var (
	// Price validates PriceComparisonResult values.
	Price = mustCompile("price_comparison", defaultPrice)
	// Specification validates ProductSpecification values.
	Specification = mustCompile("product_specification", defaultSpecification)
	// Review validates ReviewAnalysis values.
	Review = mustCompile("review_analysis", defaultReview)
	// TryOn validates VirtualTryOnResult values.
	TryOn = mustCompile("virtual_tryon", defaultTryOn)
)

// New compiles the JSON Schema document source into a contract named name.
func New[T any](name, source string, defaults func(*T)) (*Contract[T], error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("contract %s: parse schema: %w", name, err)
	}
	url := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("contract %s: add schema: %w", name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("contract %s: compile schema: %w", name, err)
	}
	return &Contract[T]{name: name, source: source, schema: sch, defaults: defaults}, nil
}

func mustCompile[T any](name string, defaults func(*T)) *Contract[T] {
	src, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		panic(err)
	}
	c, err := New[T](name, string(src), defaults)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the contract name.
func (c *Contract[T]) Name() string { return c.name }

// Schema returns the JSON Schema source.
func (c *Contract[T]) Schema() string { return c.source }

// Parse extracts the JSON object from raw, validates it against the schema,
// decodes it into T and applies defaults. raw may wrap the object in a
// markdown code fence or surround it with prose.
func (c *Contract[T]) Parse(raw string) (T, error) {
	var zero T
	obj, err := ExtractJSON(raw)
	if err != nil {
		return zero, c.invalid(raw, err)
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(obj))
	if err != nil {
		return zero, c.invalid(raw, err)
	}
	if err := c.schema.Validate(inst); err != nil {
		return zero, c.invalid(raw, err)
	}
	// The schema accepts integral floats such as 31.0 as integers; rewrite
	// them so they decode into int fields.
	data, err := json.Marshal(integralNumbers(inst))
	if err != nil {
		return zero, c.invalid(raw, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, c.invalid(raw, err)
	}
	c.Normalize(&v)
	return v, nil
}

// integralNumbers returns v with every integral json.Number written in
// integer form.
func integralNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = integralNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = integralNumbers(e)
		}
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			return t
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactInt {
			return t
		}
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return v
}

// maxExactInt is the largest integer a float64 represents exactly.
const maxExactInt = 1 << 53

// Normalize applies the contract defaults to v.
func (c *Contract[T]) Normalize(v *T) {
	if c.defaults != nil {
		c.defaults(v)
	}
}

// Validate reports whether v, once defaults are applied, satisfies the
// schema. It is used to check synthesized results.
func (c *Contract[T]) Validate(v T) error {
	c.Normalize(&v)
	b, err := json.Marshal(v)
	if err != nil {
		return c.invalid("", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return c.invalid(string(b), err)
	}
	if err := c.schema.Validate(inst); err != nil {
		return c.invalid(string(b), err)
	}
	return nil
}

func (c *Contract[T]) invalid(raw string, err error) error {
	excerpt := raw
	if len(excerpt) > excerptLen {
		excerpt = excerpt[:excerptLen] + "..."
	}
	return &ValidationError{Contract: c.name, Excerpt: excerpt, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s output: %v", e.Contract, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExtractJSON returns the outermost JSON object in s. A ```json fenced block
// is preferred when present.
func ExtractJSON(s string) (string, error) {
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			lang := strings.TrimSpace(rest[:nl])
			if lang == "" || strings.EqualFold(lang, "json") {
				rest = rest[nl+1:]
			}
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			if obj, err := ExtractJSON(rest[:j]); err == nil {
				return obj, nil
			}
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

func defaultPrice(v *PriceComparisonResult) {
	if v.ProductListings == nil {
		v.ProductListings = []ProductListing{}
	}
	for i := range v.ProductListings {
		if strings.TrimSpace(v.ProductListings[i].SellerInfo) == "" {
			v.ProductListings[i].SellerInfo = DefaultSellerInfo
		}
	}
	if v.SourcesChecked == nil {
		v.SourcesChecked = []string{}
	}
}

func defaultSpecification(v *ProductSpecification) {
	if v.SizesAvailable == nil {
		v.SizesAvailable = []string{}
	}
	if v.Features == nil {
		v.Features = []string{}
	}
	if v.AdditionalSpecs == nil {
		v.AdditionalSpecs = map[string]string{}
	}
	if v.Sources == nil {
		v.Sources = []string{}
	}
}

func defaultReview(v *ReviewAnalysis) {
	if v.Pros == nil {
		v.Pros = []string{}
	}
	if v.Cons == nil {
		v.Cons = []string{}
	}
	if v.CommonThemes == nil {
		v.CommonThemes = []string{}
	}
	if v.SourcesAnalyzed == nil {
		v.SourcesAnalyzed = []string{}
	}
}

func defaultTryOn(v *VirtualTryOnResult) {
	if v.StyleRecommendations == nil {
		v.StyleRecommendations = []string{}
	}
	if v.Warnings == nil {
		v.Warnings = []string{}
	}
}
