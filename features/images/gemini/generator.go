// Package gemini implements image generation with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/fashnai/fashnai/features/images"
	"github.com/fashnai/fashnai/runtime/agent/model"
	"github.com/fashnai/fashnai/runtime/credentials"
)

// DefaultModel is the image model used when none is configured.
const DefaultModel = "gemini-2.5-flash-image"

type (
	// ContentGenerator captures the subset of the Gen AI models service used
	// by the generator. *genai.Models satisfies it.
	ContentGenerator interface {
		GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	}

	// Generator renders try-on images. Requests rotate over one client per
	// API key.
	Generator struct {
		models []ContentGenerator
		pool   *credentials.Pool
		index  map[string]int
		model  string
	}

	// Option configures a Generator.
	Option func(*Generator)
)

// WithModel overrides the image model identifier.
func WithModel(id string) Option {
	return func(g *Generator) {
		if id != "" {
			g.model = id
		}
	}
}

// New builds a Generator with one Gen AI client per key in pool.
func New(ctx context.Context, pool *credentials.Pool, opts ...Option) (*Generator, error) {
	if pool.Len() == 0 {
		return nil, credentials.ErrNoCredentials
	}
	keys := pool.Keys()
	models := make([]ContentGenerator, 0, len(keys))
	for _, k := range keys {
		c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: k, Backend: genai.BackendGeminiAPI})
		if err != nil {
			return nil, fmt.Errorf("gemini: new client: %w", err)
		}
		models = append(models, c.Models)
	}
	return NewFromModels(pool, models, opts...)
}

// NewFromModels builds a Generator from pre-built model services, one per key
// of pool in the same order.
func NewFromModels(pool *credentials.Pool, models []ContentGenerator, opts ...Option) (*Generator, error) {
	keys := pool.Keys()
	if len(keys) == 0 || len(keys) != len(models) {
		return nil, errors.New("gemini: one model service per API key is required")
	}
	g := &Generator{models: models, pool: pool, index: make(map[string]int, len(keys)), model: DefaultModel}
	for i, k := range keys {
		g.index[k] = i
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Generate implements images.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string, refs []images.Reference) (images.Generated, error) {
	key, err := g.pool.Next()
	if err != nil {
		return images.Generated{}, err
	}
	svc := g.models[g.index[key]]

	parts := make([]*genai.Part, 0, 1+len(refs))
	parts = append(parts, &genai.Part{Text: prompt})
	for _, r := range refs {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: r.MimeType, Data: r.Data}})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	cfg := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}

	resp, err := svc.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return images.Generated{}, classify(err)
	}
	return extractImage(resp)
}

func extractImage(resp *genai.GenerateContentResponse) (images.Generated, error) {
	if resp == nil {
		return images.Generated{}, images.ErrNoImage
	}
	var (
		out  images.Generated
		text strings.Builder
	)
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil {
				continue
			}
			if p.InlineData != nil && len(p.InlineData.Data) > 0 && out.Data == nil {
				out.Data = p.InlineData.Data
				out.MimeType = p.InlineData.MIMEType
			}
			if p.Text != "" {
				text.WriteString(p.Text)
			}
		}
	}
	out.Text = text.String()
	if out.Data == nil {
		return out, images.ErrNoImage
	}
	if out.MimeType == "" {
		out.MimeType = "image/png"
	}
	return out, nil
}

// classify maps Gen AI errors to provider errors, marking geographic
// restrictions with images.ErrRegionBlocked.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe := model.NewProviderError("gemini", "generate_content", apiErr.Code, model.KindFromStatus(apiErr.Code), apiErr.Message, err)
		if images.IsRegionBlocked(err) || apiErr.Status == "FAILED_PRECONDITION" {
			return errors.Join(images.ErrRegionBlocked, pe)
		}
		return pe
	}
	if images.IsRegionBlocked(err) {
		return errors.Join(images.ErrRegionBlocked, err)
	}
	return fmt.Errorf("gemini: %w", err)
}
