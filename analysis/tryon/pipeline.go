// Package tryon implements the virtual try-on pipeline: it resolves the
// garment specifications, runs the try-on agent through the retrying
// invocation wrapper, analyzes the user photo, and enriches the validated
// result with a generated image.
package tryon

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fashnai/fashnai/analysis/contract"
	"github.com/fashnai/fashnai/analysis/fallback"
	"github.com/fashnai/fashnai/features/cache"
	"github.com/fashnai/fashnai/features/images"
	"github.com/fashnai/fashnai/features/images/extract"
	"github.com/fashnai/fashnai/features/tools/crawl"
	"github.com/fashnai/fashnai/runtime/agent/invoke"
	"github.com/fashnai/fashnai/runtime/agent/model"
	"github.com/fashnai/fashnai/runtime/agent/runner"
	"github.com/fashnai/fashnai/runtime/agent/telemetry"
	"github.com/fashnai/fashnai/runtime/agent/tools"
)

// DefaultMaxReferences is the number of product reference images passed to
// the image generator.
const DefaultMaxReferences = 3

// RegionBlockedWarning is the warning added when image generation is not
// available in the caller's region.
const RegionBlockedWarning = "Virtual try-on image generation is not available in your region; a text description is provided instead."

const photoAnalysisPrompt = "Describe this photo for a virtual try-on edit. Cover the clothing the person is currently " +
	"wearing (garment types, colors, fit), their pose and body orientation, the lighting direction and quality, " +
	"the background, and how fabric currently falls on their body. Be concise and factual."

var (
	// ErrEmptyURL is returned when the request has no product URL.
	ErrEmptyURL = errors.New("tryon: product_url is required")
	// ErrNoGenerator marks sessions that ended without an image because no
	// image generator is configured.
	ErrNoGenerator = errors.New("tryon: no image generator configured")
	// ErrNoPhoto marks sessions that ended without an image because no
	// usable user photo was supplied.
	ErrNoPhoto = errors.New("tryon: no user photo supplied")
)

type (
	// ImageExtractor finds product images on a product page. It is best
	// effort and returns an empty slice on failure.
	ImageExtractor interface {
		Extract(ctx context.Context, pageURL string, max int) []extract.Image
	}

	// Request is a virtual try-on request.
	Request struct {
		ProductURL string
		User       UserProfile
		// UserImage is the user photo as base64, optionally with a data URL
		// header.
		UserImage string
		// ProductSpecs are specifications already known to the caller.
		ProductSpecs *contract.ProductSpecification
	}

	// Pipeline runs virtual try-on sessions. It is safe for concurrent use.
	Pipeline struct {
		runner    invoke.Runner
		vision    model.Client
		generator images.Generator
		extractor ImageExtractor
		cache     cache.SpecCache
		cfg       invoke.Config
		tel       telemetry.Set
		maxRefs   int
		newID     func() string
	}

	// Option configures a Pipeline.
	Option func(*Pipeline)
)

// WithVision sets the model client used for the photo analysis call.
func WithVision(c model.Client) Option { return func(p *Pipeline) { p.vision = c } }

// WithGenerator sets the image generator.
func WithGenerator(g images.Generator) Option { return func(p *Pipeline) { p.generator = g } }

// WithExtractor sets the product reference image extractor.
func WithExtractor(e ImageExtractor) Option { return func(p *Pipeline) { p.extractor = e } }

// WithSpecCache sets the cache consulted when the caller supplies no specs.
func WithSpecCache(c cache.SpecCache) Option { return func(p *Pipeline) { p.cache = c } }

// WithInvokeConfig sets the retry configuration of the try-on agent.
func WithInvokeConfig(cfg invoke.Config) Option { return func(p *Pipeline) { p.cfg = cfg } }

// WithTelemetry sets the logger, metrics and tracer.
func WithTelemetry(s telemetry.Set) Option { return func(p *Pipeline) { p.tel = s } }

// WithMaxReferences sets the number of product reference images.
func WithMaxReferences(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxRefs = n
		}
	}
}

// New returns a pipeline running the try-on agent with r.
func New(r invoke.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		runner:  r,
		cfg:     invoke.DefaultConfig(),
		maxRefs: DefaultMaxReferences,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	p.tel = p.tel.WithDefaults()
	if t := p.cfg.Telemetry; t.Logger == nil && t.Metrics == nil && t.Tracer == nil {
		p.cfg.Telemetry = p.tel
	}
	return p
}

// Run executes a try-on session. Stage failures never produce an error: they
// are recorded on the session and reflected in the result. An error is
// returned only for an invalid request or an invalid fallback.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Session, error) {
	url := strings.TrimSpace(req.ProductURL)
	if url == "" {
		return nil, ErrEmptyURL
	}
	s := newSession(p.newID(), url)
	ctx, span := p.tel.Tracer.Start(ctx, "tryon.session")
	defer span.End()

	p.resolveSpecs(ctx, s, req.ProductSpecs)
	if req.UserImage != "" {
		photo, err := DecodePhoto(req.UserImage)
		if err != nil {
			p.tel.Logger.Warn(ctx, "failed to decode user image", "session_id", s.ID, "err", err)
		} else {
			s.Photo = photo
		}
	}

	out, err := invoke.Invoke(ctx, p.agentRequest(s, req.User), p.cfg)
	if err != nil {
		return nil, err
	}
	s.Outcome = out
	s.Result = out.Value
	s.Result.GeneratedImage = ""
	s.Result.GeneratedImageMimeType = ""
	if err := s.transition(StateSpecResolved); err != nil {
		return nil, err
	}

	p.analyzePhoto(ctx, s)
	if err := s.transition(StatePhotoAnalyzed); err != nil {
		return nil, err
	}

	p.generateImage(ctx, s, req.User)
	p.tel.Metrics.IncCounter(telemetry.MetricTryOnOutcome, 1, "state", string(s.State))
	p.tel.Logger.Info(ctx, "try-on session finished", "session_id", s.ID, "state", string(s.State), "spec_source", string(s.SpecSource), "status", string(s.Outcome.Status))
	return s, nil
}

// resolveSpecs picks caller supplied specs, then cached specs. When neither
// exists the agent crawls the product page itself.
func (p *Pipeline) resolveSpecs(ctx context.Context, s *Session, supplied *contract.ProductSpecification) {
	if supplied != nil {
		s.Specs, s.SpecSource = supplied, SpecsFromCaller
		p.tel.Logger.Info(ctx, "using supplied product specifications", "session_id", s.ID)
		return
	}
	if p.cache != nil {
		spec, ok, err := p.cache.Get(ctx, s.ProductURL)
		switch {
		case err != nil:
			p.tel.Logger.Warn(ctx, "spec cache lookup failed", "session_id", s.ID, "err", err)
		case ok:
			s.Specs, s.SpecSource = &spec, SpecsFromCache
			p.tel.Logger.Info(ctx, "using cached product specifications", "session_id", s.ID)
			return
		}
	}
	s.SpecSource = SpecsFromCrawl
	p.tel.Logger.Info(ctx, "no product specifications available, agent will crawl", "session_id", s.ID)
}

func (p *Pipeline) agentRequest(s *Session, user UserProfile) invoke.Request[contract.VirtualTryOnResult] {
	task := runner.Task{Prompt: taskPrompt(s, user)}
	if s.Specs != nil {
		task.ExcludeTools = []tools.Ident{crawl.Ident}
	}
	if s.Photo != nil {
		task.Images = []model.ImagePart{{Format: model.ImageFormatFromMime(s.Photo.MimeType), Bytes: s.Photo.Data}}
	}
	productName := ""
	if s.Specs != nil {
		productName = s.Specs.ProductName
	}
	if productName == "" || productName == fallback.Unknown {
		productName = fallback.ParseURL(s.ProductURL).ProductName
	}
	return invoke.Request[contract.VirtualTryOnResult]{
		Name:     "tryon",
		Runner:   p.runner,
		Task:     task,
		Contract: contract.TryOn,
		Fallback: func(reason string) contract.VirtualTryOnResult {
			return fallback.TryOn(productName, reason)
		},
	}
}

func taskPrompt(s *Session, user UserProfile) string {
	var b strings.Builder
	if s.Specs != nil {
		sp := s.Specs
		b.WriteString("PRODUCT INFORMATION (pre-fetched, no need to crawl):\n")
		fmt.Fprintf(&b, "- Product URL: %s\n", s.ProductURL)
		fmt.Fprintf(&b, "- Product Name: %s\n", orDefault(sp.ProductName, fallback.Unknown))
		fmt.Fprintf(&b, "- Brand: %s\n", orDefault(sp.Brand, fallback.Unknown))
		fmt.Fprintf(&b, "- Category: %s\n", orDefault(sp.Category, fallback.Unknown))
		fmt.Fprintf(&b, "- Color: %s\n", orDefault(sp.Color, fallback.Unknown))
		fmt.Fprintf(&b, "- Material: %s\n", orDefault(sp.Material, fallback.Unknown))
		fmt.Fprintf(&b, "- Available Sizes: %s\n", orDefault(strings.Join(sp.SizesAvailable, ", "), fallback.Unknown))
		fmt.Fprintf(&b, "- Fit Type: %s\n", orDefault(deref(sp.FitType), "Not specified"))
		fmt.Fprintf(&b, "- Features: %s\n", orDefault(strings.Join(sp.Features, ", "), "None listed"))
		fmt.Fprintf(&b, "- Care Instructions: %s\n", orDefault(deref(sp.CareInstructions), "Not specified"))
		b.WriteString("\nDO NOT crawl the product URL - use the information above for your analysis.\n")
	} else {
		fmt.Fprintf(&b, "Product URL: %s\n\nPlease crawl this URL to get product details.\n", s.ProductURL)
	}
	b.WriteString("\nUser Characteristics:\n")
	b.WriteString(user.Describe())
	b.WriteString("\n")
	if s.Photo != nil {
		b.WriteString("\nA user photo is attached. Use it to determine body shape and proportions, approximate body type, " +
			"skin tone for color recommendations and current style preferences, and personalize the fit analysis and " +
			"styling recommendations accordingly.\n")
	}
	b.WriteString("\nPlease perform a virtual try-on analysis for this product, providing detailed insights about how it " +
		"would look on a user with these characteristics.")
	return b.String()
}

// analyzePhoto runs the vision call that conditions image generation. It
// only runs when a photo was supplied.
func (p *Pipeline) analyzePhoto(ctx context.Context, s *Session) {
	if s.Photo == nil {
		return
	}
	if p.vision == nil {
		s.PhotoAnalysis = PhotoAnalysisUnavailable
		return
	}
	ctx, span := p.tel.Tracer.Start(ctx, "tryon.photo_analysis")
	defer span.End()
	resp, err := p.vision.Complete(ctx, model.Request{
		Messages: []*model.Message{{
			Role: model.ConversationRoleUser,
			Parts: []model.Part{
				model.TextPart{Text: photoAnalysisPrompt},
				model.ImagePart{Format: model.ImageFormatFromMime(s.Photo.MimeType), Bytes: s.Photo.Data},
			},
		}},
	})
	text := strings.TrimSpace(resp.Text())
	if err != nil || text == "" {
		if err == nil {
			err = runner.ErrEmptyOutput
		}
		span.RecordError(err)
		p.tel.Logger.Warn(ctx, "photo analysis failed", "session_id", s.ID, "err", err)
		s.PhotoAnalysis = PhotoAnalysisUnavailable
		return
	}
	s.PhotoAnalysis = text
}

func (p *Pipeline) generateImage(ctx context.Context, s *Session, user UserProfile) {
	switch {
	case p.generator == nil:
		p.imageFailed(ctx, s, ErrNoGenerator)
		return
	case s.Photo == nil:
		p.imageFailed(ctx, s, ErrNoPhoto)
		return
	}

	spec := p.garment(s)
	refs := []images.Reference{{MimeType: s.Photo.MimeType, Data: s.Photo.Data}}
	if p.extractor != nil && p.maxRefs > 0 {
		for _, img := range p.extractor.Extract(ctx, s.ProductURL, p.maxRefs) {
			s.References = append(s.References, images.Reference{MimeType: img.MimeType, Data: img.Data})
		}
	}
	refs = append(refs, s.References...)
	s.Prompt = BuildImagePrompt(s.PhotoAnalysis, spec, user, len(s.References))
	_ = s.transition(StateImageRequested)

	ctx, span := p.tel.Tracer.Start(ctx, "tryon.generate_image")
	defer span.End()
	gen, err := p.generator.Generate(ctx, s.Prompt, refs)
	switch {
	case err != nil && images.IsRegionBlocked(err):
		span.RecordError(err)
		s.ImageErr = err
		_ = s.transition(StateRegionBlocked)
		s.Result.GeneratedImageDescription = regionSubstitute(s.Result, spec)
		s.Result.Warnings = append(s.Result.Warnings, RegionBlockedWarning)
		p.tel.Logger.Warn(ctx, "image generation blocked in region", "session_id", s.ID, "err", err)
	case err != nil:
		span.RecordError(err)
		p.imageFailed(ctx, s, err)
	case len(gen.Data) == 0:
		p.imageFailed(ctx, s, images.ErrNoImage)
	default:
		_ = s.transition(StateImageReady)
		mime := gen.MimeType
		if mime == "" {
			mime = "image/png"
		}
		s.Result.GeneratedImage = base64.StdEncoding.EncodeToString(gen.Data)
		s.Result.GeneratedImageMimeType = mime
	}
}

func (p *Pipeline) imageFailed(ctx context.Context, s *Session, err error) {
	s.ImageErr = err
	_ = s.transition(StateImageFailed)
	if errors.Is(err, ErrNoGenerator) || errors.Is(err, ErrNoPhoto) {
		p.tel.Logger.Debug(ctx, "image generation skipped", "session_id", s.ID, "reason", err)
		return
	}
	p.tel.Logger.Warn(ctx, "image generation failed", "session_id", s.ID, "err", err)
}

// garment returns the specs used for the image prompt. Without specs it
// falls back to what the URL reveals.
func (p *Pipeline) garment(s *Session) contract.ProductSpecification {
	if s.Specs != nil {
		return *s.Specs
	}
	spec := fallback.Specification(s.ProductURL)
	if s.Result.ProductName != "" {
		spec.ProductName = s.Result.ProductName
	}
	return spec
}

// regionSubstitute is the textual stand-in for the generated image.
func regionSubstitute(res contract.VirtualTryOnResult, spec contract.ProductSpecification) string {
	name := orDefault(res.ProductName, spec.ProductName)
	var b strings.Builder
	fmt.Fprintf(&b, "Image preview unavailable in your region. Text preview of %s on you: ", orDefault(name, "the product"))
	b.WriteString(strings.TrimSpace(res.GeneratedImageDescription))
	if res.FitAnalysis != "" {
		b.WriteString(" Fit: ")
		b.WriteString(strings.TrimSpace(res.FitAnalysis))
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
