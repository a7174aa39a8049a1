// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"goa.design/clue/health"
	goahttp "goa.design/goa/v3/http"

	"github.com/fashnai/fashnai/analysis/agents"
	"github.com/fashnai/fashnai/analysis/contract"
	"github.com/fashnai/fashnai/analysis/coordinator"
	"github.com/fashnai/fashnai/analysis/tryon"
	"github.com/fashnai/fashnai/runtime/agent/invoke"
	"github.com/fashnai/fashnai/runtime/agent/telemetry"
)

// ServiceName is reported by the root and health endpoints.
const ServiceName = "FashnAI API"

type (
	// Analyses runs the single-branch analyses and the try-on pipeline.
	// *agents.Service implements it.
	Analyses interface {
		coordinator.Analyzer
		VirtualTryOn(ctx context.Context, req tryon.Request) (*tryon.Session, error)
	}

	// Bundler produces the fan-out bundle. *coordinator.Coordinator
	// implements it.
	Bundler interface {
		Analyze(ctx context.Context, url string) (contract.AnalysisBundle, error)
	}

	// Info is reported by GET / and GET /health.
	Info struct {
		Version string
		// APIKeys is the number of model credentials in rotation.
		APIKeys int
		// RequestsPerMinute is the per-credential rate limit.
		RequestsPerMinute int
	}

	// Server holds the HTTP handlers.
	Server struct {
		analyses Analyses
		bundler  Bundler
		info     Info
		checker  health.Checker
		started  time.Time
		tel      telemetry.Set
	}

	// Option configures a Server.
	Option func(*Server)

	productRequest struct {
		ProductURL string `json:"product_url"`
	}

	tryOnRequest struct {
		ProductURL      string                         `json:"product_url"`
		UserSize        string                         `json:"user_size,omitempty"`
		UserHeight      string                         `json:"user_height,omitempty"`
		UserBodyType    string                         `json:"user_body_type,omitempty"`
		UserImageBase64 string                         `json:"user_image_base64,omitempty"`
		ProductSpecs    *contract.ProductSpecification `json:"product_specs,omitempty"`
	}

	errorBody struct {
		Detail string `json:"detail"`
	}

	rootBody struct {
		Message   string            `json:"message"`
		Version   string            `json:"version"`
		APIKeys   int               `json:"api_keys"`
		RateLimit string            `json:"rate_limit"`
		Endpoints map[string]string `json:"endpoints"`
	}

	healthBody struct {
		Status       string            `json:"status"`
		Service      string            `json:"service"`
		APIKeys      int               `json:"api_keys"`
		Uptime       int64             `json:"uptime"`
		Dependencies map[string]string `json:"dependencies"`
	}
)

// WithInfo sets the version and credential details.
func WithInfo(i Info) Option {
	return func(s *Server) { s.info = i }
}

// WithDependencies registers the dependencies checked by GET /health.
func WithDependencies(deps ...health.Pinger) Option {
	return func(s *Server) { s.checker = health.NewChecker(deps...) }
}

// WithTelemetry sets the logger.
func WithTelemetry(t telemetry.Set) Option {
	return func(s *Server) { s.tel = t }
}

// New returns a Server.
func New(a Analyses, b Bundler, opts ...Option) *Server {
	s := &Server{analyses: a, bundler: b, info: Info{Version: "1.0.0"}, started: time.Now()}
	for _, o := range opts {
		o(s)
	}
	if s.checker == nil {
		s.checker = health.NewChecker()
	}
	s.tel = s.tel.WithDefaults()
	return s
}

// Mount registers the routes on mux.
func (s *Server) Mount(mux goahttp.Muxer) {
	mux.Handle(http.MethodGet, "/", s.root)
	mux.Handle(http.MethodGet, "/health", s.health)
	mux.Handle(http.MethodPost, "/api/search", s.search)
	mux.Handle(http.MethodPost, "/api/prices", s.prices)
	mux.Handle(http.MethodPost, "/api/reviews", s.reviews)
	mux.Handle(http.MethodPost, "/api/specs", s.specs)
	mux.Handle(http.MethodPost, "/api/virtual-tryon", s.virtualTryOn)
}

// Handler returns a muxer with every route mounted behind the CORS layer.
func (s *Server) Handler() http.Handler {
	mux := goahttp.NewMuxer()
	s.Mount(mux)
	return CORS(mux)
}

// CORS allows any origin and answers preflight requests.
func CORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hd := w.Header()
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		hd.Set("Access-Control-Allow-Origin", origin)
		hd.Set("Access-Control-Allow-Credentials", "true")
		hd.Add("Vary", "Origin")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			hd.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
				hd.Set("Access-Control-Allow-Headers", req)
			} else {
				hd.Set("Access-Control-Allow-Headers", "*")
			}
			hd.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit() string {
	if s.info.RequestsPerMinute <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("~%d requests/minute", s.info.APIKeys*s.info.RequestsPerMinute)
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	s.encode(r.Context(), w, http.StatusOK, rootBody{
		Message:   "FashnAI Fashion Comparison API",
		Version:   s.info.Version,
		APIKeys:   s.info.APIKeys,
		RateLimit: s.rateLimit(),
		Endpoints: map[string]string{
			"health":        "/health",
			"search":        "/api/search (POST)",
			"prices":        "/api/prices (POST)",
			"reviews":       "/api/reviews (POST)",
			"specs":         "/api/specs (POST)",
			"virtual_tryon": "/api/virtual-tryon (POST)",
		},
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	h, healthy := s.checker.Check(r.Context())
	body := healthBody{
		Status:       "healthy",
		Service:      ServiceName,
		APIKeys:      s.info.APIKeys,
		Uptime:       int64(time.Since(s.started).Seconds()),
		Dependencies: map[string]string{},
	}
	if h != nil && h.Status != nil {
		body.Dependencies = h.Status
	}
	status := http.StatusOK
	if !healthy {
		body.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	s.encode(r.Context(), w, status, body)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	url, ok := s.decodeURL(w, r)
	if !ok {
		return
	}
	s.tel.Logger.Info(r.Context(), "starting comprehensive analysis", "url", url)
	b, err := s.bundler.Analyze(r.Context(), url)
	if err != nil {
		s.fail(r.Context(), w, "Analysis failed", err)
		return
	}
	s.encode(r.Context(), w, http.StatusOK, b)
}

func (s *Server) prices(w http.ResponseWriter, r *http.Request) {
	url, ok := s.decodeURL(w, r)
	if !ok {
		return
	}
	out, err := s.analyses.ComparePrices(r.Context(), url)
	s.reply(r.Context(), w, "Price fetch failed", out.Value, out.Status, err)
}

func (s *Server) reviews(w http.ResponseWriter, r *http.Request) {
	url, ok := s.decodeURL(w, r)
	if !ok {
		return
	}
	out, err := s.analyses.AnalyzeReviews(r.Context(), url)
	s.reply(r.Context(), w, "Review analysis failed", out.Value, out.Status, err)
}

func (s *Server) specs(w http.ResponseWriter, r *http.Request) {
	url, ok := s.decodeURL(w, r)
	if !ok {
		return
	}
	out, err := s.analyses.ExtractSpecifications(r.Context(), url)
	s.reply(r.Context(), w, "Specification extraction failed", out.Value, out.Status, err)
}

func (s *Server) virtualTryOn(w http.ResponseWriter, r *http.Request) {
	var body tryOnRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ProductURL) == "" {
		s.encode(r.Context(), w, http.StatusBadRequest, errorBody{Detail: agents.ErrEmptyURL.Error()})
		return
	}
	sess, err := s.analyses.VirtualTryOn(r.Context(), tryon.Request{
		ProductURL:   body.ProductURL,
		User:         tryon.UserProfile{Size: body.UserSize, Height: body.UserHeight, BodyType: body.UserBodyType},
		UserImage:    body.UserImageBase64,
		ProductSpecs: body.ProductSpecs,
	})
	if err != nil {
		s.fail(r.Context(), w, "Virtual try-on failed", err)
		return
	}
	s.tel.Logger.Info(r.Context(), "virtual try-on complete", "url", sess.ProductURL, "state", string(sess.State), "session_id", sess.ID)
	s.encode(r.Context(), w, http.StatusOK, sess.Result)
}

func (s *Server) reply(ctx context.Context, w http.ResponseWriter, prefix string, v any, st invoke.Status, err error) {
	if err != nil {
		s.fail(ctx, w, prefix, err)
		return
	}
	if st == invoke.StatusDegraded {
		w.Header().Set("X-Analysis-Status", string(st))
	}
	s.encode(ctx, w, http.StatusOK, v)
}

// decodeURL decodes a {product_url} body. It writes a 400 response and
// returns false when the body is invalid or the URL is empty.
func (s *Server) decodeURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body productRequest
	if !s.decode(w, r, &body) {
		return "", false
	}
	url := strings.TrimSpace(body.ProductURL)
	if url == "" {
		s.encode(r.Context(), w, http.StatusBadRequest, errorBody{Detail: agents.ErrEmptyURL.Error()})
		return "", false
	}
	return url, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := goahttp.RequestDecoder(r).Decode(v); err != nil {
		detail := "invalid request body: " + err.Error()
		if errors.Is(err, io.EOF) {
			detail = "request body is required"
		}
		s.encode(r.Context(), w, http.StatusBadRequest, errorBody{Detail: detail})
		return false
	}
	return true
}

func (s *Server) fail(ctx context.Context, w http.ResponseWriter, prefix string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, agents.ErrEmptyURL) || errors.Is(err, coordinator.ErrEmptyURL) || errors.Is(err, tryon.ErrEmptyURL) {
		status = http.StatusBadRequest
	}
	s.tel.Logger.Error(ctx, strings.ToLower(prefix), "err", err)
	s.encode(ctx, w, status, errorBody{Detail: fmt.Sprintf("%s: %v", prefix, err)})
}

func (s *Server) encode(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := goahttp.ResponseEncoder(ctx, w).Encode(v); err != nil {
		s.tel.Logger.Error(ctx, "failed to encode response", "err", err)
	}
}
