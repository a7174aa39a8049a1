package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	goredis "github.com/redis/go-redis/v9"
	"goa.design/clue/health"
	"goa.design/clue/log"

	"github.com/fashnai/fashnai/analysis/agents"
	"github.com/fashnai/fashnai/analysis/coordinator"
	"github.com/fashnai/fashnai/analysis/server"
	"github.com/fashnai/fashnai/config"
	"github.com/fashnai/fashnai/features/cache"
	"github.com/fashnai/fashnai/features/cache/memory"
	rediscache "github.com/fashnai/fashnai/features/cache/redis"
	"github.com/fashnai/fashnai/features/images/extract"
	"github.com/fashnai/fashnai/features/images/gemini"
	"github.com/fashnai/fashnai/features/model/anthropic"
	"github.com/fashnai/fashnai/features/model/bedrock"
	"github.com/fashnai/fashnai/features/model/middleware"
	"github.com/fashnai/fashnai/features/model/openai"
	"github.com/fashnai/fashnai/features/tools/websearch"
	"github.com/fashnai/fashnai/runtime/agent/invoke"
	"github.com/fashnai/fashnai/runtime/agent/model"
	"github.com/fashnai/fashnai/runtime/agent/telemetry"
	"github.com/fashnai/fashnai/runtime/credentials"
)

// version is set at build time.
var version = "1.0.0"

func main() {
	var (
		configF   = flag.String("config", "", "Path to an optional YAML configuration file")
		envFileF  = flag.String("env-file", config.DefaultEnvFile, "Path to the dotenv file")
		httpPortF = flag.String("http-port", "", "HTTP port (overrides HTTP_ADDR port)")
		dbgF      = flag.Bool("debug", false, "Log request and response bodies")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	cfg, err := config.Load(config.Options{File: *configF, EnvFile: *envFileF})
	if err != nil {
		log.Fatal(ctx, err)
	}
	if *dbgF {
		cfg.Debug = true
	}
	if *httpPortF != "" {
		h, _, err := net.SplitHostPort(cfg.HTTPAddr)
		if err != nil {
			log.Fatalf(ctx, err, "invalid HTTP address %q", cfg.HTTPAddr)
		}
		cfg.HTTPAddr = net.JoinHostPort(h, *httpPortF)
	}
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(ctx, err)
	}
	log.Print(ctx,
		log.KV{K: "http-addr", V: cfg.HTTPAddr},
		log.KV{K: "provider", V: cfg.Model.Provider},
		log.KV{K: "model", V: cfg.Model.ID},
		log.KV{K: "api-keys", V: cfg.ModelKeys.Len()})

	tel := telemetry.NewClueSet()
	httpClient := &http.Client{Timeout: 30 * time.Second}

	// Model client: one rate limited client per API key in rotation.
	var llm model.Client
	{
		llm, err = newModelClient(ctx, cfg)
		if err != nil {
			log.Fatalf(ctx, err, "failed to build %s model client", cfg.Model.Provider)
		}
		log.Printf(ctx, "FashnAI API starting with %d %s API key(s)", cfg.ModelKeys.Len(), cfg.Model.Provider)
		if n := cfg.Capacity(); n > 0 {
			log.Printf(ctx, "Rate limit capacity: ~%d requests/minute", n)
		} else {
			log.Printf(ctx, "Client-side rate limiting disabled")
		}
	}

	// Specification cache shared by the specs endpoint and the try-on pipeline.
	var (
		specs cache.SpecCache
		deps  []health.Pinger
	)
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		rc := rediscache.New(rdb, cfg.SpecCacheTTL)
		specs, deps = rc, append(deps, rc)
	} else {
		specs = memory.New(memory.WithTTL(cfg.SpecCacheTTL))
	}

	svcCfg := agents.Config{
		Model:      llm,
		ModelID:    cfg.Model.ID,
		HTTPClient: httpClient,
		SpecCache:  specs,
		Extractor:  extract.New(extract.WithHTTPClient(httpClient), extract.WithLogger(tel.Logger)),
		Invoke:     invoke.Config{MaxRetries: cfg.MaxRetries},
		Telemetry:  tel,
	}
	if cfg.Search.SerperAPIKey != "" {
		svcCfg.Search = websearch.New(credentials.NewPool(cfg.Search.SerperAPIKey), websearch.WithHTTPClient(httpClient))
	} else {
		log.Printf(ctx, "SERPER_API_KEY not set, agents run without web search")
	}
	if cfg.GeminiKeys.Len() > 0 {
		gen, err := gemini.New(ctx, cfg.GeminiKeys, gemini.WithModel(cfg.Image.ModelID))
		if err != nil {
			log.Fatalf(ctx, err, "failed to build image generator")
		}
		svcCfg.Generator = gen
	} else {
		log.Printf(ctx, "GEMINI_API_KEY not set, virtual try-on is text only")
	}
	svc, err := agents.NewService(svcCfg)
	if err != nil {
		log.Fatal(ctx, err)
	}
	coord := coordinator.New(svc, coordinator.WithBranchTimeout(cfg.BranchTimeout), coordinator.WithTelemetry(tel))
	srv := server.New(svc, coord,
		server.WithInfo(server.Info{Version: version, APIKeys: cfg.ModelKeys.Len(), RequestsPerMinute: cfg.Model.RequestsPerMinute}),
		server.WithDependencies(deps...),
		server.WithTelemetry(tel))

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)

	handleHTTPServer(ctx, cfg.HTTPAddr, srv, &wg, errc, cfg.Debug)

	log.Printf(ctx, "exiting (%v)", <-errc)
	cancel()
	wg.Wait()
	log.Printf(ctx, "exited")
}

func newModelClient(ctx context.Context, cfg *config.Config) (model.Client, error) {
	rpm := float64(cfg.Model.RequestsPerMinute)
	switch cfg.Model.Provider {
	case config.ProviderAnthropic:
		return middleware.Rotate(cfg.ModelKeys, rpm, func(key string) (model.Client, error) {
			return anthropic.NewFromAPIKey(key, cfg.Model.ID)
		})
	case config.ProviderOpenAI:
		return middleware.Rotate(cfg.ModelKeys, rpm, func(key string) (model.Client, error) {
			return openai.NewFromAPIKey(key, cfg.Model.ID)
		})
	case config.ProviderBedrock:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Model.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Model.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		c, err := bedrock.New(bedrock.Options{
			Runtime:      bedrockruntime.NewFromConfig(awsCfg),
			DefaultModel: cfg.Model.ID,
		})
		if err != nil {
			return nil, err
		}
		if rpm <= 0 {
			return c, nil
		}
		return middleware.NewAdaptiveRateLimiter(rpm, rpm).Middleware()(c), nil
	}
	return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
}
