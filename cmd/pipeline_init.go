package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/recipe-cli/internal/cache"
	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/extract"
	"github.com/sells-group/recipe-cli/internal/fetcher"
	"github.com/sells-group/recipe-cli/internal/monitoring"
	"github.com/sells-group/recipe-cli/internal/pipeline"
	"github.com/sells-group/recipe-cli/internal/quota"
	"github.com/sells-group/recipe-cli/internal/resilience"
	"github.com/sells-group/recipe-cli/internal/store"
	anthropicpkg "github.com/sells-group/recipe-cli/pkg/anthropic"
	"github.com/sells-group/recipe-cli/pkg/youtube"
)

// pipelineEnv holds the store, clients and orchestrator shared by the
// serve and extract commands.
type pipelineEnv struct {
	Store        store.Store
	Cache        *cache.Cache
	Quota        *quota.Tracker
	Web          *extract.Web
	Orchestrator *pipeline.Orchestrator
	Breakers     *resilience.Registry
	Metrics      *monitoring.Metrics
	Checker      *monitoring.Checker
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline wires the store, upstream clients, breakers and metrics into
// an orchestrator. Callers should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config, mode string) (*pipelineEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}

	var metrics *monitoring.Metrics
	if c.Metrics.Enabled {
		metrics = monitoring.NewMetrics(c.Metrics.Namespace)
	}

	settings := resilience.FromConfig(c.Breaker)
	breakers := resilience.NewRegistry(settings)
	// Both upstreams report in /health and /metrics even when unconfigured.
	aiBreaker := breakers.Get(resilience.ServiceAnthropic)
	ytBreaker := breakers.Get(resilience.ServiceYouTube)
	if metrics != nil {
		if err := metrics.Register(monitoring.NewBreakerCollector(c.Metrics.Namespace, breakers)); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "register breaker collector")
		}
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.Fetch.UserAgent,
		Timeout:      c.Fetch.Timeout(),
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		HostRate:     rate.Limit(c.Fetch.HostRate),
		HostBurst:    c.Fetch.HostBurst,
	})

	// Completion service (optional: disables the AI and transcript tiers).
	var ai *extract.AI
	if c.Anthropic.Enabled() {
		ai = extract.NewAI(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic, aiBreaker)
		zap.L().Info("anthropic fallback enabled", zap.String("model", c.Anthropic.Model))
	} else {
		zap.L().Debug("RECIPE_ANTHROPIC_KEY not set, AI fallback disabled")
	}

	// Video metadata service (optional: video URLs fail with a clear message).
	var yt youtube.Client
	if c.YouTube.Key != "" {
		yt = youtube.NewClient(c.YouTube.Key,
			youtube.WithBaseURL(c.YouTube.BaseURL),
			youtube.WithWatchURL(c.YouTube.WatchURL),
		)
	} else {
		zap.L().Debug("RECIPE_YOUTUBE_KEY not set, video extraction disabled")
	}

	web := extract.NewWeb(f, ai, metrics)
	video := extract.NewVideo(extract.VideoOptions{
		Client:  yt,
		Fetcher: f,
		AI:      ai,
		Breaker: ytBreaker,
		Timeout: c.YouTube.Timeout(),
		Metrics: metrics,
	})

	ch := cache.New(st, c.Cache.TTL())
	qt := quota.New(st, c.Quota)

	return &pipelineEnv{
		Store:        st,
		Cache:        ch,
		Quota:        qt,
		Web:          web,
		Orchestrator: pipeline.New(ch, qt, web, video, metrics),
		Breakers:     breakers,
		Metrics:      metrics,
		Checker:      monitoring.NewChecker(st, breakers, metrics),
	}, nil
}
