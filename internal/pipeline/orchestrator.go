package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/cache"
	"github.com/sells-group/recipe-cli/internal/events"
	"github.com/sells-group/recipe-cli/internal/extract"
	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/monitoring"
	"github.com/sells-group/recipe-cli/internal/quota"
)

// StepFromCache is shown when a cached recipe short-circuits the request.
const StepFromCache = "Found in cache!"

// Outcome labels.
const (
	OutcomeComplete = "complete"
	OutcomeCached   = "cached"
	OutcomeLimited  = "limit_reached"
	OutcomeError    = "error"
)

// ErrLimitReached is the Outcome error for a refused request.
var ErrLimitReached = eris.New("pipeline: quota limit reached")

// Extractor is one extraction path. Web takes a page URL, Video a video id.
type Extractor interface {
	Extract(ctx context.Context, target string, progress extract.Progress) (*model.Recipe, error)
}

// Request is one extraction for one identity.
type Request struct {
	URL      string
	Identity quota.Identity
}

// Outcome summarizes what Run emitted.
type Outcome struct {
	Recipe *model.Recipe
	Cached bool
	Usage  *quota.Usage
	Status quota.Status
	Err    error
}

// Orchestrator sequences cache, quota and the extractors for a request.
type Orchestrator struct {
	cache   *cache.Cache
	quota   *quota.Tracker
	web     Extractor
	video   Extractor
	metrics *monitoring.Metrics
}

// New creates an orchestrator. metrics may be nil.
func New(c *cache.Cache, q *quota.Tracker, web, video Extractor, metrics *monitoring.Metrics) *Orchestrator {
	return &Orchestrator{cache: c, quota: q, web: web, video: video, metrics: metrics}
}

// Run processes req and emits progress plus exactly one terminal event on em.
// Steps run in order: cache, quota, extraction, cache write, quota increment.
// A cancelled context never writes to the cache or the quota store.
func (o *Orchestrator) Run(ctx context.Context, req Request, em *events.Emitter) Outcome {
	start := time.Now()
	log := zap.L().With(
		zap.String("url", req.URL),
		zap.Bool("authenticated", req.Identity.Authenticated),
	)

	if _, err := extract.ValidateURL(req.URL); err != nil {
		return o.fail(em, log, start, err)
	}

	entry, err := o.cache.Get(ctx, req.URL)
	if err != nil {
		return o.fail(em, log, start, err)
	}
	if entry != nil {
		o.metrics.ObserveTier(monitoring.TierCache, monitoring.ResultHit)
		o.progress(em)(StepFromCache)
		r := entry.Recipe
		o.send(log, em.Complete(&r, true))
		o.metrics.ObserveExtraction(OutcomeCached, string(r.Source), time.Since(start))
		log.Info("pipeline: served from cache")
		return Outcome{Recipe: &r, Cached: true}
	}
	o.metrics.ObserveTier(monitoring.TierCache, monitoring.ResultMiss)

	status, err := o.quota.CheckLimit(ctx, req.Identity)
	if err != nil {
		if ctx.Err() != nil {
			return o.fail(em, log, start, ctx.Err())
		}
		// The store is degraded; extraction proceeds unmetered.
		log.Warn("pipeline: quota check failed", zap.Error(err))
	}
	if status.Limited {
		o.send(log, em.LimitReached(events.LimitReached{
			Message:         o.quota.LimitMessage(req.Identity.Authenticated),
			Current:         status.Current,
			Limit:           status.Limit,
			IsAuthenticated: req.Identity.Authenticated,
		}))
		o.metrics.ObserveQuotaLimited(req.Identity.Authenticated)
		o.metrics.ObserveExtraction(OutcomeLimited, "", time.Since(start))
		log.Info("pipeline: quota limit reached", zap.Int("current", status.Current), zap.Int("limit", status.Limit))
		return Outcome{Status: status, Err: ErrLimitReached}
	}

	r, err := o.dispatch(ctx, req.URL, o.progress(em))
	if err != nil {
		return o.fail(em, log, start, err)
	}
	if !r.Valid() {
		return o.fail(em, log, start, extract.Fail(extract.KindIncompleteRecipe, extract.MsgIncomplete, nil))
	}

	if err := ctx.Err(); err != nil {
		return o.fail(em, log, start, err)
	}
	// Write errors are logged by the cache and never fail the request.
	_ = o.cache.Put(ctx, req.URL, r)

	if err := ctx.Err(); err != nil {
		return o.fail(em, log, start, err)
	}
	out := Outcome{Recipe: r, Status: status}
	count, err := o.quota.Increment(ctx, req.Identity)
	if err != nil {
		log.Warn("pipeline: quota increment failed", zap.Error(err))
	} else {
		u := o.quota.UsageFor(req.Identity, count)
		out.Usage = &u
	}

	o.send(log, em.Complete(r, false))
	if out.Usage != nil {
		o.send(log, em.Usage(events.Usage(*out.Usage)))
	}
	o.metrics.ObserveExtraction(OutcomeComplete, string(r.Source), time.Since(start))
	log.Info("pipeline: extraction complete",
		zap.String("source", string(r.Source)),
		zap.Int("ingredients", len(r.Ingredients)),
		zap.Int("instructions", len(r.Instructions)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out
}

func (o *Orchestrator) dispatch(ctx context.Context, target string, progress extract.Progress) (*model.Recipe, error) {
	if id, ok := extract.VideoID(target); ok {
		if o.video == nil {
			return nil, extract.Fail(extract.KindUpstreamServiceUnavailable, extract.MsgVideoNotConfigured, nil)
		}
		return o.video.Extract(ctx, id, progress)
	}
	return o.web.Extract(ctx, target, progress)
}

func (o *Orchestrator) progress(em *events.Emitter) extract.Progress {
	return func(step string) {
		_ = em.Progress(step)
	}
}

func (o *Orchestrator) fail(em *events.Emitter, log *zap.Logger, start time.Time, err error) Outcome {
	kind := extract.KindOf(err)
	msg := extract.MessageOf(err)
	label := string(kind)
	var classified *extract.Error
	switch {
	case errors.As(err, &classified):
		log.Warn("pipeline: extraction failed", zap.String("kind", string(kind)), zap.Error(err))
	case errors.Is(err, context.DeadlineExceeded):
		kind, msg = extract.KindUpstreamServiceUnavailable, MsgTimeout
		label = string(kind)
	case errors.Is(err, context.Canceled):
		// A cancellation is not a failure kind; the frame carries no kind.
		log.Debug("pipeline: request cancelled")
		kind, msg, label = "", MsgCancelled, failureCancelled
	default:
		log.Warn("pipeline: extraction failed", zap.String("kind", string(kind)), zap.Error(err))
	}

	o.send(log, em.Error(string(kind), msg))
	o.metrics.ObserveFailure(label)
	o.metrics.ObserveExtraction(OutcomeError, "", time.Since(start))
	return Outcome{Err: err}
}

func (o *Orchestrator) send(log *zap.Logger, err error) {
	if err != nil {
		log.Debug("pipeline: event not delivered", zap.Error(err))
	}
}

// failureCancelled labels cancelled requests in the failure metrics.
const failureCancelled = "cancelled"

// Terminal messages that are not extraction failures.
const (
	MsgTimeout   = "The request timed out. Please try again."
	MsgCancelled = "Request cancelled"
)
