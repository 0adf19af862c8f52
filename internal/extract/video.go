package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/fetcher"
	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/monitoring"
	"github.com/sells-group/recipe-cli/internal/normalize"
	"github.com/sells-group/recipe-cli/internal/resilience"
	"github.com/sells-group/recipe-cli/pkg/youtube"
)

// VideoOptions wires the video pipeline. Client may be nil when no API key
// is configured; AI, Breaker and Metrics may be nil.
type VideoOptions struct {
	Client  youtube.Client
	Fetcher fetcher.Fetcher
	AI      *AI
	Breaker *resilience.Breaker
	Timeout time.Duration
	Metrics *monitoring.Metrics
}

// Video extracts recipes from video-platform URLs using the video's
// description, an optional linked recipe page and the transcript.
type Video struct {
	client  youtube.Client
	fetcher fetcher.Fetcher
	ai      *AI
	breaker *resilience.Breaker
	timeout time.Duration
	metrics *monitoring.Metrics
}

// NewVideo creates the video pipeline.
func NewVideo(opts VideoOptions) *Video {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Video{
		client:  opts.Client,
		fetcher: opts.Fetcher,
		ai:      opts.AI,
		breaker: opts.Breaker,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
	}
}

// Extract runs the video pipeline for videoID. The result always carries
// instructions; an ingredients-only outcome is IncompleteRecipe.
func (v *Video) Extract(ctx context.Context, videoID string, progress Progress) (*model.Recipe, error) {
	log := zap.L().With(zap.String("video_id", videoID))

	if v.client == nil {
		return nil, Fail(KindUpstreamServiceUnavailable, MsgVideoNotConfigured, nil)
	}

	progress.emit(StepFetchingVideo)
	video, err := v.getVideo(ctx, videoID)
	switch {
	case errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		v.metrics.ObserveTier(monitoring.TierVideo, monitoring.ResultError)
		log.Warn("extract: video metadata unavailable", zap.Error(err))
		return nil, Fail(KindUpstreamServiceUnavailable, MsgVideoUnavailable, err)
	case video == nil:
		v.metrics.ObserveTier(monitoring.TierVideo, monitoring.ResultMiss)
		return nil, Fail(KindFetchFailed, MsgVideoNotFound, youtube.ErrVideoNotFound)
	}
	v.metrics.ObserveTier(monitoring.TierVideo, monitoring.ResultHit)

	progress.emit(StepParsingDescription)
	desc := ParseDescription(video.Description)
	ingredients, instructions := desc.Ingredients, desc.Instructions

	if len(ingredients) == 0 && desc.RecipeLink != "" {
		progress.emit(StepFetchingLinked)
		ing, ins, err := v.linkedRecipe(ctx, desc.RecipeLink, progress)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if len(ing) > 0 || len(ins) > 0 {
			ingredients, instructions = ing, ins
		}
	}

	if len(ingredients) > 0 && len(instructions) == 0 && v.ai.Enabled() {
		steps, err := v.transcriptInstructions(ctx, video, ingredients, progress)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		instructions = steps
	}

	if len(instructions) == 0 {
		if len(ingredients) > 0 {
			return nil, Fail(KindIncompleteRecipe, MsgVideoNoInstructions, nil)
		}
		return nil, Fail(KindNoRecipeFound, MsgVideoNoInstructions, nil)
	}

	r := &model.Recipe{
		Title:        normalize.DecodeEntities(video.Title),
		Ingredients:  ingredients,
		Instructions: instructions,
		Image:        model.StringPtr(video.Thumbnails.Best()),
		Source:       model.SourceVideoPlatform,
	}
	return r.Finalize(), nil
}

// getVideo returns nil, nil for a missing video so that a 404-like answer
// does not count against the breaker.
func (v *Video) getVideo(ctx context.Context, id string) (*youtube.Video, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	return resilience.Do(ctx, v.breaker, func(ctx context.Context) (*youtube.Video, error) {
		video, err := v.client.GetVideo(ctx, id)
		if errors.Is(err, youtube.ErrVideoNotFound) {
			return nil, nil
		}
		return video, upstream(err)
	})
}

// linkedRecipe follows a description link. Structured data is used only
// when it lists ingredients; otherwise the completion service gets a try.
func (v *Video) linkedRecipe(ctx context.Context, link string, progress Progress) ([]string, []string, error) {
	log := zap.L().With(zap.String("link", link))
	if v.fetcher == nil {
		return nil, nil, nil
	}
	if _, err := ValidateURL(link); err != nil {
		return nil, nil, nil
	}

	page, err := v.fetcher.Fetch(ctx, link)
	if err != nil {
		v.metrics.ObserveTier(monitoring.TierLinked, monitoring.ResultError)
		log.Warn("extract: linked recipe fetch failed", zap.Error(err))
		return nil, nil, ctxErr(err)
	}

	if sr := FromHTML(page.Body); sr.Recipe != nil && len(sr.Recipe.Ingredients) > 0 {
		v.metrics.ObserveTier(monitoring.TierLinked, monitoring.ResultHit)
		return sr.Recipe.Ingredients, sr.Recipe.Instructions, nil
	}
	v.metrics.ObserveTier(monitoring.TierLinked, monitoring.ResultMiss)

	if !v.ai.Enabled() || page.Blocked() {
		return nil, nil, nil
	}
	progress.emit(StepExtractingWithAI)
	r, err := v.ai.RecipeFromPage(ctx, page.Body, page.URL)
	switch {
	case err == nil:
		v.metrics.ObserveTier(monitoring.TierAI, monitoring.ResultHit)
		return r.Ingredients, r.Instructions, nil
	case errors.Is(err, ErrAINoRecipe):
		v.metrics.ObserveTier(monitoring.TierAI, monitoring.ResultMiss)
		return nil, nil, nil
	default:
		v.metrics.ObserveTier(monitoring.TierAI, monitoring.ResultError)
		log.Warn("extract: completion on linked recipe failed", zap.Error(err))
		return nil, nil, ctxErr(err)
	}
}

func (v *Video) transcriptInstructions(ctx context.Context, video *youtube.Video, ingredients []string, progress Progress) ([]string, error) {
	log := zap.L().With(zap.String("video_id", video.ID))

	progress.emit(StepFetchingTranscript)
	transcript, err := v.getTranscript(ctx, video.ID)
	if err != nil {
		v.metrics.ObserveTier(monitoring.TierTranscript, monitoring.ResultError)
		log.Warn("extract: transcript unavailable", zap.Error(err))
		return nil, ctxErr(err)
	}
	if transcript == "" {
		v.metrics.ObserveTier(monitoring.TierTranscript, monitoring.ResultMiss)
		return nil, nil
	}

	progress.emit(StepExtractingVideo)
	steps, err := v.ai.InstructionsFromTranscript(ctx, transcript, video.Title, ingredients)
	if err != nil {
		v.metrics.ObserveTier(monitoring.TierTranscript, monitoring.ResultError)
		log.Warn("extract: transcript completion failed", zap.Error(err))
		return nil, ctxErr(err)
	}
	if len(steps) == 0 {
		v.metrics.ObserveTier(monitoring.TierTranscript, monitoring.ResultMiss)
		return nil, nil
	}
	v.metrics.ObserveTier(monitoring.TierTranscript, monitoring.ResultHit)
	return steps, nil
}

func (v *Video) getTranscript(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	return resilience.Do(ctx, v.breaker, func(ctx context.Context) (string, error) {
		text, err := v.client.GetTranscript(ctx, id)
		if errors.Is(err, youtube.ErrNoTranscript) {
			return "", nil
		}
		return text, upstream(err)
	})
}

// upstream attaches the HTTP status so the breaker can ignore client errors.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	if code := youtube.StatusCode(err); code != 0 {
		return resilience.NewUpstreamError(err, code)
	}
	return err
}

// ctxErr keeps caller cancellation and drops everything else; tier failures
// are logged, not propagated.
func ctxErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return nil
}
