package extract

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/fetcher"
	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/monitoring"
)

// Web extracts recipes from ordinary pages: structured data first, then the
// completion service.
type Web struct {
	fetcher fetcher.Fetcher
	ai      *AI
	metrics *monitoring.Metrics
}

// NewWeb creates the web pipeline. ai and metrics may be nil.
func NewWeb(f fetcher.Fetcher, ai *AI, metrics *monitoring.Metrics) *Web {
	return &Web{fetcher: f, ai: ai, metrics: metrics}
}

// Extract fetches pageURL and runs the tiers in order. Failures are *Error.
func (w *Web) Extract(ctx context.Context, pageURL string, progress Progress) (*model.Recipe, error) {
	log := zap.L().With(zap.String("url", pageURL))

	progress.emit(StepFetchingPage)
	page, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Warn("extract: page fetch failed", zap.Error(err))
		return nil, Fail(KindFetchFailed, MsgFetchFailed, err)
	}

	progress.emit(StepLookingForData)
	sr := FromHTML(page.Body)
	if sr.Recipe != nil {
		w.metrics.ObserveTier(monitoring.TierStructured, monitoring.ResultHit)
		return sr.Recipe, nil
	}
	w.metrics.ObserveTier(monitoring.TierStructured, monitoring.ResultMiss)

	if page.Blocked() && !sr.Found {
		log.Warn("extract: page is a bot challenge", zap.String("block", string(page.Block)))
		return nil, Fail(KindFetchFailed, MsgFetchFailed,
			eris.Errorf("extract: blocked by %s", page.Block))
	}

	if w.ai.Enabled() {
		progress.emit(StepExtractingWithAI)
		r, err := w.ai.RecipeFromPage(ctx, page.Body, page.URL)
		switch {
		case err == nil:
			w.metrics.ObserveTier(monitoring.TierAI, monitoring.ResultHit)
			return r, nil
		case errors.Is(err, context.Canceled):
			return nil, err
		case errors.Is(err, ErrAINoRecipe):
			w.metrics.ObserveTier(monitoring.TierAI, monitoring.ResultMiss)
			log.Debug("extract: completion found no recipe")
		default:
			w.metrics.ObserveTier(monitoring.TierAI, monitoring.ResultError)
			log.Warn("extract: completion tier failed", zap.Error(err))
		}
	}

	if sr.Found {
		return nil, Fail(KindIncompleteRecipe, MsgIncomplete, nil)
	}
	return nil, Fail(KindNoRecipeFound, MsgNoRecipe, nil)
}
