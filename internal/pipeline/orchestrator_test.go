package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recipe-cli/internal/cache"
	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/events"
	"github.com/sells-group/recipe-cli/internal/extract"
	"github.com/sells-group/recipe-cli/internal/fetcher"
	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/monitoring"
	"github.com/sells-group/recipe-cli/internal/quota"
	"github.com/sells-group/recipe-cli/internal/store"
	"github.com/sells-group/recipe-cli/pkg/youtube"
	ytmocks "github.com/sells-group/recipe-cli/pkg/youtube/mocks"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

const teaURL = "https://example.com/tea"

const teaHTML = `<html><head>
<script type="application/ld+json">{"@type":"Recipe","name":"Tea","recipeIngredient":["1 tsp tea"],"recipeInstructions":"1. Steep"}</script>
</head><body></body></html>`

const bareHTML = `<html><head><title>About us</title></head><body><p>We like food.</p></body></html>`

// pages is a canned fetcher.
type pages struct {
	mu    sync.Mutex
	body  map[string]string
	calls int
}

func (p *pages) Fetch(_ context.Context, url string) (*fetcher.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	b, ok := p.body[url]
	if !ok {
		return nil, &fetcher.StatusError{URL: url, StatusCode: 404}
	}
	return &fetcher.Page{URL: url, FinalURL: url, StatusCode: 200, Body: b}, nil
}

// extractorFunc adapts a function to Extractor.
type extractorFunc func(ctx context.Context, target string, progress extract.Progress) (*model.Recipe, error)

func (f extractorFunc) Extract(ctx context.Context, target string, progress extract.Progress) (*model.Recipe, error) {
	return f(ctx, target, progress)
}

type harness struct {
	store   *store.MemoryStore
	cache   *cache.Cache
	quota   *quota.Tracker
	pages   *pages
	metrics *monitoring.Metrics
	orch    *Orchestrator
}

func newHarness(t *testing.T, limits config.QuotaConfig, video Extractor) *harness {
	t.Helper()
	clock := func() time.Time { return now }
	st := store.NewMemory()
	h := &harness{
		store:   st,
		cache:   cache.New(st, time.Hour, cache.WithClock(clock)),
		quota:   quota.New(st, limits, quota.WithClock(clock)),
		pages:   &pages{body: map[string]string{}},
		metrics: monitoring.NewMetrics("test"),
	}
	web := extract.NewWeb(h.pages, nil, h.metrics)
	h.orch = New(h.cache, h.quota, web, video, h.metrics)
	return h
}

func (h *harness) run(t *testing.T, url string, id quota.Identity) (Outcome, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	out := h.orch.Run(context.Background(), Request{URL: url, Identity: id}, events.NewEmitter(rec))
	return out, rec
}

func lastFrame(t *testing.T, rec *events.Recorder, v any) string {
	t.Helper()
	frames := rec.Frames()
	require.NotEmpty(t, frames)
	f := frames[len(frames)-1]
	require.NoError(t, json.Unmarshal(f.Data, v))
	return f.Name
}

func terminalCount(names []string) int {
	n := 0
	for _, name := range names {
		switch name {
		case events.NameComplete, events.NameError, events.NameLimitReached:
			n++
		}
	}
	return n
}

var anon = quota.Identity{ID: "token-1"}

func TestRun_StructuredDataEndToEnd(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{AnonymousLimit: 3, AuthenticatedLimit: 30}, nil)
	h.pages.body[teaURL] = teaHTML

	out, rec := h.run(t, teaURL, anon)
	require.NoError(t, out.Err)

	assert.Equal(t, []string{
		events.NameProgress, events.NameProgress, events.NameComplete, events.NameUsage,
	}, rec.Names())

	var c events.Complete
	require.NoError(t, json.Unmarshal(rec.Frames()[2].Data, &c))
	assert.Equal(t, "Tea", c.Recipe.Title)
	assert.Equal(t, []string{"1 tsp tea"}, c.Recipe.Ingredients)
	assert.Equal(t, []string{"Steep"}, c.Recipe.Instructions)
	assert.Equal(t, model.SourceWeb, c.Recipe.Source)
	assert.False(t, c.Cached)

	var u events.Usage
	assert.Equal(t, events.NameUsage, lastFrame(t, rec, &u))
	assert.Equal(t, events.Usage{Current: 1, Limit: 3, Remaining: 2}, u)

	entry, err := h.cache.Get(context.Background(), teaURL)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Tea", entry.Recipe.Title)
}

func TestRun_CacheHitBypassesQuota(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{AnonymousLimit: 1, AuthenticatedLimit: 30}, nil)
	ctx := context.Background()

	require.NoError(t, h.cache.Put(ctx, teaURL, &model.Recipe{
		Title: "Tea", Ingredients: []string{"1 tsp tea"}, Source: model.SourceWeb,
	}))
	_, err := h.quota.Increment(ctx, anon)
	require.NoError(t, err)

	out, rec := h.run(t, teaURL, anon)
	require.NoError(t, out.Err)
	assert.True(t, out.Cached)
	assert.Equal(t, []string{events.NameProgress, events.NameComplete}, rec.Names())

	var p events.Progress
	require.NoError(t, json.Unmarshal(rec.Frames()[0].Data, &p))
	assert.Equal(t, StepFromCache, p.Step)

	var c events.Complete
	lastFrame(t, rec, &c)
	assert.True(t, c.Cached)
	assert.Zero(t, h.pages.calls, "cache hit must not touch the network")

	st, err := h.quota.CheckLimit(ctx, anon)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Current, "cache hit must not consume quota")
}

func TestRun_QuotaOnlyChargedOnSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{AnonymousLimit: 1, AuthenticatedLimit: 30}, nil)
	h.pages.body[teaURL] = teaHTML

	for i := 0; i < 3; i++ {
		out, rec := h.run(t, "https://example.com/missing", anon)
		require.Error(t, out.Err)
		var e events.Error
		assert.Equal(t, events.NameError, lastFrame(t, rec, &e))
		assert.Equal(t, string(extract.KindFetchFailed), e.Kind)
		assert.Equal(t, extract.MsgFetchFailed, e.Message)
	}

	out, rec := h.run(t, teaURL, anon)
	require.NoError(t, out.Err)
	var u events.Usage
	lastFrame(t, rec, &u)
	assert.Equal(t, events.Usage{Current: 1, Limit: 1, Remaining: 0, IsLastFree: true}, u)

	h.pages.body["https://example.com/other"] = teaHTML
	out, rec = h.run(t, "https://example.com/other", anon)
	assert.ErrorIs(t, out.Err, ErrLimitReached)
	assert.Equal(t, []string{events.NameLimitReached}, rec.Names())

	var l events.LimitReached
	lastFrame(t, rec, &l)
	assert.Equal(t, events.LimitReached{
		Message: quota.LimitMessage(false, 30),
		Current: 1,
		Limit:   1,
	}, l)
}

func TestRun_NoStructuredDataWithoutAI(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{}, nil)
	h.pages.body[teaURL] = bareHTML

	out, rec := h.run(t, teaURL, anon)
	assert.Equal(t, extract.KindNoRecipeFound, extract.KindOf(out.Err))

	var e events.Error
	assert.Equal(t, events.NameError, lastFrame(t, rec, &e))
	assert.Equal(t, extract.MsgNoRecipe, e.Message)
	assert.NotContains(t, rec.Names(), events.NameUsage)

	rec2, err := h.quota.CheckLimit(context.Background(), anon)
	require.NoError(t, err)
	assert.Zero(t, rec2.Current)
}

func TestRun_VideoIngredientsOnlyIsError(t *testing.T) {
	t.Parallel()
	yt := ytmocks.NewMockClient(t)
	yt.On("GetVideo", mock.Anything, "dQw4w9WgXcQ").Return(&youtube.Video{
		ID:          "dQw4w9WgXcQ",
		Title:       "Pasta",
		Description: "Ingredients:\n- 200g spaghetti\n- 2 cloves garlic",
	}, nil).Once()

	h := newHarness(t, config.QuotaConfig{}, nil)
	h.orch.video = extract.NewVideo(extract.VideoOptions{Client: yt, Fetcher: h.pages})

	out, rec := h.run(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", anon)
	assert.Equal(t, extract.KindIncompleteRecipe, extract.KindOf(out.Err))
	assert.Equal(t, []string{events.NameProgress, events.NameProgress, events.NameError}, rec.Names())

	entry, err := h.cache.Get(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRun_VideoDispatch(t *testing.T) {
	t.Parallel()
	var gotID string
	video := extractorFunc(func(_ context.Context, id string, progress extract.Progress) (*model.Recipe, error) {
		gotID = id
		progress(extract.StepFetchingVideo)
		return &model.Recipe{
			Title:        "Pasta",
			Ingredients:  []string{"200g spaghetti"},
			Instructions: []string{"Boil"},
			Source:       model.SourceVideoPlatform,
		}, nil
	})
	h := newHarness(t, config.QuotaConfig{}, video)

	out, rec := h.run(t, "https://youtu.be/dQw4w9WgXcQ", quota.Identity{ID: "u1", Authenticated: true})
	require.NoError(t, out.Err)
	assert.Equal(t, "dQw4w9WgXcQ", gotID)
	assert.Equal(t, []string{events.NameProgress, events.NameComplete, events.NameUsage}, rec.Names())
	require.NotNil(t, out.Usage)
	assert.Equal(t, quota.Usage{Current: 1, Limit: 30, Remaining: 29, IsAuthenticated: true}, *out.Usage)
}

func TestRun_VideoNotConfigured(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{}, nil)

	out, rec := h.run(t, "https://youtu.be/dQw4w9WgXcQ", anon)
	assert.Equal(t, extract.KindUpstreamServiceUnavailable, extract.KindOf(out.Err))

	var e events.Error
	lastFrame(t, rec, &e)
	assert.Equal(t, extract.MsgVideoNotConfigured, e.Message)
}

func TestRun_InvalidURL(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{}, nil)

	tests := []struct {
		url  string
		want string
	}{
		{"", extract.MsgURLRequired},
		{"ftp://example.com/file", extract.MsgInvalidURL},
		{"not a url", extract.MsgInvalidURL},
	}
	for _, tt := range tests {
		out, rec := h.run(t, tt.url, anon)
		assert.Equal(t, extract.KindInvalidURL, extract.KindOf(out.Err), tt.url)
		var e events.Error
		lastFrame(t, rec, &e)
		assert.Equal(t, tt.want, e.Message)
	}
	assert.Zero(t, h.pages.calls)
}

func TestRun_CancelledBeforeWrites(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, config.QuotaConfig{}, nil)
	h.orch.web = extractorFunc(func(context.Context, string, extract.Progress) (*model.Recipe, error) {
		cancel()
		return &model.Recipe{Title: "Tea", Ingredients: []string{"1 tsp tea"}, Source: model.SourceWeb}, nil
	})

	rec := &events.Recorder{}
	out := h.orch.Run(ctx, Request{URL: teaURL, Identity: anon}, events.NewEmitter(rec))
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, []string{events.NameError}, rec.Names())
	assert.JSONEq(t, `{"message":"Request cancelled"}`, string(rec.Frames()[0].Data))

	entry, err := h.cache.Get(context.Background(), teaURL)
	require.NoError(t, err)
	assert.Nil(t, entry)

	q, err := h.store.GetQuota(context.Background(), anon.Key())
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestRun_TimeoutBecomesError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{}, nil)
	h.orch.web = extractorFunc(func(context.Context, string, extract.Progress) (*model.Recipe, error) {
		return nil, context.DeadlineExceeded
	})

	out, rec := h.run(t, teaURL, anon)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	var e events.Error
	lastFrame(t, rec, &e)
	assert.Equal(t, MsgTimeout, e.Message)
	assert.Equal(t, string(extract.KindUpstreamServiceUnavailable), e.Kind)
}

func TestRun_InvalidRecipeNeverCompletes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{}, nil)
	h.orch.web = extractorFunc(func(context.Context, string, extract.Progress) (*model.Recipe, error) {
		return &model.Recipe{Title: "Empty", Source: model.SourceAIFallback}, nil
	})

	out, rec := h.run(t, teaURL, anon)
	assert.Equal(t, extract.KindIncompleteRecipe, extract.KindOf(out.Err))
	assert.Equal(t, []string{events.NameError}, rec.Names())
}

type quotaDown struct {
	*store.MemoryStore
}

func (quotaDown) GetQuota(context.Context, string) (*store.QuotaRecord, error) {
	return nil, errors.New("connection reset")
}

func (quotaDown) IncrementQuota(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRun_QuotaStoreDownFailsOpen(t *testing.T) {
	t.Parallel()
	st := quotaDown{store.NewMemory()}
	p := &pages{body: map[string]string{teaURL: teaHTML}}
	orch := New(cache.New(st, time.Hour), quota.New(st, config.QuotaConfig{}), extract.NewWeb(p, nil, nil), nil, nil)

	rec := &events.Recorder{}
	out := orch.Run(context.Background(), Request{URL: teaURL, Identity: anon}, events.NewEmitter(rec))
	require.NoError(t, out.Err)
	assert.Nil(t, out.Usage)
	assert.Equal(t, []string{events.NameProgress, events.NameProgress, events.NameComplete}, rec.Names())
}

func TestRun_ExactlyOneTerminal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, config.QuotaConfig{AnonymousLimit: 2, AuthenticatedLimit: 30}, nil)
	h.pages.body[teaURL] = teaHTML
	h.pages.body["https://example.com/bare"] = bareHTML

	urls := []string{teaURL, teaURL, "https://example.com/bare", "https://example.com/missing", "", "https://example.com/bare"}
	for _, u := range urls {
		_, rec := h.run(t, u, anon)
		assert.Equal(t, 1, terminalCount(rec.Names()), "url %q produced %v", u, rec.Names())
	}
}
