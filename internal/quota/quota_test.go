package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/store"
)

var (
	march14 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	april2  = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) GetQuota(context.Context, string) (*store.QuotaRecord, error) {
	return nil, errors.New("timeout")
}

func (failingStore) IncrementQuota(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("timeout")
}

func newTracker(t *testing.T, clk *clock) *Tracker {
	t.Helper()
	return New(store.NewMemory(), config.QuotaConfig{AnonymousLimit: 3, AuthenticatedLimit: 30}, WithClock(clk.Now))
}

func TestPeriodStart(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"mid month", march14, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"first instant", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"non utc", time.Date(2026, 4, 1, 1, 0, 0, 0, time.FixedZone("CET", 2*3600)), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"december", time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC), time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.want.Equal(PeriodStart(tt.in)), "got %s", PeriodStart(tt.in))
		})
	}
}

func TestIdentityKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "user:42", Identity{ID: "42", Authenticated: true}.Key())
	assert.Equal(t, "anon:42", Identity{ID: "42"}.Key())
}

func TestTracker_Limits(t *testing.T) {
	t.Parallel()
	tr := New(store.NewMemory(), config.QuotaConfig{})
	assert.Equal(t, DefaultAnonymousLimit, tr.Limit(Identity{ID: "a"}))
	assert.Equal(t, DefaultAuthenticatedLimit, tr.Limit(Identity{ID: "u", Authenticated: true}))
}

func TestTracker_CheckAndIncrement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &clock{now: march14}
	tr := newTracker(t, clk)
	anon := Identity{ID: "tok"}

	st, err := tr.CheckLimit(ctx, anon)
	require.NoError(t, err)
	assert.Equal(t, Status{Limited: false, Current: 0, Limit: 3}, st)

	for i := 1; i <= 3; i++ {
		n, err := tr.Increment(ctx, anon)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	st, err = tr.CheckLimit(ctx, anon)
	require.NoError(t, err)
	assert.Equal(t, Status{Limited: true, Current: 3, Limit: 3}, st)

	// Same token as a signed-in user is a different identity.
	st, err = tr.CheckLimit(ctx, Identity{ID: "tok", Authenticated: true})
	require.NoError(t, err)
	assert.False(t, st.Limited)
	assert.Equal(t, 30, st.Limit)
}

func TestTracker_PeriodRollover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &clock{now: march14}
	tr := newTracker(t, clk)
	anon := Identity{ID: "tok"}

	for i := 0; i < 3; i++ {
		_, err := tr.Increment(ctx, anon)
		require.NoError(t, err)
	}

	clk.Set(april2)
	st, err := tr.CheckLimit(ctx, anon)
	require.NoError(t, err)
	assert.False(t, st.Limited)
	assert.Equal(t, 0, st.Current)

	n, err := tr.Increment(ctx, anon)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTracker_StoreErrors(t *testing.T) {
	t.Parallel()
	tr := New(failingStore{store.NewMemory()}, config.QuotaConfig{})

	st, err := tr.CheckLimit(context.Background(), Identity{ID: "tok"})
	assert.ErrorContains(t, err, "quota: check limit")
	assert.Equal(t, 3, st.Limit)

	_, err = tr.Increment(context.Background(), Identity{ID: "tok"})
	assert.ErrorContains(t, err, "quota: increment")
}

func TestTracker_UsageFor(t *testing.T) {
	t.Parallel()
	tr := New(store.NewMemory(), config.QuotaConfig{AnonymousLimit: 3, AuthenticatedLimit: 30})

	tests := []struct {
		name    string
		id      Identity
		current int
		want    Usage
	}{
		{"anon first", Identity{ID: "a"}, 1, Usage{Current: 1, Limit: 3, Remaining: 2}},
		{"anon last", Identity{ID: "a"}, 3, Usage{Current: 3, Limit: 3, Remaining: 0, IsLastFree: true}},
		{"anon over", Identity{ID: "a"}, 5, Usage{Current: 5, Limit: 3, Remaining: 0, IsLastFree: true}},
		{"user last", Identity{ID: "u", Authenticated: true}, 30, Usage{Current: 30, Limit: 30, Remaining: 0, IsAuthenticated: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tr.UsageFor(tt.id, tt.current))
		})
	}
}

func TestLimitMessage(t *testing.T) {
	t.Parallel()
	assert.Contains(t, LimitMessage(true, 30), "resets next month")
	assert.Contains(t, LimitMessage(false, 30), "30 extractions per month")
	assert.Contains(t, LimitMessage(false, 50), "50 extractions per month")
}

func TestTracker_LimitMessageUsesConfiguredCeiling(t *testing.T) {
	t.Parallel()
	tr := New(store.NewMemory(), config.QuotaConfig{AnonymousLimit: 5, AuthenticatedLimit: 100})
	assert.Contains(t, tr.LimitMessage(false), "get 100 extractions per month")
	assert.NotContains(t, tr.LimitMessage(false), " 30 ")

	def := New(store.NewMemory(), config.QuotaConfig{})
	assert.Contains(t, def.LimitMessage(false), "get 30 extractions per month")
}
