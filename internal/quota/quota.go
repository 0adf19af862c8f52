// Package quota enforces monthly extraction ceilings per identity.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/store"
)

// Default ceilings.
const (
	DefaultAnonymousLimit     = 3
	DefaultAuthenticatedLimit = 30
)

// Identity is who an extraction is charged to. Anonymous IDs are
// client-held tokens and can be reset by the client.
type Identity struct {
	ID            string
	Authenticated bool
}

// Key namespaces the identity so a user id can never collide with a token.
func (i Identity) Key() string {
	if i.Authenticated {
		return "user:" + i.ID
	}
	return "anon:" + i.ID
}

// Status is the result of a limit check.
type Status struct {
	Limited bool
	Current int
	Limit   int
}

// Usage describes consumption after a successful extraction.
type Usage struct {
	Current         int  `json:"current"`
	Limit           int  `json:"limit"`
	Remaining       int  `json:"remaining"`
	IsLastFree      bool `json:"isLastFree"`
	IsAuthenticated bool `json:"isAuthenticated"`
}

// Tracker checks and increments quotas in the store.
type Tracker struct {
	store     store.Store
	anonLimit int
	authLimit int
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker. Non-positive limits fall back to the defaults.
func New(st store.Store, cfg config.QuotaConfig, opts ...Option) *Tracker {
	t := &Tracker{
		store:     st,
		anonLimit: cfg.AnonymousLimit,
		authLimit: cfg.AuthenticatedLimit,
		now:       time.Now,
	}
	if t.anonLimit <= 0 {
		t.anonLimit = DefaultAnonymousLimit
	}
	if t.authLimit <= 0 {
		t.authLimit = DefaultAuthenticatedLimit
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// PeriodStart returns the first instant of t's month in UTC.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Limit returns the ceiling that applies to id.
func (t *Tracker) Limit(id Identity) int {
	if id.Authenticated {
		return t.authLimit
	}
	return t.anonLimit
}

// CheckLimit reports whether id has used up this period's extractions. A
// record from an earlier period counts as zero.
func (t *Tracker) CheckLimit(ctx context.Context, id Identity) (Status, error) {
	st := Status{Limit: t.Limit(id)}
	rec, err := t.store.GetQuota(ctx, id.Key())
	if err != nil {
		return st, eris.Wrap(err, "quota: check limit")
	}
	if rec != nil && !rec.PeriodStart.Before(PeriodStart(t.now())) {
		st.Current = rec.Count
	}
	st.Limited = st.Current >= st.Limit
	return st, nil
}

// Increment charges one extraction to id and returns the new count.
func (t *Tracker) Increment(ctx context.Context, id Identity) (int, error) {
	n, err := t.store.IncrementQuota(ctx, id.Key(), PeriodStart(t.now()))
	if err != nil {
		return 0, eris.Wrap(err, "quota: increment")
	}
	return n, nil
}

// UsageFor builds the usage report for id after its count reached current.
func (t *Tracker) UsageFor(id Identity, current int) Usage {
	limit := t.Limit(id)
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		Current:         current,
		Limit:           limit,
		Remaining:       remaining,
		IsLastFree:      !id.Authenticated && remaining == 0,
		IsAuthenticated: id.Authenticated,
	}
}

// LimitMessage is the user-facing text for a limit_reached event.
// authLimit is the signed-in ceiling offered to anonymous callers.
func LimitMessage(authenticated bool, authLimit int) string {
	if authenticated {
		return "You've reached your monthly extraction limit. Your limit resets next month."
	}
	return fmt.Sprintf("You've used all your free extractions. Create a free account to get %d extractions per month.", authLimit)
}

// LimitMessage is LimitMessage with this tracker's signed-in ceiling.
func (t *Tracker) LimitMessage(authenticated bool) string {
	return LimitMessage(authenticated, t.authLimit)
}
