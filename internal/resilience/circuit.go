// Package resilience guards calls to upstream services with circuit breakers.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/config"
)

// Upstream services guarded by a breaker.
const (
	ServiceAnthropic = "anthropic"
	ServiceYouTube   = "youtube"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls without contacting the upstream.
	StateOpen
	// StateHalfOpen lets a single probe through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Settings controls breaker behavior.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a probe.
	ResetTimeout time.Duration
	// ShouldTrip decides whether an error counts as a failure. Defaults to
	// ShouldTrip in this package.
	ShouldTrip func(err error) bool
	// OnStateChange is called on every transition, with the breaker name.
	OnStateChange func(name string, from, to State)
}

// FromConfig converts config values to Settings, applying defaults.
func FromConfig(cfg config.BreakerConfig) Settings {
	s := Settings{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
	if cfg.FailureThreshold > 0 {
		s.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.ResetTimeoutSecs > 0 {
		s.ResetTimeout = time.Duration(cfg.ResetTimeoutSecs) * time.Second
	}
	return s
}

// Breaker implements the circuit breaker pattern for one upstream.
type Breaker struct {
	name string
	cfg  Settings

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probeActive bool

	now func() time.Time
}

// NewBreaker creates a named breaker.
func NewBreaker(name string, cfg Settings) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = ShouldTrip
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// Name returns the guarded service name.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn through the breaker. It returns ErrCircuitOpen without
// calling fn while the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do is like Execute but preserves a return value.
func Do[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn(ctx)
	}
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return eris.Wrapf(ErrCircuitOpen, "%s", b.name)
		}
		b.transition(StateHalfOpen)
		b.probeActive = true
		return nil
	case StateHalfOpen:
		if b.probeActive {
			return eris.Wrapf(ErrCircuitOpen, "%s: probe in flight", b.name)
		}
		b.probeActive = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.ShouldTrip(err) {
		b.failures = 0
		b.probeActive = false
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		return
	}

	b.failures++
	switch b.state {
	case StateHalfOpen:
		b.probeActive = false
		b.openedAt = b.now()
		b.transition(StateOpen)
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	zap.L().Info("circuit breaker state change",
		zap.String("service", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// Registry hands out one breaker per upstream service.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      Settings
}

// NewRegistry creates a registry whose breakers share cfg.
func NewRegistry(cfg Settings) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), cfg: cfg}
}

// Get returns the breaker for service, creating it on first use.
func (r *Registry) Get(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[service]
	if !ok {
		b = NewBreaker(service, r.cfg)
		r.breakers[service] = b
	}
	return b
}

// States returns a snapshot of every breaker's state.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	states := make(map[string]State, len(breakers))
	for _, b := range breakers {
		states[b.name] = b.State()
	}
	return states
}
