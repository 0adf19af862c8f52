package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/resilience"
)

// Pinger is the part of the store the checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is a point-in-time view of service dependencies.
type Health struct {
	StoreOK   bool              `json:"store_ok"`
	StoreErr  string            `json:"store_error,omitempty"`
	Breakers  map[string]string `json:"breakers"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Checker probes the store and reads breaker states, in the background and
// on demand.
type Checker struct {
	store    Pinger
	breakers BreakerStates
	metrics  *Metrics
	timeout  time.Duration

	mu   sync.RWMutex
	last Health
}

// NewChecker creates a health checker. breakers and metrics may be nil.
func NewChecker(store Pinger, breakers BreakerStates, metrics *Metrics) *Checker {
	return &Checker{
		store:    store,
		breakers: breakers,
		metrics:  metrics,
		timeout:  5 * time.Second,
	}
}

// Check probes dependencies now and records the result.
func (c *Checker) Check(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	h := Health{StoreOK: true, Breakers: map[string]string{}, CheckedAt: time.Now().UTC()}
	if err := c.store.Ping(ctx); err != nil {
		h.StoreOK = false
		h.StoreErr = err.Error()
	}
	if c.breakers != nil {
		for name, st := range c.breakers.States() {
			h.Breakers[name] = st.String()
		}
	}
	c.metrics.SetStoreUp(h.StoreOK)

	c.mu.Lock()
	c.last = h
	c.mu.Unlock()
	return h
}

// Last returns the most recent result without probing.
func (c *Checker) Last() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Run checks on every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	h := c.Check(ctx)
	if !h.StoreOK {
		log.Error("monitoring: store health check failed", zap.String("error", h.StoreErr))
		return
	}
	for name, st := range h.Breakers {
		if st != resilience.StateClosed.String() {
			log.Warn("monitoring: circuit breaker not closed",
				zap.String("service", name), zap.String("state", st))
		}
	}
	log.Debug("monitoring: health check passed")
}
