package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/recipe-cli/internal/resilience"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestChecker_Check(t *testing.T) {
	t.Parallel()
	m := NewMetrics("recipe")
	c := NewChecker(pingFunc(func(context.Context) error { return nil }),
		fixedStates{resilience.ServiceAnthropic: resilience.StateHalfOpen}, m)

	h := c.Check(context.Background())
	assert.True(t, h.StoreOK)
	assert.Empty(t, h.StoreErr)
	assert.Equal(t, "half-open", h.Breakers[resilience.ServiceAnthropic])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeUp))
	assert.Equal(t, h, c.Last())
}

func TestChecker_StoreDown(t *testing.T) {
	t.Parallel()
	m := NewMetrics("recipe")
	c := NewChecker(pingFunc(func(context.Context) error { return errors.New("connection refused") }), nil, m)

	h := c.Check(context.Background())
	assert.False(t, h.StoreOK)
	assert.Equal(t, "connection refused", h.StoreErr)
	assert.Empty(t, h.Breakers)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.storeUp))
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()
	c := NewChecker(pingFunc(func(context.Context) error { return nil }), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
	assert.True(t, c.Last().StoreOK)
}
