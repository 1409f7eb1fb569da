package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResourceGate_TryAcquireRespectsCap(t *testing.T) {
	g := NewResourceGate(1)
	assert.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire(), "second acquire must fail once the single slot is held")
	g.Release()
	assert.True(t, g.TryAcquire(), "slot becomes available again after Release")
}

func TestResourceGate_SetMaxInFlightRaisesCap(t *testing.T) {
	g := NewResourceGate(1)
	require := assert.New(t)
	require.True(g.TryAcquire())
	g.SetMaxInFlight(2)
	require.True(g.TryAcquire())
}

func TestResourceGate_DefaultsCapWhenNonPositive(t *testing.T) {
	g := NewResourceGate(0)
	for i := 0; i < 4; i++ {
		assert.True(t, g.TryAcquire())
	}
}

func TestController_HysteresisWithholdsTransitionUntilStableTicks(t *testing.T) {
	gate := NewResourceGate(4)
	ctrl := NewController(gate, AdaptiveConfig{})

	for i := 0; i < requiredStableTicks; i++ {
		ctrl.Sample()
	}
	cfg := ctrl.Current()
	// the test process's heap is well under the medium threshold, so the
	// controller settles on the low-pressure configuration once stable.
	assert.Equal(t, 4, cfg.MaxConcurrentLoads)
	assert.True(t, cfg.BackgroundLoadingEnabled)
	assert.Equal(t, "high", cfg.ModelComplexity)
}

func TestController_CurrentReturnsSeededConfigBeforeFirstSample(t *testing.T) {
	gate := NewResourceGate(4)
	seed := AdaptiveConfig{MaxConcurrentLoads: 99, ModelComplexity: "seeded"}
	ctrl := NewController(gate, seed)
	assert.Equal(t, seed, ctrl.Current())
}

func TestController_RunStopsOnStopChannel(t *testing.T) {
	gate := NewResourceGate(4)
	ctrl := NewController(gate, AdaptiveConfig{})
	stop := make(chan struct{})

	done := make(chan struct{})
	go func() {
		ctrl.Run(stop, time.Millisecond)
		close(done)
	}()
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop was closed")
	}
}
