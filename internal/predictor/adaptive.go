package predictor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// PressureLevel is a coarse bucket for the three fixed thresholds
// spec.md §4.G names: low/medium/high.
type PressureLevel string

const (
	PressureLow    PressureLevel = "low"
	PressureMedium PressureLevel = "medium"
	PressureHigh   PressureLevel = "high"
)

// AdaptiveConfig is the runtime-tuned tuple the adaptive controller
// produces: max_concurrent_loads, background_loading_enabled,
// prediction_threshold, model_complexity.
type AdaptiveConfig struct {
	MaxConcurrentLoads      int
	BackgroundLoadingEnabled bool
	PredictionThreshold     float64
	ModelComplexity         string
}

// thresholds fixes the memory-pressure bucket boundaries as constants, not
// tunables, per spec.md §4.G.
const (
	memPressureMediumBytes = 512 * 1024 * 1024
	memPressureHighBytes   = 1536 * 1024 * 1024
)

// ResourceGate samples memory use and in-flight concurrent load count to
// classify current pressure, and decides whether a background load may
// proceed right now.
type ResourceGate struct {
	inFlight    int64
	maxInFlight int64
}

// NewResourceGate builds a gate capping concurrent background loads at
// maxInFlight.
func NewResourceGate(maxInFlight int) *ResourceGate {
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	return &ResourceGate{maxInFlight: int64(maxInFlight)}
}

// Pressure classifies current memory pressure from the Go runtime's own
// heap stats — the cheapest signal available without an external
// collaborator (no telemetry exporter dependency, which is out of scope).
func (g *ResourceGate) Pressure() PressureLevel {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	switch {
	case stats.HeapAlloc > memPressureHighBytes:
		return PressureHigh
	case stats.HeapAlloc > memPressureMediumBytes:
		return PressureMedium
	default:
		return PressureLow
	}
}

// TryAcquire reserves one in-flight background-load slot, returning false
// if the cap or current pressure forbids it. Callers must call Release
// exactly once for every successful TryAcquire.
func (g *ResourceGate) TryAcquire() bool {
	if g.Pressure() == PressureHigh {
		return false
	}
	for {
		cur := atomic.LoadInt64(&g.inFlight)
		if cur >= atomic.LoadInt64(&g.maxInFlight) {
			return false
		}
		if atomic.CompareAndSwapInt64(&g.inFlight, cur, cur+1) {
			return true
		}
	}
}

// Release frees one in-flight slot.
func (g *ResourceGate) Release() {
	atomic.AddInt64(&g.inFlight, -1)
}

// SetMaxInFlight adjusts the concurrent-load cap, driven by the adaptive
// controller.
func (g *ResourceGate) SetMaxInFlight(n int) {
	if n < 0 {
		n = 0
	}
	atomic.StoreInt64(&g.maxInFlight, int64(n))
}

// Controller periodically samples resource pressure and updates an
// AdaptiveConfig, with hysteresis so a borderline pressure reading does
// not flap the configuration every tick.
type Controller struct {
	mu     sync.RWMutex
	gate   *ResourceGate
	cfg    AdaptiveConfig
	lastLevel PressureLevel
	stableTicks int
}

// NewController builds a controller seeded with cfg as the starting
// configuration.
func NewController(gate *ResourceGate, cfg AdaptiveConfig) *Controller {
	return &Controller{gate: gate, cfg: cfg, lastLevel: PressureLow}
}

// Current returns the controller's current configuration.
func (c *Controller) Current() AdaptiveConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// requiredStableTicks is how many consecutive samples at a new pressure
// level are needed before the controller actually transitions —
// hysteresis against a single noisy reading.
const requiredStableTicks = 3

// Sample takes one reading and applies a transition only once the new
// level has been observed requiredStableTicks times in a row.
func (c *Controller) Sample() AdaptiveConfig {
	level := c.gate.Pressure()

	c.mu.Lock()
	defer c.mu.Unlock()

	if level == c.lastLevel {
		c.stableTicks++
	} else {
		c.lastLevel = level
		c.stableTicks = 1
	}

	if c.stableTicks >= requiredStableTicks {
		c.applyLevelLocked(level)
	}
	return c.cfg
}

func (c *Controller) applyLevelLocked(level PressureLevel) {
	switch level {
	case PressureHigh:
		c.cfg.MaxConcurrentLoads = 1
		c.cfg.BackgroundLoadingEnabled = false
		c.cfg.PredictionThreshold = 0.85
		c.cfg.ModelComplexity = "low"
	case PressureMedium:
		c.cfg.MaxConcurrentLoads = 2
		c.cfg.BackgroundLoadingEnabled = true
		c.cfg.PredictionThreshold = 0.7
		c.cfg.ModelComplexity = "medium"
	default:
		c.cfg.MaxConcurrentLoads = 4
		c.cfg.BackgroundLoadingEnabled = true
		c.cfg.PredictionThreshold = 0.6
		c.cfg.ModelComplexity = "high"
	}
	c.gate.SetMaxInFlight(c.cfg.MaxConcurrentLoads)
}

// Run starts a ticker that samples the controller every interval until ctx
// (represented here as a stop channel, to keep this package free of a
// context dependency for a background loop with no caller-visible result)
// is closed.
func (c *Controller) Run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Sample()
		}
	}
}
