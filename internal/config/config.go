// Package config holds the engine's own configuration (workspace root,
// cache sizing, concurrency defaults, predictor tuning) plus the per-request
// options struct mirrored from the external request shape.
package config

import (
	"fmt"

	"github.com/standardbeagle/fileforge/internal/types"
)

// EngineConfig is the long-lived configuration loaded once at startup,
// distinct from the per-request RequestOptions a client submits.
type EngineConfig struct {
	Version int
	Project Project
	Cache   Cache
	Engine  Engine
	Predictor Predictor
}

// Project identifies the workspace this engine instance serves.
type Project struct {
	Root string
	Name string
}

// Cache tunes the bounded LRU.
type Cache struct {
	MaxEntries      int
	MaxBytes        int64
	TTLSeconds      int
	CleanupInterval int // seconds
	WatchEnabled    bool
}

// Engine tunes stage dispatch and request defaults.
type Engine struct {
	DefaultConcurrency int
	DefaultTimeoutSec  int
	MaxGoroutines      int // hard ceiling regardless of a request's own concurrency
}

// Predictor tunes the predictive pre-loader's adaptive controller.
type Predictor struct {
	Enabled             bool
	WindowSize          int     // number of access events retained
	PredictionThreshold float64 // [0,1]; candidates scoring below this are not warmed
	MaxConcurrentLoads  int
	ModelComplexity     string // "low", "medium", "high"
}

// Default returns the engine's built-in defaults, the same values used
// when no .forge.kdl is present.
func Default(projectRoot string) *EngineConfig {
	return &EngineConfig{
		Version: 1,
		Project: Project{Root: projectRoot},
		Cache: Cache{
			MaxEntries:      2000,
			MaxBytes:        256 * 1024 * 1024,
			TTLSeconds:      2 * 3600,
			CleanupInterval: 600,
			WatchEnabled:    false,
		},
		Engine: Engine{
			DefaultConcurrency: 4,
			DefaultTimeoutSec:  120,
			MaxGoroutines:      64,
		},
		Predictor: Predictor{
			Enabled:             true,
			WindowSize:          500,
			PredictionThreshold: 0.6,
			MaxConcurrentLoads:  4,
			ModelComplexity:     "medium",
		},
	}
}

// Validate bounds every tunable to a sane range, mirroring the teacher's
// own Validate() methods that reject extreme configuration values rather
// than silently clamping them.
func (c *EngineConfig) Validate() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache.max_bytes must be positive, got %d", c.Cache.MaxBytes)
	}
	if c.Engine.DefaultConcurrency <= 0 || c.Engine.DefaultConcurrency > 1024 {
		return fmt.Errorf("engine.default_concurrency must be between 1 and 1024, got %d", c.Engine.DefaultConcurrency)
	}
	if c.Predictor.PredictionThreshold < 0 || c.Predictor.PredictionThreshold > 1 {
		return fmt.Errorf("predictor.prediction_threshold must be between 0 and 1, got %v", c.Predictor.PredictionThreshold)
	}
	if c.Predictor.MaxConcurrentLoads < 0 {
		return fmt.Errorf("predictor.max_concurrent_loads must be non-negative, got %d", c.Predictor.MaxConcurrentLoads)
	}
	return nil
}

// ResolveOptions merges a request's RequestOptions over the engine's
// defaults, so a request that omits a field inherits the engine-wide
// setting rather than a zero value.
func (c *EngineConfig) ResolveOptions(opts types.RequestOptions) types.RequestOptions {
	resolved := opts
	if resolved.Concurrency <= 0 {
		resolved.Concurrency = c.Engine.DefaultConcurrency
	}
	if resolved.TimeoutMs <= 0 {
		resolved.TimeoutMs = int64(c.Engine.DefaultTimeoutSec) * 1000
	}
	if resolved.Cache.MaxEntries <= 0 {
		resolved.Cache.MaxEntries = c.Cache.MaxEntries
	}
	if resolved.Cache.MaxBytes <= 0 {
		resolved.Cache.MaxBytes = c.Cache.MaxBytes
	}
	if resolved.Cache.TTLMs <= 0 {
		resolved.Cache.TTLMs = int64(c.Cache.TTLSeconds) * 1000
	}
	return resolved
}
