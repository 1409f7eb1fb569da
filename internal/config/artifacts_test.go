package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictorSnapshot_SaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.toml")
	snap := PredictorSnapshot{
		Weights:           map[string]float64{"temporal_proximity": 0.4},
		FeatureImportance: map[string]float64{"temporal_proximity": 0.4},
		TrainedAtUnix:     1700000000,
		SampleCount:       128,
	}
	require.NoError(t, SavePredictorSnapshot(path, snap))

	loaded, err := LoadPredictorSnapshot(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snap.SampleCount, loaded.SampleCount)
	assert.InDelta(t, 0.4, loaded.Weights["temporal_proximity"], 1e-9)
}

func TestLoadPredictorSnapshot_MissingFileReturnsNilWithoutError(t *testing.T) {
	snap, err := LoadPredictorSnapshot(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestWarmingState_SaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warming.toml")
	state := WarmingState{Strategies: map[string]StrategyState{
		"recent-window": {LastRunUnix: 1700000000, FilesWarmed: 12},
	}}
	require.NoError(t, SaveWarmingState(path, state))

	loaded, err := LoadWarmingState(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 12, loaded.Strategies["recent-window"].FilesWarmed)
}

func TestLoadWarmingState_MissingFileReturnsNilWithoutError(t *testing.T) {
	state, err := LoadWarmingState(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Nil(t, state)
}
