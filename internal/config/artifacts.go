package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// PredictorSnapshot is the optional persisted artifact named in spec.md §6
// ("predictor state ... serialised as self-describing structured
// documents"). TOML is used here rather than KDL since this is a
// machine-written/human-inspectable snapshot, not hand-authored
// configuration — the same split the teacher draws between its primary
// KDL config and the auxiliary go-toml dependency in its go.mod.
type PredictorSnapshot struct {
	Weights          map[string]float64 `toml:"weights"`
	FeatureImportance map[string]float64 `toml:"feature_importance"`
	TrainedAtUnix    int64              `toml:"trained_at_unix"`
	SampleCount      int                `toml:"sample_count"`
}

// WarmingState persists per-strategy warming counters across restarts.
type WarmingState struct {
	Strategies map[string]StrategyState `toml:"strategies"`
}

// StrategyState is one warming strategy's recorded outcome.
type StrategyState struct {
	LastRunUnix int64 `toml:"last_run_unix"`
	FilesWarmed int   `toml:"files_warmed"`
}

// SavePredictorSnapshot writes snap to path as TOML.
func SavePredictorSnapshot(path string, snap PredictorSnapshot) error {
	data, err := toml.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadPredictorSnapshot reads a previously saved snapshot; a missing file
// is not an error, it simply means no prior training exists.
func LoadPredictorSnapshot(path string) (*PredictorSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap PredictorSnapshot
	if err := toml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveWarmingState writes state to path as TOML.
func SaveWarmingState(path string, state WarmingState) error {
	data, err := toml.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadWarmingState reads previously saved warming state.
func LoadWarmingState(path string) (*WarmingState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state WarmingState
	if err := toml.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
