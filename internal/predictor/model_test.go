package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func accessedPattern() Pattern {
	var f Features
	for i := range f {
		f[i] = 1
	}
	return Pattern{Features: f, Accessed: true}
}

func notAccessedPattern() Pattern {
	var f Features
	for i := range f {
		f[i] = 0
	}
	return Pattern{Features: f, Accessed: false}
}

func TestLinearModel_TrainingSeparatesAccessedFromNot(t *testing.T) {
	m := NewLinearModel()
	patterns := []Pattern{accessedPattern(), notAccessedPattern()}
	m.Train(patterns)

	assert.Greater(t, m.Predict(accessedPattern().Features), m.Predict(notAccessedPattern().Features))
}

func TestLinearModel_UpdateOnlineMovesPredictionTowardLabel(t *testing.T) {
	m := NewLinearModel()
	before := m.Predict(accessedPattern().Features)
	for i := 0; i < 50; i++ {
		m.UpdateOnline(accessedPattern())
	}
	after := m.Predict(accessedPattern().Features)
	assert.Greater(t, after, before)
}

func TestLinearModel_FeatureImportanceCoversEveryNamedFeature(t *testing.T) {
	m := NewLinearModel()
	importance := m.FeatureImportance()
	assert.Len(t, importance, len(FeatureNames))
	for _, name := range FeatureNames {
		_, ok := importance[name]
		assert.True(t, ok, "missing importance for %s", name)
	}
}

func TestTreeModel_UntrainedPredictsNeutral(t *testing.T) {
	m := NewTreeModel()
	var f Features
	assert.Equal(t, 0.5, m.Predict(f))
}

func TestTreeModel_TrainSplitsOnDiscriminatingFeature(t *testing.T) {
	m := NewTreeModel()
	var patterns []Pattern
	for i := 0; i < 10; i++ {
		var f Features
		f[fAccessFrequency] = 1
		patterns = append(patterns, Pattern{Features: f, Accessed: true})
		var g Features
		g[fAccessFrequency] = 0
		patterns = append(patterns, Pattern{Features: g, Accessed: false})
	}
	m.Train(patterns)

	var hot, cold Features
	hot[fAccessFrequency] = 1
	cold[fAccessFrequency] = 0
	assert.Greater(t, m.Predict(hot), m.Predict(cold))
}

func TestTreeModel_UpdateOnlineNudgesMatchedLeaf(t *testing.T) {
	m := NewTreeModel()
	var f Features
	before := m.Predict(f)
	for i := 0; i < 10; i++ {
		m.UpdateOnline(Pattern{Features: f, Accessed: true})
	}
	assert.Greater(t, m.Predict(f), before)
}

func TestNetworkModel_TrainingSeparatesAccessedFromNot(t *testing.T) {
	m := NewNetworkModel(6)
	patterns := []Pattern{accessedPattern(), notAccessedPattern()}
	m.Train(patterns)
	assert.Greater(t, m.Predict(accessedPattern().Features), m.Predict(notAccessedPattern().Features))
}

func TestNetworkModel_DefaultsHiddenSizeWhenNonPositive(t *testing.T) {
	m := NewNetworkModel(0)
	assert.Equal(t, 6, m.hidden)
}

func TestEnsembleModel_AveragesMemberPredictions(t *testing.T) {
	constantLow := constantPredictor{value: 0.2}
	constantHigh := constantPredictor{value: 0.8}
	e := NewEnsembleModel([]Predictor{constantLow, constantHigh}, nil)

	var f Features
	assert.InDelta(t, 0.5, e.Predict(f), 1e-9)
}

func TestEnsembleModel_WeightsNormaliseToSumOne(t *testing.T) {
	e := NewEnsembleModel([]Predictor{constantPredictor{value: 1}, constantPredictor{value: 1}}, []float64{3, 1})
	var f Features
	assert.InDelta(t, 1.0, e.Predict(f), 1e-9)
}

type constantPredictor struct{ value float64 }

func (c constantPredictor) Train([]Pattern)                     {}
func (c constantPredictor) Predict(Features) float64            { return c.value }
func (c constantPredictor) FeatureImportance() map[string]float64 { return nil }
func (c constantPredictor) UpdateOnline(Pattern)                 {}
