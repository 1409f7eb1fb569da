package predictor

import (
	"math"
	"sync"
)

// Pattern is one labelled training example: the features observed for a
// candidate at prediction time, and whether it was actually accessed
// shortly after.
type Pattern struct {
	Features Features
	Accessed bool
}

// Predictor is the pluggable scoring strategy spec.md §4.G names: train on
// a batch, predict a single score, report feature importance, and take a
// single online update step per observation.
type Predictor interface {
	Train(patterns []Pattern)
	Predict(f Features) float64
	FeatureImportance() map[string]float64
	UpdateOnline(p Pattern)
}

// LinearModel is a logistic-style linear predictor: score = sigmoid(w·f + b).
type LinearModel struct {
	mu           sync.RWMutex
	weights      Features
	bias         float64
	learningRate float64
}

// NewLinearModel builds a linear model with small random-free initial
// weights (uniform 1/N) so an untrained model still orders candidates by
// raw feature magnitude rather than scoring everything identically at 0.
func NewLinearModel() *LinearModel {
	var w Features
	for i := range w {
		w[i] = 1.0 / float64(len(w))
	}
	return &LinearModel{weights: w, learningRate: 0.05}
}

func (m *LinearModel) Train(patterns []Pattern) {
	if len(patterns) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for epoch := 0; epoch < 20; epoch++ {
		for _, p := range patterns {
			m.stepLocked(p)
		}
	}
}

func (m *LinearModel) UpdateOnline(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepLocked(p)
}

func (m *LinearModel) stepLocked(p Pattern) {
	pred := m.scoreLocked(p.Features)
	target := 0.0
	if p.Accessed {
		target = 1.0
	}
	err := target - pred
	for i := range m.weights {
		m.weights[i] += m.learningRate * err * p.Features[i]
	}
	m.bias += m.learningRate * err
}

func (m *LinearModel) Predict(f Features) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scoreLocked(f)
}

func (m *LinearModel) scoreLocked(f Features) float64 {
	var z float64
	for i := range f {
		z += m.weights[i] * f[i]
	}
	z += m.bias
	return sigmoid(z)
}

func (m *LinearModel) FeatureImportance() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		out[name] = math.Abs(m.weights[i])
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// treeNode is a single split or leaf of a small variance-reduction
// decision tree.
type treeNode struct {
	leaf        bool
	prediction  float64
	featureIdx  int
	threshold   float64
	left, right *treeNode
}

// TreeModel is a single decision tree scored by variance-reduction splits,
// rebuilt wholesale on every Train call given at least 4 patterns (a
// smaller batch leaves the tree unchanged; UpdateOnline only nudges the
// matched leaf).
type TreeModel struct {
	mu   sync.RWMutex
	root *treeNode
}

// NewTreeModel builds an untrained tree: a single leaf predicting 0.5.
func NewTreeModel() *TreeModel {
	return &TreeModel{root: &treeNode{leaf: true, prediction: 0.5}}
}

func (m *TreeModel) Train(patterns []Pattern) {
	if len(patterns) < 4 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = buildTree(patterns, 0, 4)
}

const maxTreeDepth = 4

func buildTree(patterns []Pattern, depth, maxDepth int) *treeNode {
	mean := meanLabel(patterns)
	if depth >= maxDepth || len(patterns) < 4 || isPure(patterns) {
		return &treeNode{leaf: true, prediction: mean}
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	baseVar := variance(patterns)
	for feat := 0; feat < len(Features{}); feat++ {
		thresholds := candidateThresholds(patterns, feat)
		for _, t := range thresholds {
			left, right := splitPatterns(patterns, feat, t)
			if len(left) == 0 || len(right) == 0 {
				continue
			}
			wl := float64(len(left)) / float64(len(patterns))
			wr := float64(len(right)) / float64(len(patterns))
			gain := baseVar - wl*variance(left) - wr*variance(right)
			if gain > bestGain {
				bestGain, bestFeature, bestThreshold = gain, feat, t
			}
		}
	}
	if bestFeature < 0 {
		return &treeNode{leaf: true, prediction: mean}
	}

	left, right := splitPatterns(patterns, bestFeature, bestThreshold)
	return &treeNode{
		featureIdx: bestFeature,
		threshold:  bestThreshold,
		left:       buildTree(left, depth+1, maxDepth),
		right:      buildTree(right, depth+1, maxDepth),
	}
}

func candidateThresholds(patterns []Pattern, feat int) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, p := range patterns {
		v := p.Features[feat]
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func splitPatterns(patterns []Pattern, feat int, threshold float64) (left, right []Pattern) {
	for _, p := range patterns {
		if p.Features[feat] <= threshold {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	return left, right
}

func meanLabel(patterns []Pattern) float64 {
	if len(patterns) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, p := range patterns {
		if p.Accessed {
			sum++
		}
	}
	return sum / float64(len(patterns))
}

func variance(patterns []Pattern) float64 {
	mean := meanLabel(patterns)
	return mean * (1 - mean)
}

func isPure(patterns []Pattern) bool {
	if len(patterns) == 0 {
		return true
	}
	first := patterns[0].Accessed
	for _, p := range patterns[1:] {
		if p.Accessed != first {
			return false
		}
	}
	return true
}

func (m *TreeModel) Predict(f Features) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return walkTree(m.root, f)
}

func walkTree(n *treeNode, f Features) float64 {
	if n.leaf {
		return n.prediction
	}
	if f[n.featureIdx] <= n.threshold {
		return walkTree(n.left, f)
	}
	return walkTree(n.right, f)
}

// UpdateOnline nudges the leaf that f would land in towards the observed
// label — the closest a static tree gets to an online update without a
// full rebuild.
func (m *TreeModel) UpdateOnline(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	leaf := findLeaf(m.root, p.Features)
	target := 0.0
	if p.Accessed {
		target = 1.0
	}
	leaf.prediction += 0.1 * (target - leaf.prediction)
}

func findLeaf(n *treeNode, f Features) *treeNode {
	if n.leaf {
		return n
	}
	if f[n.featureIdx] <= n.threshold {
		return findLeaf(n.left, f)
	}
	return findLeaf(n.right, f)
}

func (m *TreeModel) FeatureImportance() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(FeatureNames))
	for _, name := range FeatureNames {
		out[name] = 0
	}
	accumulateImportance(m.root, out)
	return out
}

func accumulateImportance(n *treeNode, out map[string]float64) {
	if n == nil || n.leaf {
		return
	}
	out[FeatureNames[n.featureIdx]]++
	accumulateImportance(n.left, out)
	accumulateImportance(n.right, out)
}

// NetworkModel is a small feed-forward network, one hidden layer with
// sigmoid activations, trained by a single backprop step per pattern per
// epoch (plain SGD, no momentum — scale does not warrant it here).
type NetworkModel struct {
	mu           sync.RWMutex
	hidden       int
	w1           [][]float64 // hidden x features
	b1           []float64
	w2           []float64 // hidden
	b2           float64
	learningRate float64
}

// NewNetworkModel builds a network with `hidden` units, deterministically
// initialised (no Predictor call may use math/rand — see the module's
// determinism constraint) via a fixed small-weight pattern.
func NewNetworkModel(hidden int) *NetworkModel {
	if hidden <= 0 {
		hidden = 6
	}
	n := len(Features{})
	w1 := make([][]float64, hidden)
	for h := range w1 {
		w1[h] = make([]float64, n)
		for i := range w1[h] {
			w1[h][i] = 0.1 * float64((h+i)%5-2)
		}
	}
	w2 := make([]float64, hidden)
	for h := range w2 {
		w2[h] = 0.2 * float64((h%3)-1)
	}
	return &NetworkModel{hidden: hidden, w1: w1, b1: make([]float64, hidden), w2: w2, learningRate: 0.05}
}

func (m *NetworkModel) forward(f Features) (hiddenOut []float64, out float64) {
	hiddenOut = make([]float64, m.hidden)
	for h := 0; h < m.hidden; h++ {
		var z float64
		for i := range f {
			z += m.w1[h][i] * f[i]
		}
		z += m.b1[h]
		hiddenOut[h] = sigmoid(z)
	}
	var z float64
	for h := 0; h < m.hidden; h++ {
		z += m.w2[h] * hiddenOut[h]
	}
	z += m.b2
	return hiddenOut, sigmoid(z)
}

func (m *NetworkModel) Predict(f Features) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, out := m.forward(f)
	return out
}

func (m *NetworkModel) Train(patterns []Pattern) {
	if len(patterns) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for epoch := 0; epoch < 30; epoch++ {
		for _, p := range patterns {
			m.stepLocked(p)
		}
	}
}

func (m *NetworkModel) UpdateOnline(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepLocked(p)
}

func (m *NetworkModel) stepLocked(p Pattern) {
	hiddenOut, out := m.forward(p.Features)
	target := 0.0
	if p.Accessed {
		target = 1.0
	}
	outErr := (target - out) * out * (1 - out)

	for h := 0; h < m.hidden; h++ {
		hiddenErr := outErr * m.w2[h] * hiddenOut[h] * (1 - hiddenOut[h])
		for i := range p.Features {
			m.w1[h][i] += m.learningRate * hiddenErr * p.Features[i]
		}
		m.b1[h] += m.learningRate * hiddenErr
		m.w2[h] += m.learningRate * outErr * hiddenOut[h]
	}
	m.b2 += m.learningRate * outErr
}

func (m *NetworkModel) FeatureImportance() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		var sum float64
		for h := 0; h < m.hidden; h++ {
			sum += math.Abs(m.w1[h][i]) * math.Abs(m.w2[h])
		}
		out[name] = sum
	}
	return out
}

// EnsembleModel scores by a weighted sum of its members' predictions; it
// is itself a Predictor, so the core's dependency on the four-method
// interface is never specialised to "know about" ensembling.
type EnsembleModel struct {
	members []Predictor
	weights []float64
}

// NewEnsembleModel builds an ensemble; weights are normalised to sum to 1.
func NewEnsembleModel(members []Predictor, weights []float64) *EnsembleModel {
	if len(weights) != len(members) {
		weights = make([]float64, len(members))
		for i := range weights {
			weights[i] = 1.0 / float64(len(members))
		}
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum > 0 {
		for i := range weights {
			weights[i] /= sum
		}
	}
	return &EnsembleModel{members: members, weights: weights}
}

func (e *EnsembleModel) Train(patterns []Pattern) {
	for _, m := range e.members {
		m.Train(patterns)
	}
}

func (e *EnsembleModel) Predict(f Features) float64 {
	var sum float64
	for i, m := range e.members {
		sum += e.weights[i] * m.Predict(f)
	}
	return sum
}

func (e *EnsembleModel) UpdateOnline(p Pattern) {
	for _, m := range e.members {
		m.UpdateOnline(p)
	}
}

func (e *EnsembleModel) FeatureImportance() map[string]float64 {
	out := make(map[string]float64, len(FeatureNames))
	for i, m := range e.members {
		for name, weight := range m.FeatureImportance() {
			out[name] += e.weights[i] * weight
		}
	}
	return out
}
