package predictor

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/fileforge/internal/ast"
	"github.com/standardbeagle/fileforge/internal/cache"
	"github.com/standardbeagle/fileforge/internal/fsservice"
	"github.com/standardbeagle/fileforge/internal/types"
)

// WarmingStrategy is one named, prioritised source of warming candidates,
// per spec.md §4.G's strategy list: {name, priority, trigger, max_files}.
// Lower Priority values run first.
type WarmingStrategy struct {
	Name     string
	Priority int
	Trigger  string // "startup", "dependency", "pattern", "git-history", "manual"
	MaxFiles int
}

// DefaultStrategies is the fixed ordered list this engine ships, matching
// the signal sources spec.md §4.G names.
var DefaultStrategies = []WarmingStrategy{
	{Name: "recent-window", Priority: 1, Trigger: "pattern", MaxFiles: 20},
	{Name: "same-directory", Priority: 2, Trigger: "pattern", MaxFiles: 15},
	{Name: "dependency-graph", Priority: 3, Trigger: "dependency", MaxFiles: 25},
	{Name: "co-modified", Priority: 4, Trigger: "git-history", MaxFiles: 10},
}

// Candidate is one scored warming candidate before a load decision.
type Candidate struct {
	Path     string
	Strategy string
	Score    float64
}

// Preloader assembles candidates, scores them with a pluggable Predictor,
// and issues resource-gated background cache loads that never block the
// requester and never surface errors — a prediction miss only costs a
// cache miss later, per spec.md §4.G.
type Preloader struct {
	fs   *fsservice.Service
	ca   *cache.Cache
	af   *ast.Facade
	graph *WorkspaceGraph
	window *AccessWindow
	gate  *ResourceGate
	ctrl  *Controller
	model Predictor

	strategies []WarmingStrategy

	coModified map[string][]string // path -> historically co-modified paths
}

// Config bundles the collaborators a Preloader needs.
type Config struct {
	FS         *fsservice.Service
	Cache      *cache.Cache
	AST        *ast.Facade
	Graph      *WorkspaceGraph
	Window     *AccessWindow
	Gate       *ResourceGate
	Controller *Controller
	Model      Predictor
	Strategies []WarmingStrategy
}

// New builds a Preloader. A nil Model defaults to a fresh LinearModel, and
// nil Strategies defaults to DefaultStrategies.
func New(cfg Config) *Preloader {
	model := cfg.Model
	if model == nil {
		model = NewLinearModel()
	}
	strategies := cfg.Strategies
	if strategies == nil {
		strategies = DefaultStrategies
	}
	return &Preloader{
		fs: cfg.FS, ca: cfg.Cache, af: cfg.AST, graph: cfg.Graph, window: cfg.Window,
		gate: cfg.Gate, ctrl: cfg.Controller, model: model, strategies: strategies,
		coModified: make(map[string][]string),
	}
}

// RecordCoModification registers that b was historically modified
// alongside a (and vice versa), feeding the "co-modified" strategy. The
// caller is responsible for deciding when two paths count as co-modified
// (e.g. same transaction, same commit) — this package only stores and
// queries the resulting adjacency.
func (p *Preloader) RecordCoModification(a, b string) {
	if a == "" || b == "" || a == b {
		return
	}
	p.coModified[a] = appendDistinct(p.coModified[a], b)
	p.coModified[b] = appendDistinct(p.coModified[b], a)
}

func appendDistinct(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// OnAccess records an access event and triggers best-effort background
// warming for the predicted follow-on files. It never blocks: every
// candidate load is dispatched on its own goroutine guarded by the
// resource gate, and errors are swallowed since a failed speculative load
// has no caller to report to.
func (p *Preloader) OnAccess(e types.AccessPatternEvent) {
	p.window.Record(e)
	if p.graph != nil && p.graph.Stale() {
		// Rebuild is caller-driven (needs a file listing+contents the
		// Preloader has no authority to gather on its own); skip silently
		// until the caller invokes RebuildGraph.
	}
	cfg := p.ctrl.Current()
	if !cfg.BackgroundLoadingEnabled {
		return
	}
	candidates := p.assembleCandidates(e.AbsPath)
	scored := p.score(candidates, e.AbsPath, cfg.PredictionThreshold)
	p.warm(scored, cfg)
}

// assembleCandidates gathers candidates from every configured strategy, in
// priority order, deduplicating as it goes so higher-priority strategies
// win a candidate's strategy attribution.
func (p *Preloader) assembleCandidates(trigger string) []Candidate {
	ordered := make([]WarmingStrategy, len(p.strategies))
	copy(ordered, p.strategies)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	seen := map[string]bool{trigger: true}
	var out []Candidate

	for _, strat := range ordered {
		var paths []string
		switch strat.Name {
		case "recent-window":
			paths = p.window.RecentPaths(strat.MaxFiles)
		case "same-directory":
			if p.graph != nil {
				paths = p.graph.SameDirectory(trigger)
			}
		case "dependency-graph":
			if p.graph != nil {
				paths = append(append([]string{}, p.graph.Dependencies(trigger)...), p.graph.Dependents(trigger)...)
			}
		case "co-modified":
			paths = p.coModifiedCandidates(trigger)
		}

		count := 0
		for _, path := range paths {
			if count >= strat.MaxFiles {
				break
			}
			if seen[path] {
				continue
			}
			seen[path] = true
			out = append(out, Candidate{Path: path, Strategy: strat.Name})
			count++
		}
	}
	return out
}

// coModifiedCandidates combines recorded co-modification adjacency with a
// Jaro-Winkler filename-similarity fallback for files never seen modified
// alongside trigger but whose names strongly resemble files that were —
// e.g. foo_test.go alongside foo.go, or a renamed sibling. Names are
// compared without their extension.
func (p *Preloader) coModifiedCandidates(trigger string) []string {
	direct := append([]string{}, p.coModified[trigger]...)

	stem := func(path string) string {
		base := filepath.Base(path)
		return base[:len(base)-len(filepath.Ext(base))]
	}
	triggerBase := stem(trigger)
	const similarityFloor = 0.82
	for candidate := range p.coModified {
		if candidate == trigger {
			continue
		}
		score, err := edlib.StringsSimilarity(triggerBase, stem(candidate), edlib.JaroWinkler)
		if err == nil && float64(score) >= similarityFloor {
			direct = appendDistinct(direct, candidate)
		}
	}
	sort.Strings(direct)
	return direct
}

func (p *Preloader) score(candidates []Candidate, trigger string, threshold float64) []Candidate {
	now := time.Now()
	events := p.window.Snapshot()
	root := ""
	if p.fs != nil {
		root = p.fs.Root()
	}

	var kept []Candidate
	for _, c := range candidates {
		f := FeatureVector(ExtractInput{
			Candidate: c.Path, Trigger: trigger, Now: now,
			RecentEvents: events, Graph: p.graphOrNil(), WorkspaceRoot: root,
		})
		c.Score = p.model.Predict(f)
		if c.Score >= threshold {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return kept
}

func (p *Preloader) graphOrNil() DependencyGraph {
	if p.graph == nil {
		return nil
	}
	return p.graph
}

// warm issues background cache loads for the surviving candidates, each
// gated by the resource gate and capped by the adaptive concurrency limit.
func (p *Preloader) warm(candidates []Candidate, cfg AdaptiveConfig) {
	for _, c := range candidates {
		if !p.gate.TryAcquire() {
			continue
		}
		go p.loadOne(c.Path)
	}
}

func (p *Preloader) loadOne(path string) {
	defer p.gate.Release()
	if p.fs == nil || p.ca == nil {
		return
	}
	abs, err := p.fs.Resolve(path)
	if err != nil || !p.fs.Exists(abs) {
		return
	}
	version, err := p.fs.VersionMarker(abs)
	if err != nil {
		return
	}
	key := cache.Key(cache.KindFile, abs, version)
	_, _ = p.ca.Get(key, abs, cache.KindFile, version, func() (interface{}, int64, types.VersionMarker, error) {
		content, err := p.fs.Read(abs)
		if err != nil {
			return nil, 0, version, err
		}
		return content, int64(len(content)), version, nil
	})
}

// RebuildGraph refreshes the workspace dependency graph from a fresh
// listing of (path, content) pairs. Callers typically supply every
// workspace file on startup and again whenever the graph goes stale.
func (p *Preloader) RebuildGraph(files map[string][]byte) {
	if p.graph != nil {
		p.graph.Rebuild(files)
	}
}

// RunStartupWarming fires the startup-triggered strategies once, ahead of
// any access event — e.g. entry points and core files surfaced by the
// dependency graph immediately after it is built.
func (p *Preloader) RunStartupWarming() {
	if p.graph == nil {
		return
	}
	cfg := p.ctrl.Current()
	if !cfg.BackgroundLoadingEnabled {
		return
	}
	var candidates []Candidate
	for _, path := range p.graph.entryPaths() {
		candidates = append(candidates, Candidate{Path: path, Strategy: "startup-entry", Score: 1})
	}
	p.warm(candidates, cfg)
}
