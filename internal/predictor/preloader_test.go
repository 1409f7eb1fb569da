package predictor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fileforge/internal/cache"
	"github.com/standardbeagle/fileforge/internal/fsservice"
	"github.com/standardbeagle/fileforge/internal/types"
)

func newTestPreloader(t *testing.T) (*Preloader, *fsservice.Service) {
	t.Helper()
	root := t.TempDir()
	fs, err := fsservice.New(fsservice.Options{Root: root})
	require.NoError(t, err)
	ca := cache.New(cache.Config{})
	af := newTestFacade()
	graph := NewWorkspaceGraph(af, time.Hour)
	gate := NewResourceGate(4)
	ctrl := NewController(gate, AdaptiveConfig{BackgroundLoadingEnabled: true, PredictionThreshold: 0.5, MaxConcurrentLoads: 4})

	p := New(Config{FS: fs, Cache: ca, AST: af, Graph: graph, Window: NewAccessWindow(50, time.Hour), Gate: gate, Controller: ctrl})
	return p, fs
}

func accessEvent(path string, when time.Time) types.AccessPatternEvent {
	return types.AccessPatternEvent{AbsPath: path, Timestamp: when}
}

func TestPreloader_AssembleCandidatesDedupesPreferringHigherPriority(t *testing.T) {
	p, _ := newTestPreloader(t)

	p.graph.Rebuild(map[string][]byte{
		"trigger.go": []byte("package t\n\nimport \"dup.go\"\nimport \"dep.go\"\n"),
	})
	p.window.Record(accessEvent("dup.go", time.Now()))
	p.window.Record(accessEvent("rec.go", time.Now().Add(time.Second)))

	candidates := p.assembleCandidates("trigger.go")

	var dup *Candidate
	count := 0
	for i := range candidates {
		if candidates[i].Path == "dup.go" {
			dup = &candidates[i]
			count++
		}
	}
	require.Equal(t, 1, count, "dup.go must appear exactly once across strategies")
	assert.Equal(t, "recent-window", dup.Strategy, "higher-priority strategy should win attribution")
}

func TestPreloader_AssembleCandidatesExcludesTriggerItself(t *testing.T) {
	p, _ := newTestPreloader(t)
	p.window.Record(accessEvent("trigger.go", time.Now()))
	candidates := p.assembleCandidates("trigger.go")
	for _, c := range candidates {
		assert.NotEqual(t, "trigger.go", c.Path)
	}
}

func TestPreloader_CoModifiedCandidatesIncludesRecordedAdjacency(t *testing.T) {
	p, _ := newTestPreloader(t)
	p.RecordCoModification("a.go", "b.go")

	candidates := p.coModifiedCandidates("a.go")
	assert.Contains(t, candidates, "b.go")
}

func TestPreloader_CoModifiedCandidatesFallsBackToNameSimilarity(t *testing.T) {
	p, _ := newTestPreloader(t)
	p.RecordCoModification("foo_test.go", "helper.go")

	candidates := p.coModifiedCandidates("foo.go")
	assert.Contains(t, candidates, "foo_test.go", "similarly named sibling should surface via the fuzzy-match fallback")
}

func TestPreloader_RecordCoModificationIgnoresSelfPairs(t *testing.T) {
	p, _ := newTestPreloader(t)
	p.RecordCoModification("a.go", "a.go")
	assert.Empty(t, p.coModified["a.go"])
}

func TestPreloader_ScoreFiltersCandidatesBelowThreshold(t *testing.T) {
	p, _ := newTestPreloader(t)
	p.model = constantPredictor{value: 0.3}

	scored := p.score([]Candidate{{Path: "a.go"}, {Path: "b.go"}}, "trigger.go", 0.5)
	assert.Empty(t, scored)

	p.model = constantPredictor{value: 0.9}
	scored = p.score([]Candidate{{Path: "a.go"}, {Path: "b.go"}}, "trigger.go", 0.5)
	assert.Len(t, scored, 2)
}

func TestPreloader_LoadOneStoresFileInCache(t *testing.T) {
	p, fs := newTestPreloader(t)
	require.NoError(t, fs.Write("data.go", []byte("package data"), 0o644))

	abs, err := fs.Resolve("data.go")
	require.NoError(t, err)
	p.loadOne(abs)

	version, err := fs.VersionMarker(abs)
	require.NoError(t, err)
	key := cache.Key(cache.KindFile, abs, version)

	var loads int64
	value, err := p.ca.Get(key, abs, cache.KindFile, version, func() (interface{}, int64, types.VersionMarker, error) {
		atomic.AddInt64(&loads, 1)
		return []byte("package data"), 12, version, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("package data"), value)
	assert.EqualValues(t, 0, atomic.LoadInt64(&loads), "loadOne should have already populated the cache")
}

func TestPreloader_LoadOneIsNoopForMissingFile(t *testing.T) {
	p, fs := newTestPreloader(t)
	abs, err := fs.Resolve("missing.go")
	require.NoError(t, err)
	assert.NotPanics(t, func() { p.loadOne(abs) })
}

func TestPreloader_RunStartupWarmingSkipsWhenBackgroundDisabled(t *testing.T) {
	p, _ := newTestPreloader(t)
	gate := NewResourceGate(4)
	p.gate = gate
	p.ctrl = NewController(gate, AdaptiveConfig{BackgroundLoadingEnabled: false})

	p.RunStartupWarming()
	assert.True(t, gate.TryAcquire(), "no background load should have consumed a gate slot")
}
