package predictor

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/standardbeagle/fileforge/internal/ast"
)

// WorkspaceGraph is the lazily-built workspace dependency graph named in
// spec.md §4.G signal source 2 and spec.md §3's data model: file →
// outgoing dependencies and → incoming dependents, plus clusters
// (connected subgraphs, edges treated as undirected) and critical paths
// (the longest chain of direct dependencies), built on demand from AST
// Facade import extraction and cached with a recency threshold so
// repeated predictions don't re-parse every file.
type WorkspaceGraph struct {
	af *ast.Facade

	mu        sync.RWMutex
	builtAt   time.Time
	freshness time.Duration
	out       map[string][]string
	in        map[string][]string
	strength  map[string]float64 // mean dependency strength per path
	entry     map[string]bool
	core      map[string]bool
	clusters  [][]string // connected components, largest first, each sorted
	critical  []string   // longest directed dependency chain found
}

// NewWorkspaceGraph builds an empty graph that reports itself Stale once it
// is older than freshness. It never rebuilds itself; the caller runs Rebuild.
func NewWorkspaceGraph(af *ast.Facade, freshness time.Duration) *WorkspaceGraph {
	if freshness <= 0 {
		freshness = 5 * time.Minute
	}
	return &WorkspaceGraph{af: af, freshness: freshness,
		out: make(map[string][]string), in: make(map[string][]string),
		strength: make(map[string]float64), entry: make(map[string]bool), core: make(map[string]bool)}
}

// Stale reports whether the graph is due for a rebuild.
func (g *WorkspaceGraph) Stale() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return time.Since(g.builtAt) > g.freshness
}

// Rebuild recomputes edges from a fresh (path, content) pairing supplied
// by the caller — this package has no File Service dependency of its own,
// so it never decides which files to read, only how to interpret them.
func (g *WorkspaceGraph) Rebuild(files map[string][]byte) {
	out := make(map[string][]string, len(files))
	in := make(map[string][]string, len(files))
	strength := make(map[string]float64, len(files))

	for path, content := range files {
		imports := g.af.ExtractImports(path, content)
		targets := make([]string, 0, len(imports))
		for _, imp := range imports {
			targets = append(targets, imp.Target)
			in[imp.Target] = append(in[imp.Target], path)
		}
		sort.Strings(targets)
		out[path] = targets
		if len(imports) > 0 {
			strength[path] = 1.0 / float64(len(imports))
		}
	}

	entry := make(map[string]bool)
	for path := range files {
		if len(in[path]) == 0 && len(out[path]) > 0 {
			entry[path] = true
		}
	}
	core := make(map[string]bool)
	for path, incoming := range in {
		if len(incoming) >= 3 {
			core[path] = true
		}
	}

	nodes := make(map[string]bool, len(files))
	for path := range files {
		nodes[path] = true
	}
	clusters := connectedComponents(nodes, out)
	critical := longestChain(nodes, out)

	g.mu.Lock()
	g.out, g.in, g.strength, g.entry, g.core = out, in, strength, entry, core
	g.clusters, g.critical = clusters, critical
	g.builtAt = time.Now()
	g.mu.Unlock()
}

// connectedComponents groups nodes reachable from one another through any
// chain of imports, direction ignored, via union-find — the same
// algorithm shape spec.md §3 calls "clusters (connected subgraphs)".
// Edges to targets outside nodes (an external package import, not a file
// in this workspace) are not unioned, since they have no component of
// their own to join.
func connectedComponents(nodes map[string]bool, out map[string][]string) [][]string {
	parent := make(map[string]string, len(nodes))
	for n := range nodes {
		parent[n] = n
	}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for from, targets := range out {
		if !nodes[from] {
			continue
		}
		for _, to := range targets {
			if nodes[to] {
				union(from, to)
			}
		}
	}

	groups := make(map[string][]string)
	for n := range nodes {
		root := find(n)
		groups[root] = append(groups[root], n)
	}
	clusters := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		clusters = append(clusters, members)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}

// longestChain returns the longest sequence of files found by following
// direct outgoing dependencies — spec.md §3's "critical paths (longest
// chains)". A node already on the current path is not re-entered, so an
// import cycle stops the chain there instead of looping forever; out's
// targets are pre-sorted by Rebuild, so ties resolve deterministically.
func longestChain(nodes map[string]bool, out map[string][]string) []string {
	memo := make(map[string][]string, len(nodes))
	onPath := make(map[string]bool, len(nodes))

	var walk func(string) []string
	walk = func(n string) []string {
		if path, ok := memo[n]; ok {
			return path
		}
		onPath[n] = true
		best := []string{n}
		for _, child := range out[n] {
			if !nodes[child] || onPath[child] {
				continue
			}
			candidate := append([]string{n}, walk(child)...)
			if len(candidate) > len(best) {
				best = candidate
			}
		}
		onPath[n] = false
		memo[n] = best
		return best
	}

	names := make([]string, 0, len(nodes))
	for n := range nodes {
		names = append(names, n)
	}
	sort.Strings(names)

	var overall []string
	for _, n := range names {
		if path := walk(n); len(path) > len(overall) {
			overall = path
		}
	}
	return overall
}

func (g *WorkspaceGraph) OutDegree(path string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.out[path])
}

func (g *WorkspaceGraph) InDegree(path string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.in[path])
}

func (g *WorkspaceGraph) MeanDependencyStrength(path string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.strength[path]
}

func (g *WorkspaceGraph) IsEntryPoint(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entry[path]
}

func (g *WorkspaceGraph) IsCoreFile(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.core[path]
}

// Dependents returns the direct incoming dependents of path.
func (g *WorkspaceGraph) Dependents(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.in[path]))
	copy(out, g.in[path])
	return out
}

// Dependencies returns the direct outgoing dependencies of path.
func (g *WorkspaceGraph) Dependencies(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.out[path]))
	copy(out, g.out[path])
	return out
}

// Clusters returns the connected components of the dependency graph,
// largest first, each internally sorted.
func (g *WorkspaceGraph) Clusters() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([][]string, len(g.clusters))
	for i, c := range g.clusters {
		cp := make([]string, len(c))
		copy(cp, c)
		out[i] = cp
	}
	return out
}

// CriticalPath returns the longest chain of direct dependencies found
// across the whole graph.
func (g *WorkspaceGraph) CriticalPath() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.critical))
	copy(out, g.critical)
	return out
}

// entryPaths returns every path currently classified as an entry point,
// used by startup warming.
func (g *WorkspaceGraph) entryPaths() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.entry))
	for p := range g.entry {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SameDirectory returns every known path sharing path's directory,
// excluding path itself — the "locality" candidate source.
func (g *WorkspaceGraph) SameDirectory(path string) []string {
	dir := filepath.Dir(path)
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for p := range g.out {
		if p != path && filepath.Dir(p) == dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
