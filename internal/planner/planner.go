// Package planner converts a request's operation list into a staged
// execution plan: it builds the dependency DAG, rejects cycles, computes
// Kahn-style stages, finds the critical path, and emits advisory
// groupings.
package planner

import (
	"fmt"
	"sort"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

// Stage is a maximal set of operations with identical dependency level,
// dispatched concurrently by the Execution Engine.
type Stage struct {
	Operations          []types.Operation
	CanRunInParallel    bool
	EstimatedDurationMs int64
}

// GroupType distinguishes the three advisory groupings.
type GroupType string

const (
	GroupLocality       GroupType = "locality"
	GroupOperationType  GroupType = "operation-type"
	GroupDependencyChain GroupType = "dependency-chain"
)

// OperationGroup is an advisory hint, never consulted for correctness.
type OperationGroup struct {
	Type           GroupType
	Operations     []types.Operation
	CanParallelise bool
}

// ExecutionPlan is the Planner's output, consumed by the Execution Engine.
type ExecutionPlan struct {
	Stages                       []Stage
	Groups                       []OperationGroup
	CriticalPath                 []string
	ParallelizationOpportunities int
	TotalEstimatedDurationMs     int64
}

// durationWeights is the opaque compile-time estimate table named in
// spec.md §9 as an open question; the units are not calibrated to any
// real clock, they exist only to order the critical path and roll up a
// total.
var durationWeights = map[types.OperationKind]int64{
	types.KindAnalyze:  200,
	types.KindEdit:     100,
	types.KindCreate:   100,
	types.KindDelete:   80,
	types.KindValidate: 300,
}

type node struct {
	op       types.Operation
	index    int // position in the original request, used for tie-breaking
	children []*node
	parents  []*node
	inDegree int
}

// Plan builds an ExecutionPlan from ops. It assigns stable ids to any
// operation lacking one before building the graph.
func Plan(ops []types.Operation) (*ExecutionPlan, error) {
	assigned := assignIDs(ops)

	nodesByID := make(map[string]*node, len(assigned))
	nodes := make([]*node, len(assigned))
	for i, op := range assigned {
		n := &node{op: op, index: i}
		nodes[i] = n
		nodesByID[op.ID] = n
	}

	// Unknown predecessor ids are silently ignored — treated as already
	// satisfied — per the fixed policy of spec.md §4.D step 2 / §9.
	for _, n := range nodes {
		for _, depID := range n.op.DependsOn {
			parent, ok := nodesByID[depID]
			if !ok {
				continue
			}
			parent.children = append(parent.children, n)
			n.parents = append(n.parents, parent)
			n.inDegree++
		}
	}

	if cyclePath := detectCycle(nodes); cyclePath != nil {
		return nil, ferrors.New(ferrors.CircularDependency, "plan", fmt.Errorf("cycle detected: %v", cyclePath))
	}

	stages := computeStages(nodes)
	critical := computeCriticalPath(nodes)
	groups := computeGroups(assigned)

	var total int64
	parallelOpportunities := 0
	planStages := make([]Stage, 0, len(stages))
	for _, level := range stages {
		var stageDuration int64
		ops := make([]types.Operation, 0, len(level))
		for _, n := range level {
			ops = append(ops, n.op)
			if w := durationWeights[n.op.Kind]; w > stageDuration {
				stageDuration = w
			}
		}
		total += stageDuration
		canParallel := len(level) > 1
		if canParallel {
			parallelOpportunities++
		}
		planStages = append(planStages, Stage{
			Operations:          ops,
			CanRunInParallel:    canParallel,
			EstimatedDurationMs: stageDuration,
		})
	}

	return &ExecutionPlan{
		Stages:                       planStages,
		Groups:                       groups,
		CriticalPath:                 critical,
		ParallelizationOpportunities: parallelOpportunities,
		TotalEstimatedDurationMs:     total,
	}, nil
}

// assignIDs returns a copy of ops where every operation has a stable,
// non-empty ID; client-supplied ids are left untouched.
func assignIDs(ops []types.Operation) []types.Operation {
	out := make([]types.Operation, len(ops))
	copy(out, ops)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = fmt.Sprintf("op-%d", i)
		}
	}
	return out
}

// color marks tri-colour DFS state for cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// detectCycle runs DFS with tri-colour marks and returns the operation ids
// forming a cycle, or nil if the graph is acyclic.
func detectCycle(nodes []*node) []string {
	colors := make(map[*node]color, len(nodes))
	var path []string

	var visit func(n *node) []string
	visit = func(n *node) []string {
		colors[n] = gray
		path = append(path, n.op.ID)

		for _, child := range n.children {
			switch colors[child] {
			case white:
				if cyc := visit(child); cyc != nil {
					return cyc
				}
			case gray:
				// found the back-edge: report the cycle slice from the
				// first occurrence of child in path
				for i, id := range path {
					if id == child.op.ID {
						cyc := make([]string, len(path[i:]))
						copy(cyc, path[i:])
						return append(cyc, child.op.ID)
					}
				}
				return []string{child.op.ID}
			}
		}

		colors[n] = black
		path = path[:len(path)-1]
		return nil
	}

	for _, n := range nodes {
		if colors[n] == white {
			if cyc := visit(n); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

// computeStages runs Kahn's algorithm: repeatedly peel off the current
// zero-in-degree frontier. Each frontier, in request order, is one stage.
func computeStages(nodes []*node) [][]*node {
	inDegree := make(map[*node]int, len(nodes))
	for _, n := range nodes {
		inDegree[n] = n.inDegree
	}

	var stages [][]*node
	remaining := len(nodes)
	for remaining > 0 {
		var frontier []*node
		for _, n := range nodes {
			if inDegree[n] == 0 {
				frontier = append(frontier, n)
			}
		}
		if len(frontier) == 0 {
			// Unreachable when detectCycle already ran, but guards against
			// an internal inconsistency rather than looping forever.
			break
		}
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].index < frontier[j].index })
		stages = append(stages, frontier)
		for _, n := range frontier {
			inDegree[n] = -1 // mark consumed so it is never re-selected
			remaining--
			for _, child := range n.children {
				inDegree[child]--
			}
		}
	}
	return stages
}

// computeCriticalPath finds the longest path in the DAG by weighted
// duration, breaking ties by earliest request order. It returns operation
// ids along that path.
func computeCriticalPath(nodes []*node) []string {
	if len(nodes) == 0 {
		return nil
	}
	sorted := topoOrder(nodes)

	longest := make(map[*node]int64, len(nodes))
	prev := make(map[*node]*node, len(nodes))
	for _, n := range sorted {
		longest[n] = durationWeights[n.op.Kind]
	}
	for _, n := range sorted {
		for _, child := range n.children {
			candidate := longest[n] + durationWeights[child.op.Kind]
			if candidate > longest[child] ||
				(candidate == longest[child] && betterTieBreak(n, prev[child])) {
				longest[child] = candidate
				prev[child] = n
			}
		}
	}

	var end *node
	for _, n := range sorted {
		if end == nil || longest[n] > longest[end] ||
			(longest[n] == longest[end] && n.index < end.index) {
			end = n
		}
	}

	var path []string
	for n := end; n != nil; n = prev[n] {
		path = append([]string{n.op.ID}, path...)
	}
	return path
}

func betterTieBreak(candidate, current *node) bool {
	if current == nil {
		return true
	}
	return candidate.index < current.index
}

// topoOrder returns nodes in a valid topological order via Kahn's
// algorithm, used internally by computeCriticalPath.
func topoOrder(nodes []*node) []*node {
	inDegree := make(map[*node]int, len(nodes))
	for _, n := range nodes {
		inDegree[n] = n.inDegree
	}
	var queue []*node
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].index < queue[j].index })

	var order []*node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		var newlyReady []*node
		for _, child := range n.children {
			inDegree[child]--
			if inDegree[child] == 0 {
				newlyReady = append(newlyReady, child)
			}
		}
		sort.Slice(newlyReady, func(i, j int) bool { return newlyReady[i].index < newlyReady[j].index })
		queue = append(queue, newlyReady...)
	}
	return order
}

// computeGroups emits the three advisory groupings: same-file locality,
// identical operation kind, and linear dependency chains.
func computeGroups(ops []types.Operation) []OperationGroup {
	groups := make([]OperationGroup, 0, 3)

	byFile := make(map[string][]types.Operation)
	for _, op := range ops {
		for _, f := range filesTouched(op) {
			byFile[f] = append(byFile[f], op)
		}
	}
	fileKeys := make([]string, 0, len(byFile))
	for f := range byFile {
		fileKeys = append(fileKeys, f)
	}
	sort.Strings(fileKeys)
	for _, f := range fileKeys {
		ops := byFile[f]
		if len(ops) > 1 {
			groups = append(groups, OperationGroup{Type: GroupLocality, Operations: ops, CanParallelise: false})
		}
	}

	byKind := make(map[types.OperationKind][]types.Operation)
	for _, op := range ops {
		byKind[op.Kind] = append(byKind[op.Kind], op)
	}
	kinds := []types.OperationKind{types.KindAnalyze, types.KindEdit, types.KindCreate, types.KindDelete, types.KindValidate}
	for _, k := range kinds {
		if group := byKind[k]; len(group) > 1 {
			groups = append(groups, OperationGroup{Type: GroupOperationType, Operations: group, CanParallelise: k == types.KindAnalyze})
		}
	}

	for _, chain := range linearChains(ops) {
		if len(chain) > 1 {
			groups = append(groups, OperationGroup{Type: GroupDependencyChain, Operations: chain, CanParallelise: false})
		}
	}

	return groups
}

// linearChains finds maximal runs of operations where each depends on
// exactly one known predecessor and that predecessor has exactly one
// known dependent — a pure chain, not a fan-out or fan-in.
func linearChains(ops []types.Operation) [][]types.Operation {
	byID := make(map[string]types.Operation, len(ops))
	for _, op := range ops {
		byID[op.ID] = op
	}

	knownParents := make(map[string][]string) // op id -> known predecessor ids
	children := make(map[string][]string)      // op id -> known dependent ids
	for _, op := range ops {
		for _, dep := range op.DependsOn {
			if _, ok := byID[dep]; ok {
				knownParents[op.ID] = append(knownParents[op.ID], dep)
				children[dep] = append(children[dep], op.ID)
			}
		}
	}

	isLink := func(parent, child string) bool {
		return len(children[parent]) == 1 && children[parent][0] == child &&
			len(knownParents[child]) == 1 && knownParents[child][0] == parent
	}

	var chains [][]types.Operation
	visited := make(map[string]bool)
	for _, op := range ops {
		id := op.ID
		if visited[id] {
			continue
		}
		parents := knownParents[id]
		startsChain := len(parents) == 1 && isLink(parents[0], id)
		if !startsChain {
			continue
		}
		// walk backwards to the true chain head so each chain is visited once
		head := id
		for {
			hp := knownParents[head]
			if len(hp) != 1 || !isLink(hp[0], head) {
				break
			}
			head = hp[0]
		}
		if visited[head] {
			continue
		}

		chain := []types.Operation{byID[head]}
		visited[head] = true
		cur := head
		for {
			kids := children[cur]
			if len(kids) != 1 || !isLink(cur, kids[0]) {
				break
			}
			cur = kids[0]
			chain = append(chain, byID[cur])
			visited[cur] = true
		}
		if len(chain) > 1 {
			chains = append(chains, chain)
		}
	}
	return chains
}

// filesTouched returns every file path referenced by op, used for the
// locality grouping.
func filesTouched(op types.Operation) []string {
	var files []string
	switch op.Kind {
	case types.KindAnalyze:
		if op.Analyze != nil {
			files = append(files, op.Analyze.Paths...)
		}
	case types.KindEdit:
		if op.Edit != nil {
			for _, e := range op.Edit.Edits {
				files = append(files, e.File)
			}
		}
	case types.KindCreate:
		if op.Create != nil {
			for _, f := range op.Create.Files {
				files = append(files, f.Path)
			}
		}
	case types.KindDelete:
		if op.Delete != nil {
			files = append(files, op.Delete.Paths...)
		}
	case types.KindValidate:
		if op.Validate != nil {
			files = append(files, op.Validate.Files...)
		}
	}
	return files
}
