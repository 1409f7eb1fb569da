package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fileforge/internal/ast"
)

func newTestFacade() *ast.Facade {
	registry := ast.NewRegistry()
	registry.Register(ast.NewGoLinePlugin())
	return ast.NewFacade(registry)
}

func TestWorkspaceGraph_RebuildComputesOutAndInEdges(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)

	files := map[string][]byte{
		"main.go": []byte("package main\n\nimport \"lib\"\n"),
		"lib.go":  []byte("package lib\n"),
	}
	g.Rebuild(files)

	assert.Equal(t, 1, g.OutDegree("main.go"))
	assert.Equal(t, 1, g.InDegree("lib"))
	assert.Contains(t, g.Dependencies("main.go"), "lib")
	assert.Contains(t, g.Dependents("lib"), "main.go")
}

func TestWorkspaceGraph_EntryPointHasOutgoingButNoIncoming(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	g.Rebuild(map[string][]byte{
		"main.go": []byte("package main\n\nimport \"lib\"\n"),
	})
	assert.True(t, g.IsEntryPoint("main.go"))
}

func TestWorkspaceGraph_CoreFileHasThreeOrMoreDependents(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	g.Rebuild(map[string][]byte{
		"a.go": []byte("package a\n\nimport \"shared\"\n"),
		"b.go": []byte("package b\n\nimport \"shared\"\n"),
		"c.go": []byte("package c\n\nimport \"shared\"\n"),
	})
	assert.True(t, g.IsCoreFile("shared"))
}

func TestWorkspaceGraph_StaleReportsTrueBeforeFirstRebuild(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	assert.True(t, g.Stale())
	g.Rebuild(map[string][]byte{"a.go": []byte("package a\n")})
	assert.False(t, g.Stale())
}

func TestWorkspaceGraph_SameDirectoryExcludesSelf(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	g.Rebuild(map[string][]byte{
		"pkg/a.go": []byte("package pkg\n"),
		"pkg/b.go": []byte("package pkg\n"),
		"other/c.go": []byte("package other\n"),
	})
	siblings := g.SameDirectory("pkg/a.go")
	require.Len(t, siblings, 1)
	assert.Equal(t, "pkg/b.go", siblings[0])
}

func TestWorkspaceGraph_ClustersGroupConnectedFilesTogether(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	g.Rebuild(map[string][]byte{
		"a.go":        []byte("package a\n\nimport \"b.go\"\n"),
		"b.go":        []byte("package b\n\nimport \"c.go\"\n"),
		"c.go":        []byte("package c\n"),
		"isolated.go": []byte("package isolated\n"),
	})

	clusters := g.Clusters()
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, clusters[0], "the larger, fully-chained component sorts first")
	assert.Equal(t, []string{"isolated.go"}, clusters[1])
}

func TestWorkspaceGraph_ClustersAreUndirected(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	g.Rebuild(map[string][]byte{
		"shared.go": []byte("package shared\n"),
		"b.go":      []byte("package b\n\nimport \"shared.go\"\n"),
		"c.go":      []byte("package c\n\nimport \"shared.go\"\n"),
	})

	clusters := g.Clusters()
	require.Len(t, clusters, 1, "b and c share no direct edge but both reach shared.go, so they belong to one component")
	assert.Equal(t, []string{"b.go", "c.go", "shared.go"}, clusters[0])
}

func TestWorkspaceGraph_CriticalPathFindsLongestChain(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	g.Rebuild(map[string][]byte{
		"a.go": []byte("package a\n\nimport \"b.go\"\n"),
		"b.go": []byte("package b\n\nimport \"c.go\"\n"),
		"c.go": []byte("package c\n\nimport \"d.go\"\n"),
		"d.go": []byte("package d\n"),
		"e.go": []byte("package e\n\nimport \"f.go\"\n"),
		"f.go": []byte("package f\n"),
	})

	assert.Equal(t, []string{"a.go", "b.go", "c.go", "d.go"}, g.CriticalPath())
}

func TestWorkspaceGraph_CriticalPathStopsAtAnImportCycle(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	g.Rebuild(map[string][]byte{
		"a.go": []byte("package a\n\nimport \"b.go\"\n"),
		"b.go": []byte("package b\n\nimport \"a.go\"\n"),
	})

	path := g.CriticalPath()
	assert.LessOrEqual(t, len(path), 2, "a cycle must not be followed forever")
	assert.NotEmpty(t, path)
}

func TestWorkspaceGraph_MeanDependencyStrengthIsInverseImportCount(t *testing.T) {
	af := newTestFacade()
	g := NewWorkspaceGraph(af, time.Hour)
	g.Rebuild(map[string][]byte{
		"main.go": []byte("package main\n\nimport \"one\"\n"),
	})
	assert.InDelta(t, 1.0, g.MeanDependencyStrength("main.go"), 1e-9)
}
