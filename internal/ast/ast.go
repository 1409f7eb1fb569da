// Package ast is the language-detecting front end that dispatches parsing
// to registered plugins; memoizing their results is left to callers. The concrete
// per-language plugins (tree-sitter grammars and the like) are an explicit
// external collaborator of this engine, not part of its core; this package
// defines the plugin contract and dispatch, plus one reference plugin so
// the facade is exercised end to end without any grammar dependency.
package ast

import (
	"sort"
	"strings"
	"sync"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
)

// ParseResult is the normalized output of any plugin.
type ParseResult struct {
	Language string
	Symbols  []string
	Imports  []string
	Exports  []string
	Errors   []string
}

// ImportInfo describes one import/dependency edge extracted from a file,
// feeding the workspace dependency graph the Predictor consumes.
type ImportInfo struct {
	Path   string
	Target string
}

// Plugin is what the core requires of a language parser. Parse must never
// panic on malformed input — structural errors are reported in
// ParseResult.Errors, not via a Go error return, matching spec.md §4.C.
type Plugin interface {
	Name() string
	Extensions() []string
	Supports(path string, content []byte) bool
	Parse(content []byte, path string) ParseResult
}

// ImportExtractor is an optional capability a Plugin may additionally
// implement.
type ImportExtractor interface {
	ExtractImports(path string, content []byte) []ImportInfo
}

// Registry holds registered plugins and performs most-specific-extension
// dispatch.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a plugin. Plugins are tried in registration order when
// extensions tie in specificity, so callers should register more specific
// plugins first if that matters to them.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
}

// Select returns the best plugin for path, preferring the registered
// plugin whose matched extension is longest (most specific — e.g. ".d.ts"
// over ".ts"), breaking ties by declared capability richness (an
// ImportExtractor outranks a plugin without one).
func (r *Registry) Select(path string, content []byte) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowerPath := strings.ToLower(path)
	var best Plugin
	bestSpecificity := -1
	for _, p := range r.plugins {
		if !p.Supports(path, content) {
			continue
		}
		specificity := 0
		for _, ext := range p.Extensions() {
			ext = strings.ToLower(ext)
			if strings.HasSuffix(lowerPath, ext) && len(ext) > specificity {
				specificity = len(ext)
			}
		}
		if specificity == 0 {
			continue
		}
		if specificity > bestSpecificity {
			best = p
			bestSpecificity = specificity
			continue
		}
		if specificity == bestSpecificity && best != nil {
			_, bestHasExtract := best.(ImportExtractor)
			_, pHasExtract := p.(ImportExtractor)
			if pHasExtract && !bestHasExtract {
				best = p
			}
		}
	}
	return best, best != nil
}

// Facade is the public entry point: given content for a path, it selects a
// plugin, parses, and returns a ParseResult. Memoization is the caller's
// responsibility via Cache — this package has no cache dependency, keeping
// the dependency graph acyclic (Cache doesn't know about AST, AST doesn't
// own caching policy).
type Facade struct {
	registry *Registry
}

// NewFacade builds a Facade over registry (a fresh empty one when nil). It
// registers no plugin itself; a facade over an empty registry matches no file.
func NewFacade(registry *Registry) *Facade {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Facade{registry: registry}
}

// Registry exposes the underlying registry for additional plugin
// registration by the embedding application.
func (f *Facade) Registry() *Registry { return f.registry }

// Parse dispatches to the best-matching plugin. Parse errors from within
// the plugin are always returned inside ParseResult.Errors, never as a Go
// error; a Go error return here means no plugin could handle the file at
// all, which is itself reported using the fixed ParseError taxonomy code.
func (f *Facade) Parse(path string, content []byte) (ParseResult, error) {
	plugin, ok := f.registry.Select(path, content)
	if !ok {
		return ParseResult{}, ferrors.New(ferrors.ParseError, "parse", errNoPlugin).WithPath(path)
	}
	result := plugin.Parse(content, path)
	if result.Language == "" {
		result.Language = plugin.Name()
	}
	sort.Strings(result.Symbols)
	sort.Strings(result.Imports)
	sort.Strings(result.Exports)
	return result, nil
}

// ExtractImports returns import edges for path if the selected plugin
// supports the optional capability; an empty slice otherwise.
func (f *Facade) ExtractImports(path string, content []byte) []ImportInfo {
	plugin, ok := f.registry.Select(path, content)
	if !ok {
		return nil
	}
	extractor, ok := plugin.(ImportExtractor)
	if !ok {
		return nil
	}
	return extractor.ExtractImports(path, content)
}

var errNoPlugin = pluginErr("no registered plugin supports this file")

type pluginErr string

func (e pluginErr) Error() string { return string(e) }
