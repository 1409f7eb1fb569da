package engine

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/standardbeagle/fileforge/internal/cache"
	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

// fileAnalysis is the per-path result memoized in Cache under KindAnalyze.
type fileAnalysis struct {
	Language string   `json:"language,omitempty"`
	Symbols  []string `json:"symbols,omitempty"`
	Imports  []string `json:"imports,omitempty"`
	Exports  []string `json:"exports,omitempty"`
	Matches  []int    `json:"matches,omitempty"` // matching line numbers, 1-based
	Errors   []string `json:"errors,omitempty"`
}

// analyze resolves every path in order, serving each from cache when
// possible, and aggregates matches/extracted data into a per-file map keyed
// by path, with parse errors sorted so the output does not depend on order.
func (d *dispatcher) analyze(ctx context.Context, op types.Operation) types.OperationResult {
	a := op.Analyze
	if a == nil || len(a.Paths) == 0 {
		return errorResult(op, ferrors.New(ferrors.Validation, "analyze", errMissingFields("analyze.paths")))
	}

	fp := analyzeFingerprint(a)
	perFile := make(map[string]fileAnalysis, len(a.Paths))
	var totalMatches int
	var allErrors []string

	for _, p := range a.Paths {
		if isCancelled(ctx) {
			return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled}
		}

		abs, err := d.resolveAndCheck(p)
		if err != nil {
			return errorResult(op, err)
		}
		version, err := d.engine.fs.VersionMarker(p)
		if err != nil {
			return errorResult(op, err)
		}
		key := cache.Key(cache.KindAnalyze, abs+"#"+fp, version)

		raw, err := d.engine.ca.Get(key, abs, cache.KindAnalyze, version, func() (interface{}, int64, types.VersionMarker, error) {
			content, err := d.engine.fs.Read(p)
			if err != nil {
				return nil, 0, types.VersionMarker{}, err
			}
			fa := fileAnalysis{}
			parsed, perr := d.parseCached(abs, p, content)
			if perr == nil {
				fa.Language = parsed.Language
				fa.Symbols = parsed.Symbols
				fa.Imports = parsed.Imports
				fa.Exports = parsed.Exports
				fa.Errors = parsed.Errors
			}
			fa.Matches = searchMatches(content, a.Search, a.Patterns)
			return fa, int64(len(content)), version, nil
		})
		if err != nil {
			return errorResult(op, err)
		}
		fa := raw.(fileAnalysis)
		perFile[p] = fa
		totalMatches += len(fa.Matches)
		allErrors = append(allErrors, fa.Errors...)
	}

	data := map[string]interface{}{
		"files":         perFile,
		"total_matches": totalMatches,
	}
	if len(allErrors) > 0 {
		sort.Strings(allErrors)
		data["parse_errors"] = allErrors
	}

	return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusSuccess, Data: data}
}

// searchMatches returns 1-based line numbers matching a literal search
// term or any of the supplied regex patterns.
func searchMatches(content []byte, search string, patterns []string) []int {
	if search == "" && len(patterns) == 0 {
		return nil
	}
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}

	var matches []int
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if search != "" && strings.Contains(line, search) {
			matches = append(matches, i+1)
			continue
		}
		for _, re := range compiled {
			if re.MatchString(line) {
				matches = append(matches, i+1)
				break
			}
		}
	}
	return matches
}

type errMissingFields string

func (e errMissingFields) Error() string { return "missing required field(s): " + string(e) }
