package engine

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/fileforge/internal/ast"
	"github.com/standardbeagle/fileforge/internal/cache"
	"github.com/standardbeagle/fileforge/internal/types"
)

// parseCached memoizes a Parse call under cache.KindAST, keyed by (abs
// path, content hash) rather than a file's on-disk version marker: a
// parse result is a pure function of content, and content hash is a valid
// identity for bytes that were never themselves written to disk (an
// Edit's mutated preview), where fs.VersionMarker has nothing to report.
// This gives every Analyze/Edit/Validate call site the same memoized AST
// layer analyze.go already gives its aggregate fileAnalysis under
// KindAnalyze.
func (d *dispatcher) parseCached(abs, path string, content []byte) (ast.ParseResult, error) {
	key := cache.Key(cache.KindAST, abs+"#"+contentFingerprint(content), types.VersionMarker{})
	raw, err := d.engine.ca.Get(key, abs, cache.KindAST, types.VersionMarker{}, func() (interface{}, int64, types.VersionMarker, error) {
		parsed, perr := d.engine.af.Parse(path, content)
		if perr != nil {
			return nil, 0, types.VersionMarker{}, perr
		}
		return parsed, int64(len(content)), types.VersionMarker{}, nil
	})
	if err != nil {
		return ast.ParseResult{}, err
	}
	return raw.(ast.ParseResult), nil
}

func contentFingerprint(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}
