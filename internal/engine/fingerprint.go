package engine

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/fileforge/internal/types"
)

// analyzeFingerprint hashes the parts of an AnalyzeOp that affect its
// result for a single path, so the cache key spec.md §4.F names —
// "(analyze, abs_path, op fingerprint)" — is stable across requests that
// ask the same question and changes whenever the question changes.
func analyzeFingerprint(op *types.AnalyzeOp) string {
	h := xxhash.New()
	h.WriteString(op.Search)
	h.WriteString("|")
	h.WriteString(strings.Join(op.Patterns, ","))
	h.WriteString("|")
	h.WriteString(strings.Join(op.Extract, ","))
	return strconv.FormatUint(h.Sum64(), 16)
}
