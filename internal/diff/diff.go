// Package diff produces unified diffs for the Editor's dry-run preview,
// using the same diff library the teacher's dependency set already carries.
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Unified renders a unified diff between before and after, labelled with
// path on both sides (a dry-run never produces two distinct file names).
func Unified(path string, before, after []byte) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// LineCount counts changed lines between before and after using the same
// diff, for a caller that wants a number rather than text. The engine's
// "changes" count does not use it.
func LineCount(before, after []byte) int {
	beforeLines := difflib.SplitLines(string(before))
	afterLines := difflib.SplitLines(string(after))
	matcher := difflib.NewMatcher(beforeLines, afterLines)
	count := 0
	for _, op := range matcher.GetOpCodes() {
		if op.Tag != 'e' {
			count += maxInt(op.I2-op.I1, op.J2-op.J1)
		}
	}
	return count
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// TrimTrailingNewline is a small convenience used when comparing file
// content that may or may not carry a final newline.
func TrimTrailingNewline(s string) string {
	return strings.TrimSuffix(s, "\n")
}
