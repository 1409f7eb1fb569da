package engine

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/standardbeagle/fileforge/internal/diff"
	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

// edit applies every FileEdit in order, snapshotting pre-content for
// transactional rollback before mutating, and skipping the actual write
// when dry_run is set while still reporting the change count a real run
// would have produced.
func (d *dispatcher) edit(ctx context.Context, op types.Operation) types.OperationResult {
	e := op.Edit
	if e == nil || len(e.Edits) == 0 {
		return errorResult(op, ferrors.New(ferrors.Validation, "edit", errMissingFields("edit.edits")))
	}

	changeCounts := make(map[string]int, len(e.Edits))
	previews := make(map[string]string, len(e.Edits))
	var parseErrors []string

	for _, fe := range e.Edits {
		if isCancelled(ctx) {
			return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled}
		}

		abs, err := d.resolveAndCheck(fe.File)
		if err != nil {
			return errorResult(op, err)
		}

		original, err := d.engine.fs.Read(fe.File)
		if err != nil {
			return errorResult(op, err)
		}

		mutated, count, err := applyChanges(original, fe.Changes)
		if err != nil {
			return errorResult(op, err)
		}
		changeCounts[fe.File] = count

		if parsed, perr := d.parseCached(abs, fe.File, mutated); perr == nil {
			parseErrors = append(parseErrors, parsed.Errors...)
		}

		if e.DryRun {
			if preview, perr := diff.Unified(fe.File, original, mutated); perr == nil {
				previews[fe.File] = preview
			}
			continue
		}

		if op.Transaction != "" {
			d.engine.txm.Begin(op.Transaction)
			d.engine.txm.SnapshotEdit(op.Transaction, fe.File, true, original, 0o644)
		}

		if e.CreateBackup {
			if err := d.engine.fs.Write(fe.File+".bak", original, 0o644); err != nil {
				return errorResult(op, err)
			}
		}

		if err := d.engine.fs.Write(fe.File, mutated, fs.FileMode(0o644)); err != nil {
			return errorResult(op, err)
		}
	}

	data := map[string]interface{}{"changes": changeCounts}
	if len(parseErrors) > 0 {
		data["parse_errors"] = parseErrors
	}
	if e.DryRun && len(previews) > 0 {
		data["diff_preview"] = previews
	}
	return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusSuccess, Data: data}
}

// applyChanges runs every Change against content in order, returning the
// mutated bytes and the number of individual changes actually applied.
func applyChanges(content []byte, changes []types.Change) ([]byte, int, error) {
	text := string(content)
	applied := 0
	for _, c := range changes {
		var err error
		var count int
		text, count, err = applyOneChange(text, c)
		if err != nil {
			return nil, 0, err
		}
		applied += count
	}
	return []byte(text), applied, nil
}

func applyOneChange(text string, c types.Change) (string, int, error) {
	switch c.Kind {
	case types.ChangeFindReplace:
		return applyFindReplace(text, c)
	case types.ChangeInsertLine:
		return insertAtLine(text, c.Line, c.Text), 1, nil
	case types.ChangeReplaceLine:
		return replaceLine(text, c.Line, c.Text), 1, nil
	case types.ChangeDeleteLine:
		return deleteLine(text, c.Line), 1, nil
	case types.ChangeInsertOffset:
		return insertAtOffset(text, c.Offset, c.Text), 1, nil
	case types.ChangeASTRewrite:
		// AST-guided rewrite depends on a concrete per-language plugin
		// implementing a selector-based transform; the reference plugin in
		// this engine is regex-only and does not support it.
		return text, 0, ferrors.New(ferrors.ParseError, "edit", fmt.Errorf("ast_rewrite unsupported by the registered plugin for selector %q", c.Selector))
	default:
		return text, 0, ferrors.New(ferrors.Validation, "edit", fmt.Errorf("unknown change kind %q", c.Kind))
	}
}

func applyFindReplace(text string, c types.Change) (string, int, error) {
	if c.Regex {
		re, err := regexp.Compile(c.Find)
		if err != nil {
			return text, 0, ferrors.New(ferrors.Validation, "edit", fmt.Errorf("invalid regex %q: %w", c.Find, err))
		}
		matches := re.FindAllStringIndex(text, -1)
		return re.ReplaceAllString(text, c.Replace), len(matches), nil
	}
	count := strings.Count(text, c.Find)
	return strings.ReplaceAll(text, c.Find, c.Replace), count, nil
}

func splitLinesKeepEnding(text string) []string {
	return strings.Split(text, "\n")
}

func insertAtLine(text string, line int, newText string) string {
	lines := splitLinesKeepEnding(text)
	idx := clampLine(line, len(lines))
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:idx]...)
	out = append(out, newText)
	out = append(out, lines[idx:]...)
	return strings.Join(out, "\n")
}

func replaceLine(text string, line int, newText string) string {
	lines := splitLinesKeepEnding(text)
	idx := clampLine(line, len(lines)) - 1
	if idx < 0 || idx >= len(lines) {
		return text
	}
	lines[idx] = newText
	return strings.Join(lines, "\n")
}

func deleteLine(text string, line int) string {
	lines := splitLinesKeepEnding(text)
	idx := clampLine(line, len(lines)) - 1
	if idx < 0 || idx >= len(lines) {
		return text
	}
	lines = append(lines[:idx], lines[idx+1:]...)
	return strings.Join(lines, "\n")
}

func clampLine(line, total int) int {
	if line < 1 {
		return 1
	}
	if line > total {
		return total
	}
	return line
}

func insertAtOffset(text string, offset int, newText string) string {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	return text[:offset] + newText + text[offset:]
}
