package engine

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

// checkResult is one file's outcome for one named check.
type checkResult struct {
	File  string `json:"file"`
	Check string `json:"check"`
	Ok    bool   `json:"ok"`
	Issue string `json:"issue,omitempty"`
	Fixed bool   `json:"fixed,omitempty"`
}

// validate runs the requested checks against every file. The only checks
// this engine can evaluate without an external collaborator (a sandboxed
// evaluator or a shelled-out linter, both explicit non-goals) are "exists"
// and "syntax" (a parse pass through the AST Facade); any other requested
// check name is reported as an issue rather than silently ignored, so a
// caller notices a typo instead of getting a false pass. v.Commands is
// reported the same way: this engine never shells out, so each requested
// command becomes a failing result rather than being dropped silently. If
// Fix is set, autoFix repairs whatever it can through the transactional
// write path edit.go and create.go already use.
func (d *dispatcher) validate(ctx context.Context, op types.Operation) types.OperationResult {
	v := op.Validate
	if v == nil || (len(v.Files) == 0 && len(v.Commands) == 0) {
		return errorResult(op, ferrors.New(ferrors.Validation, "validate", errMissingFields("validate.files")))
	}

	checks := v.Checks
	if len(checks) == 0 {
		checks = []string{"exists", "syntax"}
	}

	var results []checkResult
	failures := 0

	for _, file := range v.Files {
		if isCancelled(ctx) {
			return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled}
		}
		abs, err := d.resolveAndCheck(file)
		if err != nil {
			return errorResult(op, err)
		}

		fileResults := make([]checkResult, 0, len(checks))
		for _, check := range checks {
			fileResults = append(fileResults, d.runCheck(abs, file, check))
		}

		if v.Fix {
			d.autoFix(op, file, fileResults)
		}

		for _, res := range fileResults {
			if !res.Ok {
				failures++
			}
		}
		results = append(results, fileResults...)
	}

	// commands are reported as unsupported checks rather than shelled out
	// to, so a commands-only request surfaces non-zero failures instead of
	// a silent, meaningless success.
	for _, cmd := range v.Commands {
		results = append(results, checkResult{
			Check: "command",
			Issue: fmt.Sprintf("command checks are unsupported: running %q would require shelling out, which this engine does not do", cmd),
		})
		failures++
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].File != results[j].File {
			return results[i].File < results[j].File
		}
		return results[i].Check < results[j].Check
	})

	data := map[string]interface{}{"results": results, "failures": failures}
	return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusSuccess, Data: data}
}

func (d *dispatcher) runCheck(abs, file, check string) checkResult {
	switch check {
	case "exists":
		if d.engine.fs.Exists(file) {
			return checkResult{File: file, Check: check, Ok: true}
		}
		return checkResult{File: file, Check: check, Ok: false, Issue: "file does not exist"}
	case "syntax":
		content, err := d.engine.fs.Read(file)
		if err != nil {
			return checkResult{File: file, Check: check, Ok: false, Issue: err.Error()}
		}
		parsed, perr := d.parseCached(abs, file, content)
		if perr != nil {
			return checkResult{File: file, Check: check, Ok: false, Issue: perr.Error()}
		}
		if len(parsed.Errors) > 0 {
			return checkResult{File: file, Check: check, Ok: false, Issue: parsed.Errors[0]}
		}
		return checkResult{File: file, Check: check, Ok: true}
	default:
		return checkResult{File: file, Check: check, Ok: false, Issue: fmt.Sprintf("unrecognised check %q", check)}
	}
}

// autoFix repairs whichever failing checks this engine knows how to repair,
// mutating the matching entry in fileResults in place once a fix lands.
// Only "exists" is fixable without a language-specific rewrite: the file is
// created through the same snapshot-then-write path create.go uses, so a
// transaction around this Validate rolls the created file back exactly
// like a Create would. "syntax" failures (and any unrecognised check) have
// no generic repair — LinePlugin reports a parse error it cannot itself
// correct (e.g. a line exceeding the scanner buffer) — so they are left
// unfixed rather than silently claimed fixed.
func (d *dispatcher) autoFix(op types.Operation, file string, fileResults []checkResult) {
	for i := range fileResults {
		res := &fileResults[i]
		if res.Ok || res.Check != "exists" {
			continue
		}
		if err := d.fixMissingFile(op, file); err != nil {
			continue
		}
		res.Ok = true
		res.Fixed = true
		res.Issue = ""
	}
}

// fixMissingFile creates an empty file at file, snapshotting the creation
// under op.Transaction (if any) the same way create.go does, so a rollback
// of this transaction undoes the fix.
func (d *dispatcher) fixMissingFile(op types.Operation, file string) error {
	if op.Transaction != "" {
		d.engine.txm.Begin(op.Transaction)
		d.engine.txm.SnapshotCreate(op.Transaction, file)
	}
	return d.engine.fs.Write(file, []byte{}, fs.FileMode(0o644))
}
