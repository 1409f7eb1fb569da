package engine

import (
	"context"
	"encoding/base64"
	"io/fs"
	"sort"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

// create writes every requested file in order. A file that already exists
// without overwrite set is skipped, not failed, and recorded in
// already_existed — matching spec.md §4.F's non-fatal skip rather than the
// Conflict error code, which this engine reserves for a caller that wants
// stricter behaviour by inspecting the skip entries itself.
func (d *dispatcher) create(ctx context.Context, op types.Operation) types.OperationResult {
	c := op.Create
	if c == nil || len(c.Files) == 0 {
		return errorResult(op, ferrors.New(ferrors.Validation, "create", errMissingFields("create.files")))
	}

	var created, alreadyExisted []string

	for _, nf := range c.Files {
		if isCancelled(ctx) {
			return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled}
		}

		if _, err := d.resolveAndCheck(nf.Path); err != nil {
			return errorResult(op, err)
		}

		exists := d.engine.fs.Exists(nf.Path)
		if exists && !c.Overwrite {
			alreadyExisted = append(alreadyExisted, nf.Path)
			continue
		}

		mode := fs.FileMode(nf.Mode)
		if mode == 0 {
			mode = 0o644
		}

		if op.Transaction != "" {
			d.engine.txm.Begin(op.Transaction)
			if exists {
				original, rerr := d.engine.fs.Read(nf.Path)
				if rerr == nil {
					d.engine.txm.SnapshotEdit(op.Transaction, nf.Path, true, original, mode)
				}
			} else {
				d.engine.txm.SnapshotCreate(op.Transaction, nf.Path)
			}
		}

		if err := d.engine.fs.Write(nf.Path, decodeContent(nf.Content, nf.Encoding), mode); err != nil {
			return errorResult(op, err)
		}
		created = append(created, nf.Path)
	}

	sort.Strings(created)
	sort.Strings(alreadyExisted)
	data := map[string]interface{}{"created": created}
	if len(alreadyExisted) > 0 {
		data["already_existed"] = alreadyExisted
	}
	return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusSuccess, Data: data}
}

// decodeContent returns content as raw bytes. The only encoding this
// engine recognises beyond plain UTF-8 text is "base64"; an unrecognised
// encoding falls back to the literal bytes rather than failing the whole
// operation, since a client that mislabels plain text should not lose its
// content.
func decodeContent(content, encoding string) []byte {
	if encoding == "base64" {
		if decoded, err := base64.StdEncoding.DecodeString(content); err == nil {
			return decoded
		}
	}
	return []byte(content)
}
