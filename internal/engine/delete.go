package engine

import (
	"context"
	"path/filepath"
	"sort"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

// delete expands every path/glob via File Service, unlinks each resolved
// match that still exists, and optionally removes parent directories left
// empty by the deletions.
func (d *dispatcher) delete(ctx context.Context, op types.Operation) types.OperationResult {
	del := op.Delete
	if del == nil || len(del.Paths) == 0 {
		return errorResult(op, ferrors.New(ferrors.Validation, "delete", errMissingFields("delete.paths")))
	}

	resolved := make(map[string]bool)
	for _, pattern := range del.Paths {
		if isCancelled(ctx) {
			return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled}
		}
		matches, err := d.engine.fs.Glob(pattern)
		if err != nil {
			return errorResult(op, err)
		}
		if len(matches) == 0 {
			if d.engine.fs.Exists(pattern) {
				matches = []string{pattern}
			}
		}
		for _, m := range matches {
			resolved[m] = true
		}
	}

	paths := make([]string, 0, len(resolved))
	for p := range resolved {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var deleted []string
	dirs := make(map[string]bool)

	for _, p := range paths {
		if isCancelled(ctx) {
			return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled}
		}
		if _, err := d.resolveAndCheck(p); err != nil {
			return errorResult(op, err)
		}
		if !d.engine.fs.Exists(p) {
			continue
		}

		if op.Transaction != "" {
			content, rerr := d.engine.fs.Read(p)
			if rerr == nil {
				meta, _ := d.engine.fs.Stat(p)
				mode := meta.ModeOrDefault()
				d.engine.txm.Begin(op.Transaction)
				d.engine.txm.SnapshotDelete(op.Transaction, p, content, mode)
			}
		}

		if err := d.engine.fs.Unlink(p); err != nil {
			return errorResult(op, err)
		}
		deleted = append(deleted, p)
		dirs[filepath.Dir(p)] = true
	}

	var removedDirs []string
	if del.RemoveEmptyDirs {
		dirList := make([]string, 0, len(dirs))
		for dir := range dirs {
			dirList = append(dirList, dir)
		}
		sort.Strings(dirList)
		for _, dir := range dirList {
			if empty, err := d.engine.fs.IsEmptyDir(dir); err == nil && empty {
				if err := d.engine.fs.Rmdir(dir); err == nil {
					removedDirs = append(removedDirs, dir)
				}
			}
		}
	}

	data := map[string]interface{}{"deleted": deleted}
	if len(removedDirs) > 0 {
		data["removed_dirs"] = removedDirs
	}
	return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusSuccess, Data: data}
}
