package engine

import (
	"context"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/security"
	"github.com/standardbeagle/fileforge/internal/types"
)

// dispatcher carries the per-request collaborators (policy, cache options)
// that every operation kind's handler needs, keeping Engine itself free of
// per-request state.
type dispatcher struct {
	engine   *Engine
	policy   *security.PathPolicy
	cacheOpt types.CacheOptions
}

// dispatch routes op to its kind-specific handler, enforcing cancellation
// at the single suspension point every handler shares: entry.
func (d *dispatcher) dispatch(ctx context.Context, op types.Operation) types.OperationResult {
	if isCancelled(ctx) {
		return types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled}
	}

	var result types.OperationResult
	switch op.Kind {
	case types.KindAnalyze:
		result = d.analyze(ctx, op)
	case types.KindEdit:
		result = d.edit(ctx, op)
	case types.KindCreate:
		result = d.create(ctx, op)
	case types.KindDelete:
		result = d.delete(ctx, op)
	case types.KindValidate:
		result = d.validate(ctx, op)
	default:
		result = errorResult(op, ferrors.New(ferrors.Validation, "dispatch", errUnknownKind(op.Kind)))
	}
	return result
}

type errUnknownKind types.OperationKind

func (e errUnknownKind) Error() string { return "unknown operation kind: " + string(e) }

// resolveAndCheck canonicalises path against the workspace and enforces the
// request's allow/blocked path policy — the one check every mutating and
// reading handler performs before touching File Service.
func (d *dispatcher) resolveAndCheck(path string) (string, error) {
	resolved, err := d.engine.fs.Resolve(path)
	if err != nil {
		return "", err
	}
	if d.policy != nil {
		if err := d.policy.Check(resolved); err != nil {
			return "", err
		}
	}
	return resolved, nil
}
