// Package engine is the Execution Engine: it plans a request, dispatches
// operations stage by stage with bounded concurrency, honours cancellation,
// wires transactional groups through the Transaction Manager, and
// aggregates everything into a Response.
package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/fileforge/internal/ast"
	"github.com/standardbeagle/fileforge/internal/cache"
	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/fsservice"
	"github.com/standardbeagle/fileforge/internal/planner"
	"github.com/standardbeagle/fileforge/internal/security"
	"github.com/standardbeagle/fileforge/internal/txn"
	"github.com/standardbeagle/fileforge/internal/types"
)

const defaultConcurrency = 4

// ProgressEvent is emitted once per operation when it finishes or is
// cancelled, so a caller can render a live progress bar without polling the
// final Response. A success later demoted to cancelled by a transaction
// rollback emits no second event; the final Response carries that status.
type ProgressEvent struct {
	OpID   string
	Stage  int
	Status types.Status
}

// ProgressFunc receives progress events; it must not block significantly,
// since it runs on the operations' worker goroutines and may be called
// concurrently.
type ProgressFunc func(ProgressEvent)

// Engine owns the per-request Planner output and Transaction Manager,
// while Cache and AST Facade are shared singletons across requests, per
// spec.md's ownership notes.
type Engine struct {
	fs  *fsservice.Service
	ca  *cache.Cache
	af  *ast.Facade
	txm *txn.Manager
}

// New builds an Engine over its three shared collaborators.
func New(fs *fsservice.Service, ca *cache.Cache, af *ast.Facade) *Engine {
	return &Engine{fs: fs, ca: ca, af: af, txm: txn.New(fs)}
}

// opState tracks one operation's terminal status plus bookkeeping needed
// for transaction rollback and dependency-failure propagation.
type opState struct {
	result types.OperationResult
	done   bool
}

// Execute runs a request to completion: plans it, dispatches every stage,
// and returns a complete Response. A non-nil error is returned only when
// planning itself fails (e.g. CircularDependency) — in that case the
// returned Response already carries success=false and no operation ran.
func (e *Engine) Execute(ctx context.Context, req types.Request, progress ProgressFunc) (types.Response, error) {
	start := time.Now()

	plan, err := planner.Plan(req.Operations)
	if err != nil {
		return types.Response{
			Success: false,
			Summary: types.Summary{Total: len(req.Operations), ElapsedMs: time.Since(start).Milliseconds()},
		}, err
	}

	concurrency := req.Options.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if req.Options.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Options.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	policy := security.NewPathPolicy(req.Options.Security)
	disp := &dispatcher{
		engine:   e,
		policy:   policy,
		cacheOpt: req.Options.Cache,
	}

	var mu sync.Mutex
	states := make(map[string]*opState, len(req.Operations))
	order := make([]string, 0, len(req.Operations))
	failedTx := make(map[string]bool)

	for stageIdx, stage := range plan.Stages {
		if ctx.Err() != nil {
			markRemainingCancelled(plan.Stages[stageIdx:], states, &mu, &order, progress, stageIdx)
			break
		}

		runnable, skipped := partitionStage(stage.Operations, states, &mu, failedTx)
		for _, op := range skipped {
			recordResult(states, &mu, &order, op.ID, types.OperationResult{
				ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled, DurationMs: 0,
			})
			if progress != nil {
				progress(ProgressEvent{OpID: op.ID, Stage: stageIdx, Status: types.StatusCancelled})
			}
		}

		if len(runnable) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for _, op := range runnable {
			op := op
			g.Go(func() error {
				opStart := time.Now()
				result := disp.dispatch(gctx, op)
				result.DurationMs = time.Since(opStart).Milliseconds()
				recordResult(states, &mu, &order, op.ID, result)
				if progress != nil {
					progress(ProgressEvent{OpID: op.ID, Stage: stageIdx, Status: result.Status})
				}
				return nil
			})
		}
		// errgroup's own error channel is unused: per-operation failures are
		// reported in their OperationResult, never propagated as a group
		// error, so a sibling failure never stops unrelated tasks.
		_ = g.Wait()

		e.resolveTransactionsForStage(stage.Operations, req.Operations, states, &mu, failedTx)
	}

	// Every transaction that was not rolled back is committed, so no undo
	// log outlives the request that captured it.
	for _, op := range req.Operations {
		if op.Transaction != "" && !failedTx[op.Transaction] {
			e.txm.Commit(op.Transaction)
		}
	}

	return buildResponse(req.Operations, order, states, &mu, plan, e.ca.Stats(), start), nil
}

func partitionStage(ops []types.Operation, states map[string]*opState, mu *sync.Mutex, failedTx map[string]bool) (runnable, skipped []types.Operation) {
	mu.Lock()
	defer mu.Unlock()
	for _, op := range ops {
		if op.Transaction != "" && failedTx[op.Transaction] {
			skipped = append(skipped, op)
			continue
		}
		blocked := false
		for _, dep := range op.DependsOn {
			if st, ok := states[dep]; ok && st.done {
				if st.result.Status != types.StatusSuccess {
					blocked = true
					break
				}
			}
		}
		if blocked {
			skipped = append(skipped, op)
			continue
		}
		runnable = append(runnable, op)
	}
	return runnable, skipped
}

func recordResult(states map[string]*opState, mu *sync.Mutex, order *[]string, id string, result types.OperationResult) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := states[id]; !ok {
		*order = append(*order, id)
	}
	states[id] = &opState{result: result, done: true}
}

func markRemainingCancelled(stages []planner.Stage, states map[string]*opState, mu *sync.Mutex, order *[]string, progress ProgressFunc, stageIdx int) {
	for _, stage := range stages {
		for _, op := range stage.Operations {
			recordResult(states, mu, order, op.ID, types.OperationResult{
				ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled,
			})
			if progress != nil {
				progress(ProgressEvent{OpID: op.ID, Stage: stageIdx, Status: types.StatusCancelled})
			}
		}
	}
}

// resolveTransactionsForStage rolls back any transaction that suffered a
// failure during this stage, then demotes every earlier success sharing
// that transaction id to cancelled — "cancelled (rolled back)" in spec
// terms — so the response reflects that their on-disk effect was undone.
func (e *Engine) resolveTransactionsForStage(stageOps, allOps []types.Operation, states map[string]*opState, mu *sync.Mutex, failedTx map[string]bool) {
	mu.Lock()
	newlyFailed := make(map[string]bool)
	for _, op := range stageOps {
		if op.Transaction == "" {
			continue
		}
		st, ok := states[op.ID]
		if !ok || !st.done {
			continue
		}
		if st.result.Status == types.StatusFailed {
			newlyFailed[op.Transaction] = true
		}
	}
	mu.Unlock()

	for txID := range newlyFailed {
		if failedTx[txID] {
			continue
		}
		failedTx[txID] = true
		// Rollback is best-effort per spec.md §4.E: a failure here never
		// masks the triggering operation's own error, it is simply not
		// otherwise surfaced since Response carries no request-level error
		// channel distinct from each operation's own result.
		_ = e.txm.Rollback(txID)

		mu.Lock()
		for _, op := range allOps {
			if op.Transaction != txID {
				continue
			}
			st, ok := states[op.ID]
			if !ok || !st.done || st.result.Status != types.StatusSuccess {
				continue
			}
			st.result.Status = types.StatusCancelled
			if st.result.Data == nil {
				st.result.Data = map[string]interface{}{}
			}
			st.result.Data["rolled_back"] = true
		}
		mu.Unlock()
	}
}

func buildResponse(reqOps []types.Operation, order []string, states map[string]*opState, mu *sync.Mutex, plan *planner.ExecutionPlan, cacheStats types.CacheStats, start time.Time) types.Response {
	mu.Lock()
	defer mu.Unlock()

	byID := make(map[string]types.OperationResult, len(states))
	for id, st := range states {
		byID[id] = st.result
	}

	results := make([]types.OperationResult, 0, len(reqOps))
	succeeded, failed, cancelled := 0, 0, 0
	for _, op := range reqOps {
		r, ok := byID[op.ID]
		if !ok {
			r = types.OperationResult{ID: op.ID, Kind: op.Kind, Status: types.StatusCancelled}
		}
		results = append(results, r)
		switch r.Status {
		case types.StatusSuccess:
			succeeded++
		case types.StatusFailed:
			failed++
		case types.StatusCancelled:
			cancelled++
		}
	}

	return types.Response{
		Success: failed == 0 && cancelled == 0,
		Operations: results,
		Summary: types.Summary{
			Total:     len(reqOps),
			Succeeded: succeeded,
			Failed:    failed,
			Cancelled: cancelled,
			ElapsedMs: time.Since(start).Milliseconds(),
		},
		Performance: types.Performance{
			ParallelizationOpportunities: plan.ParallelizationOpportunities,
			CriticalPath:                 plan.CriticalPath,
			Cache:                        cacheStats,
		},
	}
}

// errorResult builds a failed OperationResult from a *ferrors.Error (or any
// error, defaulting to the Internal code).
func errorResult(op types.Operation, err error) types.OperationResult {
	return types.OperationResult{
		ID:     op.ID,
		Kind:   op.Kind,
		Status: types.StatusFailed,
		Error: &types.ErrorInfo{
			Message: err.Error(),
			Code:    string(ferrors.CodeOf(err)),
		},
	}
}

func isCancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
