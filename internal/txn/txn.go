// Package txn is the Transaction Manager: it records pre-state for
// transactional operation groups before they mutate the filesystem, and
// replays an undo log in reverse order on group failure. Atomicity is
// scoped per transaction id, not request-global — two transactions in the
// same request succeed or fail independently.
package txn

import (
	"fmt"
	"io/fs"
	"sync"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/fsservice"
)

// UndoKind distinguishes the pre-state captured for each mutation shape.
type UndoKind string

const (
	UndoRestore UndoKind = "restore" // edit/overwrite: write original bytes back
	UndoUnlink  UndoKind = "unlink"  // create: remove the path that didn't exist before
	UndoRewrite UndoKind = "rewrite" // delete: recreate the original bytes and mode
)

// undoStep is one entry in a transaction's undo log, applied in reverse
// order on rollback.
type undoStep struct {
	Kind     UndoKind
	Path     string
	Content  []byte
	Mode     fs.FileMode
	Existed  bool
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusActive     Status = "active"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

type transaction struct {
	mu     sync.Mutex
	id     string
	status Status
	steps  []undoStep
}

// Manager owns every transaction its Engine begins. A transaction's undo
// log lives until Commit discards it or Rollback replays it; the Engine
// does one or the other before each request returns.
type Manager struct {
	fs *fsservice.Service

	mu   sync.Mutex
	txns map[string]*transaction
}

// New builds a Manager backed by fs, the only component it is allowed to
// touch for rollback I/O.
func New(fs *fsservice.Service) *Manager {
	return &Manager{fs: fs, txns: make(map[string]*transaction)}
}

// Begin registers txID as active if it is not already known. Calling
// Begin on an already-begun id is a no-op — operations in the same group
// call it independently.
func (m *Manager) Begin(txID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[txID]; !ok {
		m.txns[txID] = &transaction{id: txID, status: StatusActive}
	}
}

// SnapshotEdit records the pre-edit content of path for rollback before an
// Edit or Create-with-overwrite mutation is applied.
func (m *Manager) SnapshotEdit(txID, path string, existed bool, content []byte, mode fs.FileMode) {
	m.record(txID, undoStep{Kind: UndoRestore, Path: path, Content: content, Mode: mode, Existed: existed})
}

// SnapshotCreate records that path did not exist before a Create, so
// rollback can unlink it.
func (m *Manager) SnapshotCreate(txID, path string) {
	m.record(txID, undoStep{Kind: UndoUnlink, Path: path})
}

// SnapshotDelete records the pre-delete content and mode of path, so
// rollback can recreate it.
func (m *Manager) SnapshotDelete(txID, path string, content []byte, mode fs.FileMode) {
	m.record(txID, undoStep{Kind: UndoRewrite, Path: path, Content: content, Mode: mode})
}

func (m *Manager) record(txID string, step undoStep) {
	m.mu.Lock()
	t, ok := m.txns[txID]
	if !ok {
		t = &transaction{id: txID, status: StatusActive}
		m.txns[txID] = t
	}
	m.mu.Unlock()

	t.mu.Lock()
	t.steps = append(t.steps, step)
	t.mu.Unlock()
}

// Commit discards the captured undo log for txID; the group's mutations
// stand.
func (m *Manager) Commit(txID string) {
	m.mu.Lock()
	t, ok := m.txns[txID]
	m.mu.Unlock()
	if !ok {
		return
	}
	t.mu.Lock()
	t.status = StatusCommitted
	t.steps = nil
	t.mu.Unlock()
}

// Rollback replays txID's undo log in reverse order. An individual undo
// failure is collected but never stops the remaining undo steps and never
// masks the triggering error — callers get back a MultiError they may log,
// separate from whatever operation error caused the rollback.
func (m *Manager) Rollback(txID string) error {
	m.mu.Lock()
	t, ok := m.txns[txID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	t.mu.Lock()
	steps := t.steps
	t.steps = nil
	t.status = StatusRolledBack
	t.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		if err := m.undo(steps[i]); err != nil {
			errs = append(errs, ferrors.New(ferrors.Transaction, "rollback", err).WithPath(steps[i].Path))
		}
	}
	if len(errs) > 0 {
		return ferrors.NewMultiError(errs)
	}
	return nil
}

func (m *Manager) undo(step undoStep) error {
	switch step.Kind {
	case UndoUnlink:
		if m.fs.Exists(step.Path) {
			return m.fs.Unlink(step.Path)
		}
		return nil
	case UndoRestore, UndoRewrite:
		if !step.Existed && step.Kind == UndoRestore {
			return m.fs.Unlink(step.Path)
		}
		mode := step.Mode
		if mode == 0 {
			mode = 0o644
		}
		return m.fs.Write(step.Path, step.Content, mode)
	default:
		return fmt.Errorf("unknown undo kind %q", step.Kind)
	}
}

// Status reports a transaction's current lifecycle state.
func (m *Manager) Status(txID string) (Status, bool) {
	m.mu.Lock()
	t, ok := m.txns[txID]
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, true
}
