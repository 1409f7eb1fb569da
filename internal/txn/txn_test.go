package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fileforge/internal/fsservice"
)

func newTestManager(t *testing.T) (*Manager, *fsservice.Service) {
	t.Helper()
	root := t.TempDir()
	fs, err := fsservice.New(fsservice.Options{Root: root})
	require.NoError(t, err)
	return New(fs), fs
}

func TestManager_RollbackRestoresEditedContent(t *testing.T) {
	m, fs := newTestManager(t)
	require.NoError(t, fs.Write("a.txt", []byte("original"), 0o644))

	m.Begin("tx1")
	m.SnapshotEdit("tx1", "a.txt", true, []byte("original"), 0o644)
	require.NoError(t, fs.Write("a.txt", []byte("mutated"), 0o644))

	require.NoError(t, m.Rollback("tx1"))

	content, err := fs.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	status, ok := m.Status("tx1")
	require.True(t, ok)
	assert.Equal(t, StatusRolledBack, status)
}

func TestManager_RollbackUnlinksCreatedFile(t *testing.T) {
	m, fs := newTestManager(t)

	m.Begin("tx2")
	m.SnapshotCreate("tx2", "new.txt")
	require.NoError(t, fs.Write("new.txt", []byte("fresh"), 0o644))
	require.True(t, fs.Exists("new.txt"))

	require.NoError(t, m.Rollback("tx2"))
	assert.False(t, fs.Exists("new.txt"))
}

func TestManager_RollbackRecreatesDeletedFile(t *testing.T) {
	m, fs := newTestManager(t)
	require.NoError(t, fs.Write("gone.txt", []byte("payload"), 0o644))

	m.Begin("tx3")
	m.SnapshotDelete("tx3", "gone.txt", []byte("payload"), 0o644)
	require.NoError(t, fs.Unlink("gone.txt"))

	require.NoError(t, m.Rollback("tx3"))
	content, err := fs.Read("gone.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestManager_CommitDiscardsUndoLog(t *testing.T) {
	m, fs := newTestManager(t)
	require.NoError(t, fs.Write("a.txt", []byte("original"), 0o644))

	m.Begin("tx4")
	m.SnapshotEdit("tx4", "a.txt", true, []byte("original"), 0o644)
	require.NoError(t, fs.Write("a.txt", []byte("mutated"), 0o644))

	m.Commit("tx4")
	require.NoError(t, m.Rollback("tx4"), "rollback after commit is a no-op, not an error")

	content, err := fs.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "mutated", string(content), "committed mutation must survive a post-commit rollback call")
}

func TestManager_UndoReplaysInReverseOrder(t *testing.T) {
	m, fs := newTestManager(t)
	require.NoError(t, fs.Write("a.txt", []byte("v0"), 0o644))

	m.Begin("tx5")
	m.SnapshotEdit("tx5", "a.txt", true, []byte("v0"), 0o644)
	require.NoError(t, fs.Write("a.txt", []byte("v1"), 0o644))
	m.SnapshotEdit("tx5", "a.txt", true, []byte("v1"), 0o644)
	require.NoError(t, fs.Write("a.txt", []byte("v2"), 0o644))

	require.NoError(t, m.Rollback("tx5"))
	content, err := fs.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v0", string(content))
}

func TestManager_RollbackOfUnknownTransactionIsNoop(t *testing.T) {
	m, _ := newTestManager(t)
	assert.NoError(t, m.Rollback("never-began"))
}
