package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRelative_StripsRootPrefix(t *testing.T) {
	assert.Equal(t, "src/main.go", ToRelative("/ws/src/main.go", "/ws"))
}

func TestToRelative_FallsBackToAbsoluteWhenOutsideRoot(t *testing.T) {
	assert.Equal(t, "/other/file.go", ToRelative("/other/file.go", "/ws"))
}

func TestToRelative_LeavesAlreadyRelativePathUntouched(t *testing.T) {
	assert.Equal(t, "src/main.go", ToRelative("src/main.go", "/ws"))
}

func TestToRelative_EmptyInputsPassThrough(t *testing.T) {
	assert.Equal(t, "", ToRelative("", "/ws"))
	assert.Equal(t, "/ws/main.go", ToRelative("/ws/main.go", ""))
}

func TestResolve_RelativePathJoinsRoot(t *testing.T) {
	resolved, ok := Resolve("src/main.go", "/ws")
	assert.True(t, ok)
	assert.Equal(t, "/ws/src/main.go", resolved)
}

func TestResolve_AbsolutePathWithinRootIsOk(t *testing.T) {
	resolved, ok := Resolve("/ws/src/main.go", "/ws")
	assert.True(t, ok)
	assert.Equal(t, "/ws/src/main.go", resolved)
}

func TestResolve_TraversalEscapingRootIsRejected(t *testing.T) {
	_, ok := Resolve("../../etc/passwd", "/ws")
	assert.False(t, ok)
}

func TestResolve_RootItselfIsOk(t *testing.T) {
	resolved, ok := Resolve("", "/ws")
	assert.True(t, ok)
	assert.Equal(t, "/ws", resolved)
}

func TestResolve_SiblingDirectorySharingPrefixIsRejected(t *testing.T) {
	// "/ws-evil" shares the literal prefix "/ws" but is not inside it;
	// the separator-aware prefix check must reject it.
	_, ok := Resolve("/ws-evil/file.go", "/ws")
	assert.False(t, ok)
}
