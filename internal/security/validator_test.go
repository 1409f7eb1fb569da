package security

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

func TestFileValidator_SmallFilesAreNeverInspected(t *testing.T) {
	fv := NewFileValidator(64)
	err := fv.Validate("x.go", 10, bytes.Repeat([]byte{0x00}, 10))
	assert.NoError(t, err)
}

func TestFileValidator_RejectsDisguisedBinary(t *testing.T) {
	fv := NewFileValidator(0)
	header := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A} // a PNG's real magic bytes
	err := fv.Validate("photo.go", 100, header)
	require.Error(t, err)
	assert.Equal(t, ferrors.Validation, ferrors.CodeOf(err))
}

func TestFileValidator_AcceptsGenuineText(t *testing.T) {
	fv := NewFileValidator(0)
	err := fv.Validate("main.go", 100, []byte("package main\n\nfunc main() {}\n"))
	assert.NoError(t, err)
}

func TestFileValidator_RejectsHighNonPrintableRatio(t *testing.T) {
	fv := NewFileValidator(0)
	header := bytes.Repeat([]byte{0x01}, 200)
	err := fv.Validate("data.go", 200, header)
	require.Error(t, err)
}

func TestPathPolicy_BlockedPrefixWins(t *testing.T) {
	policy := NewPathPolicy(types.SecurityOptions{BlockedPaths: []string{"/work/secrets"}})
	err := policy.Check("/work/secrets/key.pem")
	require.Error(t, err)
	assert.Equal(t, ferrors.PermissionDenied, ferrors.CodeOf(err))
}

func TestPathPolicy_EmptyAllowListPermitsEverythingNotBlocked(t *testing.T) {
	policy := NewPathPolicy(types.SecurityOptions{})
	assert.NoError(t, policy.Check("/work/anything.go"))
}

func TestPathPolicy_NonEmptyAllowListRestricts(t *testing.T) {
	policy := NewPathPolicy(types.SecurityOptions{AllowedPaths: []string{"/work/src"}})
	assert.NoError(t, policy.Check("/work/src/a.go"))

	err := policy.Check("/work/other/a.go")
	require.Error(t, err)
	assert.Equal(t, ferrors.PermissionDenied, ferrors.CodeOf(err))
}

func TestPathPolicy_BlockedPrefixMatchesExactPathNotJustChildren(t *testing.T) {
	policy := NewPathPolicy(types.SecurityOptions{BlockedPaths: []string{"/work/secret.go"}})
	err := policy.Check("/work/secret.go")
	require.Error(t, err)
}
