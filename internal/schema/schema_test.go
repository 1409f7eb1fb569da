package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
)

func TestValidator_AcceptsMinimalValidRequest(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	raw := []byte(`{"operations":[{"type":"analyze","analyze":{}}]}`)
	assert.NoError(t, v.Validate(raw))
}

func TestValidator_AcceptsFullOperationShape(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	raw := []byte(`{
		"operations": [
			{"id": "op-1", "type": "edit", "depends_on": ["op-0"], "transaction": "tx1", "edit": {}}
		],
		"options": {"concurrency": 4}
	}`)
	assert.NoError(t, v.Validate(raw))
}

func TestValidator_RejectsInvalidJSON(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	err = v.Validate([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, ferrors.Validation, ferrors.CodeOf(err))
}

func TestValidator_RejectsMissingOperations(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	err = v.Validate([]byte(`{"options": {}}`))
	require.Error(t, err)
	assert.Equal(t, ferrors.Validation, ferrors.CodeOf(err))
}

func TestValidator_RejectsOperationMissingType(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	err = v.Validate([]byte(`{"operations":[{"analyze":{}}]}`))
	require.Error(t, err)
}

func TestValidator_RejectsUnknownOperationType(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	err = v.Validate([]byte(`{"operations":[{"type":"teleport"}]}`))
	require.Error(t, err)
}

func TestValidator_RejectsWrongFieldType(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	err = v.Validate([]byte(`{"operations": "not-an-array"}`))
	require.Error(t, err)
}

func TestValidator_AcceptsEmptyOperationsList(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	assert.NoError(t, v.Validate([]byte(`{"operations": []}`)))
}
