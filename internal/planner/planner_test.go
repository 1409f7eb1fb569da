package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

func analyzeOp(id string, deps ...string) types.Operation {
	return types.Operation{ID: id, Kind: types.KindAnalyze, DependsOn: deps,
		Analyze: &types.AnalyzeOp{Paths: []string{"a.go"}}}
}

func TestPlan_IndependentOpsShareOneStage(t *testing.T) {
	ops := []types.Operation{analyzeOp("a"), analyzeOp("b"), analyzeOp("c")}
	plan, err := Plan(ops)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1)
	assert.True(t, plan.Stages[0].CanRunInParallel)
	assert.Equal(t, 1, plan.ParallelizationOpportunities)
}

func TestPlan_LinearChainIsOnePerStage(t *testing.T) {
	ops := []types.Operation{analyzeOp("a"), analyzeOp("b", "a"), analyzeOp("c", "b")}
	plan, err := Plan(ops)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 3)
	for _, stage := range plan.Stages {
		assert.False(t, stage.CanRunInParallel)
	}
	assert.Equal(t, []string{"a", "b", "c"}, plan.CriticalPath)
}

func TestPlan_CycleIsRejected(t *testing.T) {
	ops := []types.Operation{analyzeOp("a", "b"), analyzeOp("b", "a")}
	_, err := Plan(ops)
	require.Error(t, err)
	assert.Equal(t, ferrors.CircularDependency, ferrors.CodeOf(err))
}

func TestPlan_UnknownDependencyIsTreatedAsSatisfied(t *testing.T) {
	ops := []types.Operation{analyzeOp("a", "ghost")}
	plan, err := Plan(ops)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1)
	assert.Equal(t, "a", plan.Stages[0].Operations[0].ID)
}

func TestPlan_AssignsStableIDsWhenMissing(t *testing.T) {
	ops := []types.Operation{
		{Kind: types.KindAnalyze, Analyze: &types.AnalyzeOp{Paths: []string{"x"}}},
		{Kind: types.KindAnalyze, Analyze: &types.AnalyzeOp{Paths: []string{"y"}}},
	}
	plan, err := Plan(ops)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, stage := range plan.Stages {
		for _, op := range stage.Operations {
			require.NotEmpty(t, op.ID)
			assert.False(t, ids[op.ID], "ids must be unique")
			ids[op.ID] = true
		}
	}
}

func TestPlan_DiamondDependencyConvergesToThreeStages(t *testing.T) {
	ops := []types.Operation{
		analyzeOp("a"),
		analyzeOp("b", "a"),
		analyzeOp("c", "a"),
		analyzeOp("d", "b", "c"),
	}
	plan, err := Plan(ops)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 3)
	assert.Len(t, plan.Stages[1].Operations, 2)
}

func TestPlan_FileLocalityGroupingIsAdvisoryOnly(t *testing.T) {
	ops := []types.Operation{
		{ID: "a", Kind: types.KindEdit, Edit: &types.EditOp{Edits: []types.FileEdit{{File: "shared.go"}}}},
		{ID: "b", Kind: types.KindEdit, Edit: &types.EditOp{Edits: []types.FileEdit{{File: "shared.go"}}}},
	}
	plan, err := Plan(ops)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 1, "no explicit dependency means same-file ops still run in one stage")

	var found bool
	for _, g := range plan.Groups {
		if g.Type == GroupLocality {
			found = true
			assert.False(t, g.CanParallelise)
		}
	}
	assert.True(t, found)
}
