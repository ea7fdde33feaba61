package replan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fielddx/internal/config"
	"fielddx/internal/diagctx"
)

func isolatedContext() *diagctx.Context {
	ctx := diagctx.NewContext("case1")
	ctx.PrimarySystem = "refrigeration_circuit"
	ctx.MarkStepCompleted("rc_1")
	ctx.MarkStepCompleted("rc_2")
	ctx.MarkIsolationComplete("failed compressor start relay")
	return ctx
}

func TestNoReplanBeforeIsolation(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	require.False(t, ctx.IsolationComplete)

	res := ShouldReplan("found a hole in the evaporator coil", ctx, nil)
	require.False(t, res.ShouldReplan)
}

func TestPhysicalDamageReplans(t *testing.T) {
	ctx := isolatedContext()

	res := ShouldReplan("found a hole in the evaporator coil", ctx, nil)
	require.True(t, res.ShouldReplan)
	require.Equal(t, "refrigerant_leak_path", res.NewBranch)
	require.NotEmpty(t, res.Reason)

	// The isolation finding fact is among those to invalidate.
	var isolationID string
	for _, f := range ctx.Facts {
		if f.Type == diagctx.FactIsolationFinding {
			isolationID = f.ID
		}
	}
	require.Contains(t, res.InvalidatedFactIDs, isolationID)
}

func TestPhysicalDamageRequiresHighConfidence(t *testing.T) {
	ctx := isolatedContext()

	// Loose damage vocabulary without visible-damage phrasing: "rust" is
	// physical_damage for the router but not high-confidence evidence.
	res := ShouldReplan("I noticed some rust on the bracket", ctx, nil)
	require.False(t, res.ShouldReplan)
}

func TestMeasurementChangeNeedsContradiction(t *testing.T) {
	ctx := isolatedContext()
	ctx.AddFact(diagctx.FactMeasurement, diagctx.SourceTechnician, "voltage at terminals ok", "rc_1")

	// A changed reading with no recorded fact to contradict: no replan.
	res := ShouldReplan("the gauge now reads 80 psi", ctx, nil)
	require.False(t, res.ShouldReplan)

	// The same evidence type contradicting the recorded "ok" fact replans.
	res = ShouldReplan("the terminal voltage now reads zero, it is not ok", ctx, nil)
	require.True(t, res.ShouldReplan)
}

func TestMeasurementChangeAgainstHistory(t *testing.T) {
	ctx := isolatedContext()

	// No recorded fact, but an earlier technician turn said the reading
	// was ok. The antonym pair fires against conversation history.
	history := []diagctx.HistoryTurn{
		{Role: "agent", Content: "What does the voltage at the terminals read?"},
		{Role: "technician", Content: "voltage at the terminals is ok"},
	}
	res := ShouldReplan("the terminal voltage now reads zero, it is not ok", ctx, history)
	require.True(t, res.ShouldReplan)
	require.Contains(t, res.Reason, "new reading contradicts")
}

func TestBareDisputeDoesNotReplan(t *testing.T) {
	ctx := isolatedContext()

	res := ShouldReplan("I disagree, that can't be right", ctx, nil)
	require.False(t, res.ShouldReplan)
}

func TestDisputeWithCounterEvidenceReplans(t *testing.T) {
	ctx := isolatedContext()

	res := ShouldReplan("I disagree, that can't be right, I measured the relay and the meter shows continuity", ctx, nil)
	require.True(t, res.ShouldReplan)
}

func TestExecuteReplan(t *testing.T) {
	ctx := isolatedContext()
	cfg := config.DefaultConfig().Engine

	res := ShouldReplan("found a hole in the evaporator coil", ctx, nil)
	require.True(t, res.ShouldReplan)

	ctx.SetActiveStep("rc_5")
	Execute(ctx, res, cfg)

	require.False(t, ctx.IsolationComplete)
	require.True(t, ctx.IsolationInvalidated)
	require.False(t, ctx.CauseAllowed)
	require.Empty(t, ctx.ActiveStepID)
	require.NotEmpty(t, ctx.ReplanReason)

	// Invalidated facts are superseded, never deleted.
	for _, f := range ctx.Facts {
		if f.Type == diagctx.FactIsolationFinding {
			require.NotEmpty(t, f.SupersededBy)
		}
	}

	// A replan notice landed in the action history.
	last := ctx.LastAgentActions[len(ctx.LastAgentActions)-1]
	require.Equal(t, diagctx.ActionReplanNotice, last.Type)

	// Each invalidated fact got a contradiction record, and the branch
	// hint became a working hypothesis.
	require.NotEmpty(t, ctx.Contradictions)
	require.NotEmpty(t, ctx.Hypotheses)
	require.Contains(t, ctx.Hypotheses[len(ctx.Hypotheses)-1].Statement, "refrigerant_leak_path")
}

func TestExecuteReplanDiscardsLaborDraft(t *testing.T) {
	ctx := isolatedContext()
	cfg := config.DefaultConfig().Engine

	ctx.Labor = diagctx.LaborState{
		Mode:                 diagctx.LaborDraft,
		EstimatedHours:       2.5,
		ConfirmationRequired: true,
	}
	ctx.SetMode(diagctx.ModeLaborConfirmation)

	res := ShouldReplan("found a hole in the evaporator coil", ctx, nil)
	require.True(t, res.ShouldReplan)
	Execute(ctx, res, cfg)

	// The draft was estimated for the withdrawn conclusion: it is gone,
	// and the case is back in questioning, not waiting on hours.
	require.Equal(t, diagctx.LaborNone, ctx.Labor.Mode)
	require.Zero(t, ctx.Labor.EstimatedHours)
	require.False(t, ctx.Labor.ConfirmationRequired)
	require.Equal(t, diagctx.ModeDiagnostic, ctx.Mode)
}

func TestBuildNotice(t *testing.T) {
	ctx := isolatedContext()
	cfg := config.DefaultConfig().Engine

	require.Empty(t, BuildNotice(ctx))

	res := ShouldReplan("found a hole in the evaporator coil", ctx, nil)
	Execute(ctx, res, cfg)

	notice := BuildNotice(ctx)
	require.Contains(t, notice, "REPLAN NOTICE")
	require.Contains(t, notice, "FORBIDDEN")
	require.Contains(t, notice, "failed compressor start relay")
}

func TestReplanStateLifecycle(t *testing.T) {
	ctx := isolatedContext()
	cfg := config.DefaultConfig().Engine
	require.False(t, InReplanState(ctx))

	res := ShouldReplan("refrigerant has escaped, the line is leaking oil", ctx, nil)
	require.True(t, res.ShouldReplan)
	Execute(ctx, res, cfg)
	require.True(t, InReplanState(ctx))

	ClearState(ctx)
	require.False(t, InReplanState(ctx))
	require.Empty(t, BuildNotice(ctx))
}

func TestDetectKeyFinding(t *testing.T) {
	tests := []struct {
		message string
		want    FindingCode
	}{
		{"The motor is seized and won't turn at all", FindingSeizedMotor},
		{"Двигатель заклинило, вал не крутится", FindingSeizedMotor},
		{"El motor está agarrotado, no gira", FindingSeizedMotor},
		{"the winding is burnt black and smells", FindingBurnedWinding},
		{"all the refrigerant has leaked out of the system", FindingRefrigerantLeak},
		{"the impeller is broken clean off", FindingBrokenShaft},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			f, ok := DetectKeyFinding(tt.message)
			require.True(t, ok)
			require.Equal(t, tt.want, f.Code)
			require.True(t, ShouldPivot(f))
		})
	}
}

func TestDetectKeyFindingNoMatch(t *testing.T) {
	_, ok := DetectKeyFinding("the pump hums quietly when the faucet opens")
	require.False(t, ok)
}
