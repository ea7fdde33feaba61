package loopguard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fielddx/internal/config"
	"fielddx/internal/diagctx"
)

func defaults() config.EngineConfig {
	return config.DefaultConfig().Engine
}

func question(stepID string) diagctx.AgentAction {
	return diagctx.AgentAction{
		Type:      diagctx.ActionQuestion,
		Content:   "asking " + stepID,
		StepID:    stepID,
		Timestamp: time.Now(),
	}
}

func TestFallbackCap(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	cfg := defaults() // MaxConsecutiveFallbacks = 1

	fallback := diagctx.AgentAction{Type: diagctx.ActionFallback, Content: "please provide more information"}

	// First fallback is allowed.
	res := Check(fallback, ctx, cfg)
	require.False(t, res.Violation)
	UpdateState(ctx, fallback, cfg.MaxActionHistory)
	require.Equal(t, 1, ctx.ConsecutiveFallbacks)

	// Second consecutive fallback violates.
	res = Check(fallback, ctx, cfg)
	require.True(t, res.Violation)
	require.Equal(t, CodeFallbackCapped, res.Code)
}

func TestFallbackCounterResets(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	cfg := defaults()

	fallback := diagctx.AgentAction{Type: diagctx.ActionFallback, Content: "need more info"}
	UpdateState(ctx, fallback, cfg.MaxActionHistory)
	require.Equal(t, 1, ctx.ConsecutiveFallbacks)

	// A concrete question in between resets eligibility.
	UpdateState(ctx, question("wp_2"), cfg.MaxActionHistory)
	require.Equal(t, 0, ctx.ConsecutiveFallbacks)

	res := Check(fallback, ctx, cfg)
	require.False(t, res.Violation)
}

func TestFallbackPhraseHeuristicCounts(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	cfg := defaults()

	// Action typed as a question but phrased as a generic info request
	// still counts as a fallback.
	disguised := diagctx.AgentAction{
		Type:    diagctx.ActionQuestion,
		Content: "Could you please provide more details about the problem?",
	}
	UpdateState(ctx, disguised, cfg.MaxActionHistory)
	require.Equal(t, 1, ctx.ConsecutiveFallbacks)
}

func TestIsFallbackResponseMultilingual(t *testing.T) {
	require.True(t, IsFallbackResponse("Please provide more information about the unit"))
	require.True(t, IsFallbackResponse("Уточните, пожалуйста, что именно происходит"))
	require.True(t, IsFallbackResponse("Por favor proporcione más detalles"))
	require.False(t, IsFallbackResponse("Measure the voltage at the pump terminals"))
}

func TestSettledStepsAreViolations(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	cfg := defaults()
	ctx.MarkStepCompleted("wp_1")
	ctx.MarkStepUnable("wp_3")

	res := Check(question("wp_1"), ctx, cfg)
	require.True(t, res.Violation)
	require.Equal(t, CodeStepCompleted, res.Code)
	require.Equal(t, "wp_1", res.StepID)

	res = Check(question("wp_3"), ctx, cfg)
	require.True(t, res.Violation)
	require.Equal(t, CodeStepUnable, res.Code)
}

func TestRepeatCap(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	cfg := defaults() // MaxStepRepeatCount = 2

	UpdateState(ctx, question("wp_2"), cfg.MaxActionHistory)
	UpdateState(ctx, question("wp_2"), cfg.MaxActionHistory)

	res := Check(question("wp_2"), ctx, cfg)
	require.True(t, res.Violation)
	require.Equal(t, CodeRepeatCapped, res.Code)
}

func TestRepeatCapWindowIsBounded(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	cfg := defaults() // MaxActionHistory = 10

	// Two old asks of wp_2 pushed out of the window by ten newer actions.
	UpdateState(ctx, question("wp_2"), cfg.MaxActionHistory)
	UpdateState(ctx, question("wp_2"), cfg.MaxActionHistory)
	for i := 0; i < cfg.MaxActionHistory; i++ {
		UpdateState(ctx, question("wp_4"), cfg.MaxActionHistory)
	}

	res := Check(question("wp_2"), ctx, cfg)
	require.False(t, res.Violation)
}

func TestCooldownIsSoft(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	cfg := defaults()

	UpdateState(ctx, question("wp_2"), cfg.MaxActionHistory)

	res := Check(question("wp_2"), ctx, cfg)
	require.False(t, res.Violation)
	require.True(t, res.CooldownFlagged)
	require.Equal(t, "wp_2", res.StepID)
}

func TestActionHistoryIsTrimmed(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	cfg := defaults()

	for i := 0; i < 25; i++ {
		UpdateState(ctx, question("wp_2"), cfg.MaxActionHistory)
	}
	require.Len(t, ctx.LastAgentActions, cfg.MaxActionHistory)
}

func TestDirectivesListSettledSteps(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	ctx.MarkStepCompleted("wp_1")
	ctx.MarkStepUnable("wp_3")
	ctx.ConsecutiveFallbacks = 1
	ctx.AskedSteps = []string{"wp_1", "wp_2", "wp_4", "wp_2"}

	lines := Directives(ctx)

	requireLineContaining(t, lines, "Never repeat a question")
	requireLineContaining(t, lines, "FORBIDDEN")
	requireLineContaining(t, lines, "wp_1")
	requireLineContaining(t, lines, "cannot verify, never re-ask: wp_3")
	requireLineContaining(t, lines, "avoid unless necessary: wp_2, wp_4, wp_1")
	requireLineContaining(t, lines, "move the diagnosis forward")
}

func TestSuggestRecoveryDispatch(t *testing.T) {
	rec := SuggestRecovery(CheckResult{Violation: true, Code: CodeFallbackCapped})
	require.Equal(t, RecoveryForceNextStep, rec.Action)

	rec = SuggestRecovery(CheckResult{Violation: true, Code: CodeRepeatCapped, StepID: "wp_2"})
	require.Equal(t, RecoveryMarkStepUnable, rec.Action)
	require.Equal(t, "wp_2", rec.StepID)

	rec = SuggestRecovery(CheckResult{Violation: true, Code: CodeStepCompleted, StepID: "wp_1"})
	require.Equal(t, RecoveryForceForward, rec.Action)
}

func requireLineContaining(t *testing.T, lines []string, substr string) {
	t.Helper()
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return
		}
	}
	t.Fatalf("no directive line contains %q in %v", substr, lines)
}
