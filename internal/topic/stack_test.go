package topic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fielddx/internal/diagctx"
	"fielddx/internal/intent"
)

func TestPushPopRestoresState(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	ctx.SetActiveStep("wp_3")

	Push(ctx, intent.Intent{Kind: intent.Locate, Query: "where is the pressure switch?"})

	require.Equal(t, diagctx.SubmodeLocate, ctx.Submode)
	require.Equal(t, diagctx.SubmodeMain, ctx.PreviousSubmode)
	require.Len(t, ctx.TopicStack, 1)
	require.Equal(t, "wp_3", ctx.TopicStack[0].ReturnStepID)

	Pop(ctx)

	require.Equal(t, diagctx.SubmodeMain, ctx.Submode)
	require.Equal(t, "wp_3", ctx.ActiveStepID)
	require.Empty(t, ctx.TopicStack)
}

func TestPushIgnoresNonClarification(t *testing.T) {
	ctx := diagctx.NewContext("case1")

	Push(ctx, intent.Intent{Kind: intent.MainDiagnostic})
	require.Empty(t, ctx.TopicStack)
	require.Equal(t, diagctx.SubmodeMain, ctx.Submode)
}

func TestNestedClarifications(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	ctx.SetActiveStep("wp_2")

	Push(ctx, intent.Intent{Kind: intent.Locate, Query: "where is the capacitor?"})
	Push(ctx, intent.Intent{Kind: intent.HowTo, Query: "how do I test it?"})

	require.Equal(t, diagctx.SubmodeHowTo, ctx.Submode)
	require.Len(t, ctx.TopicStack, 2)

	// Popping one level lands back in the locate subflow, not main.
	Pop(ctx)
	require.Equal(t, diagctx.SubmodeLocate, ctx.Submode)
	require.True(t, InSubflow(ctx))

	Pop(ctx)
	require.Equal(t, diagctx.SubmodeMain, ctx.Submode)
	require.False(t, InSubflow(ctx))
	require.Equal(t, "wp_2", ctx.ActiveStepID)
}

func TestPopOnEmptyStackIsNoOp(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	Pop(ctx)
	require.Equal(t, diagctx.SubmodeMain, ctx.Submode)
}

func TestSubmodeInvariant(t *testing.T) {
	// submode == main iff the stack is empty.
	ctx := diagctx.NewContext("case1")
	require.Equal(t, diagctx.SubmodeMain, ctx.Submode)
	require.Empty(t, ctx.TopicStack)

	Push(ctx, intent.Intent{Kind: intent.Explain, Query: "what is a TXV?"})
	require.NotEqual(t, diagctx.SubmodeMain, ctx.Submode)
	require.Equal(t, Current(ctx).Submode, ctx.Submode)
}

func TestBuildReturnInstruction(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	require.Empty(t, BuildReturnInstruction(ctx))

	ctx.SetActiveStep("rc_3")
	Push(ctx, intent.Intent{Kind: intent.Locate, Query: "where is the coil?"})
	require.Contains(t, BuildReturnInstruction(ctx), "rc_3")
}

func TestBuildClarificationContext(t *testing.T) {
	block := BuildClarificationContext(diagctx.SubmodeHowTo, "how do I measure superheat?")
	require.Contains(t, block, "howto")
	require.Contains(t, block, "do not mark the step answered")
	require.Contains(t, block, "how do I measure superheat?")

	require.Empty(t, BuildClarificationContext(diagctx.SubmodeMain, "x"))
}

func TestShouldAutoPop(t *testing.T) {
	ctx := diagctx.NewContext("case1")
	ctx.SetActiveStep("wp_2")

	// Not in a subflow: never pop.
	require.False(t, ShouldAutoPop("Now, back to the question about the pump.", ctx))

	Push(ctx, intent.Intent{Kind: intent.Locate, Query: "where is it?"})
	require.True(t, ShouldAutoPop("The switch sits under the tank. Now, back to the question.", ctx))
	require.True(t, ShouldAutoPop("Он под баком. Вернемся к диагностике.", ctx))
	require.True(t, ShouldAutoPop("Está bajo el tanque. Volvamos al diagnóstico.", ctx))
	require.False(t, ShouldAutoPop("The switch sits under the tank, behind the cover.", ctx))
}
