// Package topic manages the clarification side-question stack: "where is
// it", "what is it", "how do I check it" detours that must return the
// conversation to exactly the step it left.
package topic

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"fielddx/internal/diagctx"
	"fielddx/internal/intent"
)

// submodeFor maps a clarification intent to its submode.
func submodeFor(kind intent.Kind) (diagctx.Submode, bool) {
	switch kind {
	case intent.Locate:
		return diagctx.SubmodeLocate, true
	case intent.Explain:
		return diagctx.SubmodeExplain, true
	case intent.HowTo:
		return diagctx.SubmodeHowTo, true
	default:
		return "", false
	}
}

// Push opens a clarification subflow for a Locate/Explain/HowTo intent.
// Any other intent is a no-op. The current active step is captured so Pop
// can restore it.
func Push(ctx *diagctx.Context, in intent.Intent) {
	submode, ok := submodeFor(in.Kind)
	if !ok {
		return
	}

	ctx.PreviousSubmode = ctx.Submode
	ctx.Submode = submode
	ctx.TopicStack = append(ctx.TopicStack, diagctx.TopicEntry{
		Topic:        in.Query,
		Submode:      submode,
		ReturnStepID: ctx.ActiveStepID,
		PushedAt:     time.Now(),
	})
	ctx.Touch()
}

// Pop closes the top clarification subflow, restoring the submode to the
// next entry down (or main when the stack empties) and the active step to
// the popped entry's return step.
func Pop(ctx *diagctx.Context) {
	if len(ctx.TopicStack) == 0 {
		return
	}

	top := ctx.TopicStack[len(ctx.TopicStack)-1]
	ctx.TopicStack = ctx.TopicStack[:len(ctx.TopicStack)-1]

	ctx.PreviousSubmode = ctx.Submode
	if len(ctx.TopicStack) > 0 {
		ctx.Submode = ctx.TopicStack[len(ctx.TopicStack)-1].Submode
	} else {
		ctx.Submode = diagctx.SubmodeMain
	}
	ctx.ActiveStepID = top.ReturnStepID
	ctx.Touch()
}

// InSubflow reports whether a clarification side-question is open.
func InSubflow(ctx *diagctx.Context) bool {
	return ctx.Submode != diagctx.SubmodeMain && len(ctx.TopicStack) > 0
}

// Current returns the open clarification entry, or nil.
func Current(ctx *diagctx.Context) *diagctx.TopicEntry {
	if len(ctx.TopicStack) == 0 {
		return nil
	}
	return &ctx.TopicStack[len(ctx.TopicStack)-1]
}

// BuildReturnInstruction renders the line that steers the generator back
// to the interrupted step after the side-question is answered.
func BuildReturnInstruction(ctx *diagctx.Context) string {
	entry := Current(ctx)
	if entry == nil {
		return ""
	}
	if entry.ReturnStepID == "" {
		return "After answering, return to the main diagnostic flow."
	}
	return fmt.Sprintf("After answering, return to diagnostic step %s and continue the procedure.", entry.ReturnStepID)
}

// BuildClarificationContext renders the instruction block for one
// clarification type. A howto answer explicitly does not count as the
// underlying step being performed.
func BuildClarificationContext(submode diagctx.Submode, query string) string {
	var b strings.Builder
	switch submode {
	case diagctx.SubmodeLocate:
		b.WriteString("CLARIFICATION (locate): describe where the component sits on the unit and how to access it.\n")
	case diagctx.SubmodeExplain:
		b.WriteString("CLARIFICATION (explain): describe what the component is and its function in the system.\n")
	case diagctx.SubmodeHowTo:
		b.WriteString("CLARIFICATION (howto): give the measurement steps and the tools required.\n")
		b.WriteString("Explaining the check does NOT mean the check was performed; do not mark the step answered.\n")
	default:
		return ""
	}
	if query != "" {
		fmt.Fprintf(&b, "Technician asked: %s\n", query)
	}
	return b.String()
}

// returnSignals are the phrases a generated response uses when it steers
// back to the procedure on its own; seeing one means the side-question is
// done and the stack should pop.
var returnSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(returning|back|let'?s (go|get) back) to (the )?(diagnostic|procedure|main flow)`),
	regexp.MustCompile(`(?i)now,? (back to|let'?s continue with) (the )?(question|step|procedure)`),
	regexp.MustCompile(`(?i)(вернемся|возвращаемся|вернёмся) к (диагностике|процедуре|вопросу)`),
	regexp.MustCompile(`(?i)продолжим (диагностику|проверку)`),
	regexp.MustCompile(`(?i)(volvamos|volviendo|regresemos) (a|al) (diagn[oó]stico|procedimiento|la pregunta)`),
	regexp.MustCompile(`(?i)continuemos con (el|la) (diagn[oó]stico|procedimiento|pregunta)`),
}

// ShouldAutoPop reports whether the generated response signals a return to
// the main flow while a subflow is open.
func ShouldAutoPop(responseText string, ctx *diagctx.Context) bool {
	if !InSubflow(ctx) {
		return false
	}
	for _, re := range returnSignals {
		if re.MatchString(responseText) {
			return true
		}
	}
	return false
}
