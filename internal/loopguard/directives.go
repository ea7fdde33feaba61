package loopguard

import (
	"fmt"
	"regexp"
	"strings"

	"fielddx/internal/diagctx"
)

// fallbackPhrases is the multilingual "please provide more information"
// family. A generated response matching any of these counts as a fallback
// even when the action was not tagged as one.
var fallbackPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(please )?(provide|give|send) (me )?(some )?more (information|details|context)`),
	regexp.MustCompile(`(?i)(could|can) you (clarify|be more specific|elaborate)`),
	regexp.MustCompile(`(?i)i need more (information|details) to`),
	regexp.MustCompile(`(?i)(пожалуйста, )?(предоставьте|дайте|пришлите) (больше|дополнительн)`),
	regexp.MustCompile(`(?i)уточните,? пожалуйста|не совсем понял|нужно больше (информации|деталей)`),
	regexp.MustCompile(`(?i)(por favor,? )?(proporcione|env[ií]e|d[eé]me) m[aá]s (informaci[oó]n|detalles)`),
	regexp.MustCompile(`(?i)(podr[ií]a|puede) (aclarar|ser m[aá]s espec[ií]fico)|necesito m[aá]s informaci[oó]n`),
}

// IsFallbackResponse reports whether the text is a generic
// more-information request.
func IsFallbackResponse(text string) bool {
	for _, re := range fallbackPhrases {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Directives renders the anti-loop instruction lines handed to the prompt
// composer. Content here is contract: the downstream generator is told
// verbatim which steps it must never re-ask.
func Directives(ctx *diagctx.Context) []string {
	out := []string{
		"Never repeat a question the technician has already answered.",
	}

	if ctx.ConsecutiveFallbacks > 0 {
		out = append(out,
			fmt.Sprintf("FORBIDDEN: generic 'provide more information' responses (%d already sent).", ctx.ConsecutiveFallbacks),
			"REQUIRED: ask one specific, concrete question from the diagnostic procedure.",
		)
	}

	if len(ctx.CompletedSteps) > 0 {
		out = append(out, "Already answered, never re-ask: "+strings.Join(ctx.CompletedSteps, ", "))
	}
	if len(ctx.UnableSteps) > 0 {
		out = append(out, "Technician cannot verify, never re-ask: "+strings.Join(ctx.UnableSteps, ", "))
	}

	if recent := lastDistinctAsked(ctx, 3); len(recent) > 0 {
		out = append(out, "Asked very recently, avoid unless necessary: "+strings.Join(recent, ", "))
	}

	out = append(out, "Every response must move the diagnosis forward.")
	return out
}

// lastDistinctAsked returns up to n distinct step ids from the tail of the
// asked list, most recent first.
func lastDistinctAsked(ctx *diagctx.Context, n int) []string {
	var out []string
	seen := make(map[string]struct{})
	for i := len(ctx.AskedSteps) - 1; i >= 0 && len(out) < n; i-- {
		id := ctx.AskedSteps[i]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// UpdateState records an emitted agent action: it advances or resets the
// consecutive fallback counter, appends to the bounded history, and tracks
// asked steps for questions.
func UpdateState(ctx *diagctx.Context, action diagctx.AgentAction, maxHistory int) {
	if action.Type == diagctx.ActionFallback || IsFallbackResponse(action.Content) {
		ctx.ConsecutiveFallbacks++
	} else {
		ctx.ConsecutiveFallbacks = 0
	}

	ctx.LastAgentActions = append(ctx.LastAgentActions, action)
	if maxHistory > 0 && len(ctx.LastAgentActions) > maxHistory {
		ctx.LastAgentActions = ctx.LastAgentActions[len(ctx.LastAgentActions)-maxHistory:]
	}

	if action.Type == diagctx.ActionQuestion && action.StepID != "" {
		ctx.MarkStepAsked(action.StepID)
	}
	ctx.Touch()
}
