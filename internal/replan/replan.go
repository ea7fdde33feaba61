// Package replan detects evidence that invalidates a settled isolation
// conclusion and resets the conversation into re-diagnosis. It never fires
// before a conclusion exists: replanning without an isolation to discard is
// meaningless.
package replan

import (
	"fmt"
	"regexp"
	"strings"

	"fielddx/internal/config"
	"fielddx/internal/diagctx"
	"fielddx/internal/intent"
	"fielddx/internal/loopguard"
)

// Result is the replan decision for one message.
type Result struct {
	ShouldReplan       bool
	Reason             string
	InvalidatedFactIDs []string
	NewBranch          string
}

// High-confidence physical evidence: damage a technician can see with
// their own eyes. Only this subset of physical_damage evidence replans
// unconditionally.
var highConfidencePhysical = []*regexp.Regexp{
	regexp.MustCompile(`(?i)hole|leak(ing|ed)?|crack(ed)?|burn(t|ed|s)?|scorch|melted|refrigerant (loss|gone|escaped|out)`),
	regexp.MustCompile(`(?i)дыр(а|ка|у)|утечк|течет|трещин|прогар|прогорел|сгорел|обгорел|оплавил|хладагент (ушел|вытек|закончился)`),
	regexp.MustCompile(`(?i)agujero|fuga|grieta|agrietado|quemad|chamuscado|derretido|refrigerante (perdido|escapado|agotado)`),
}

// Counter-evidence markers: a dispute backed by an actual measurement.
// Bare disagreement never restarts diagnosis.
var counterEvidence = []*regexp.Regexp{
	regexp.MustCompile(`(?i)i (measured|checked|tested|verified)|actually (reads|shows|measures)|(the )?meter (shows|reads)`),
	regexp.MustCompile(`(?i)я (измерил|проверил|протестировал)|на самом деле (показывает|выдает)|прибор (показывает|выдает)`),
	regexp.MustCompile(`(?i)(lo |la )?(med[ií]|comprob[eé]|verifiqu[eé])|en realidad (marca|muestra)|el (medidor|mult[ií]metro) (marca|muestra)`),
}

// branchHints maps evidence vocabulary to the re-diagnosis branch the
// catalog should favor.
var branchHints = []struct {
	pattern *regexp.Regexp
	branch  string
}{
	{regexp.MustCompile(`(?i)evaporator|coil|refrigerant|испарител|хладагент|evaporador|serpent[ií]n|refrigerante`), "refrigerant_leak_path"},
	{regexp.MustCompile(`(?i)winding|burn|scorch|melted|обмотк|прогар|сгорел|оплавил|bobinado|quemad|derretido`), "electrical_fault_path"},
	{regexp.MustCompile(`(?i)housing|shaft|bearing|crack|hole|корпус|вал|подшипник|трещин|дыр|carcasa|eje|rodamiento|grieta|agujero`), "mechanical_damage_path"},
}

// Antonym pairs for the measurement-change contradiction heuristic: a fact
// whose value matches positive contradicted by a message matching negative,
// or the reverse.
var antonymPairs = []struct {
	positive *regexp.Regexp
	negative *regexp.Regexp
}{
	{
		regexp.MustCompile(`(?i)\bok\b|good|fine|normal|working|в норме|работает|исправ|bien|funciona|correcto`),
		regexp.MustCompile(`(?i)not ok|\bbad\b|not working|broken|fail(s|ed|ing)?|не в норме|не работает|сломан|плохо|mal\b|no funciona|roto|fall(a|ó)`),
	},
	{
		regexp.MustCompile(`(?i)volt|напряжени|вольт|voltaje|voltios`),
		regexp.MustCompile(`(?i)no voltage|zero volts?|нет напряжения|ноль вольт|sin voltaje|cero voltios`),
	},
}

// ShouldReplan decides whether the message invalidates the settled
// conclusion. Evidence is classified with the loose detector, then
// filtered per evidence type. History is read-only: technician turns feed
// the contradiction heuristic alongside recorded facts.
func ShouldReplan(message string, ctx *diagctx.Context, history []diagctx.HistoryTurn) Result {
	if !ctx.IsolationComplete {
		return Result{}
	}

	et, ok := intent.DetectNewEvidence(message)
	if !ok {
		return Result{}
	}

	switch et {
	case intent.EvidencePhysicalDamage:
		if !matchAny(highConfidencePhysical, message) {
			return Result{}
		}
		return Result{
			ShouldReplan:       true,
			Reason:             fmt.Sprintf("visible physical evidence contradicts the conclusion %q: %s", ctx.IsolationFinding, message),
			InvalidatedFactIDs: isolationFactIDs(ctx),
			NewBranch:          branchFor(message),
		}

	case intent.EvidenceMeasurementChange:
		factID, ok := contradictedFact(message, ctx)
		if !ok && !contradictsHistory(message, history) {
			return Result{}
		}
		invalidated := isolationFactIDs(ctx)
		if factID != "" {
			invalidated = append(invalidated, factID)
		}
		return Result{
			ShouldReplan:       true,
			Reason:             fmt.Sprintf("a new reading contradicts an earlier statement: %s", message),
			InvalidatedFactIDs: invalidated,
			NewBranch:          branchFor(message),
		}

	case intent.EvidenceTechnicianDispute:
		// Logged, not auto-replanned, unless backed by a measurement.
		if !matchAny(counterEvidence, message) {
			return Result{}
		}
		return Result{
			ShouldReplan:       true,
			Reason:             fmt.Sprintf("technician dispute backed by a measurement: %s", message),
			InvalidatedFactIDs: isolationFactIDs(ctx),
			NewBranch:          branchFor(message),
		}
	}

	return Result{}
}

// Execute applies a positive replan decision: the conclusion is withdrawn,
// the invalidated facts are soft-retired, and the next step is re-selected
// fresh. Facts are never deleted.
func Execute(ctx *diagctx.Context, res Result, cfg config.EngineConfig) {
	if !res.ShouldReplan {
		return
	}

	evidenceID := ctx.AddFact(diagctx.FactNewEvidence, diagctx.SourceTechnician, res.Reason, "")
	for _, factID := range res.InvalidatedFactIDs {
		ctx.SupersedeFact(factID, evidenceID)
		ctx.AddContradiction(factID, res.Reason)
	}
	if res.NewBranch != "" {
		ctx.AddHypothesis("investigate " + res.NewBranch)
	}

	ctx.IsolationComplete = false
	ctx.IsolationInvalidated = true
	ctx.ReplanReason = res.Reason
	ctx.CauseAllowed = false
	ctx.ActiveStepID = ""

	// An unconfirmed labor draft was estimated for the withdrawn
	// conclusion; discard it and return to questioning so a later accept
	// cannot confirm hours for a diagnosis that no longer stands.
	if ctx.Labor.Mode == diagctx.LaborDraft {
		ctx.Labor = diagctx.LaborState{Mode: diagctx.LaborNone}
	}
	if ctx.Mode == diagctx.ModeLaborConfirmation {
		ctx.Mode = diagctx.ModeDiagnostic
	}
	ctx.Touch()

	loopguard.UpdateState(ctx, diagctx.AgentAction{
		Type:    diagctx.ActionReplanNotice,
		Content: res.Reason,
		Submode: diagctx.SubmodeReplan,
	}, cfg.MaxActionHistory)
}

// BuildNotice renders the replan instruction block for the prompt
// composer. Empty unless the case is in an unacknowledged replan state.
func BuildNotice(ctx *diagctx.Context) string {
	if !ctx.IsolationInvalidated || ctx.ReplanReason == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("REPLAN NOTICE: the earlier diagnostic conclusion has been withdrawn.\n")
	fmt.Fprintf(&b, "Cause: %s\n", ctx.ReplanReason)
	b.WriteString("You must: acknowledge the new evidence, explain why the diagnosis changed, and continue questioning.\n")
	if ctx.IsolationFinding != "" {
		fmt.Fprintf(&b, "FORBIDDEN: restating the withdrawn conclusion %q.\n", ctx.IsolationFinding)
	}
	return b.String()
}

// InReplanState reports whether a replan is pending acknowledgement.
func InReplanState(ctx *diagctx.Context) bool {
	return ctx.IsolationInvalidated && !ctx.IsolationComplete
}

// ClearState resets the invalidation flags once the replan was
// acknowledged in a response.
func ClearState(ctx *diagctx.Context) {
	ctx.IsolationInvalidated = false
	ctx.ReplanReason = ""
	ctx.Touch()
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// isolationFactIDs returns the non-superseded isolation finding facts.
func isolationFactIDs(ctx *diagctx.Context) []string {
	var out []string
	for _, f := range ctx.ActiveFacts() {
		if f.Type == diagctx.FactIsolationFinding {
			out = append(out, f.ID)
		}
	}
	return out
}

// contradictedFact scans the non-superseded facts for one whose value sits
// on the opposite side of an antonym pair from the message.
func contradictedFact(message string, ctx *diagctx.Context) (string, bool) {
	for _, f := range ctx.ActiveFacts() {
		if f.Type == diagctx.FactIsolationFinding {
			continue
		}
		for _, pair := range antonymPairs {
			if pair.positive.MatchString(f.Value) && pair.negative.MatchString(message) {
				return f.ID, true
			}
			if pair.negative.MatchString(f.Value) && pair.positive.MatchString(message) &&
				!pair.negative.MatchString(message) {
				return f.ID, true
			}
		}
	}
	return "", false
}

// contradictsHistory checks earlier technician turns against the same
// antonym pairs when no recorded fact matched.
func contradictsHistory(message string, history []diagctx.HistoryTurn) bool {
	for _, turn := range history {
		if turn.Role != "technician" {
			continue
		}
		for _, pair := range antonymPairs {
			if pair.positive.MatchString(turn.Content) && pair.negative.MatchString(message) {
				return true
			}
		}
	}
	return false
}

func branchFor(message string) string {
	for _, h := range branchHints {
		if h.pattern.MatchString(message) {
			return h.branch
		}
	}
	return ""
}
