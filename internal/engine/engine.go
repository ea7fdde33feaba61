// Package engine orchestrates one conversation turn: it routes the
// technician's message through intent detection, replanning, clarification
// subflows and the loop guard, mutates the case context under the store's
// per-case lock, and emits the response instructions for the prompt
// composer. It never generates text itself.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"fielddx/internal/catalog"
	"fielddx/internal/config"
	"fielddx/internal/diagctx"
	"fielddx/internal/intent"
	"fielddx/internal/loopguard"
	"fielddx/internal/replan"
	"fielddx/internal/topic"
)

// Engine processes technician messages for any number of cases. Safe for
// concurrent use; per-case ordering is enforced by the store.
type Engine struct {
	store  diagctx.Store
	cfg    config.EngineConfig
	logger *zap.Logger
}

// New creates an engine over the given store. A nil logger disables logging.
func New(store diagctx.Store, cfg config.EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, cfg: cfg, logger: logger}
}

// baseLaborHours is the draft labor estimate per procedure, used when the
// non-blocking labor flow generates a draft at isolation time.
var baseLaborHours = map[string]float64{
	"water_pump":            2.0,
	"refrigeration_circuit": 3.5,
	"electric_motor":        2.5,
	"hvac_airflow":          1.5,
}

// ProcessMessage runs one full turn for the case. The message is the
// technician's latest utterance; history is the prior conversation,
// read-only. The entire pipeline runs under the case's lock, so concurrent
// messages for the same case serialize and each sees the other's writes.
func (e *Engine) ProcessMessage(caseID, message string, history []diagctx.HistoryTurn) (*Turn, error) {
	if caseID == "" {
		return nil, fmt.Errorf("process message: empty case id")
	}

	turn := &Turn{}
	snapshot := e.store.Mutate(caseID, func(ctx *diagctx.Context) {
		e.runTurn(ctx, message, history, turn)
	})
	turn.Context = snapshot

	e.logger.Debug("turn processed",
		zap.String("case_id", caseID),
		zap.String("intent", string(turn.Intent.Kind)),
		zap.String("action", string(turn.Instructions.Action)),
		zap.Bool("state_changed", turn.StateChanged))
	return turn, nil
}

func (e *Engine) runTurn(ctx *diagctx.Context, message string, history []diagctx.HistoryTurn, turn *Turn) {
	e.ensureSystem(ctx, message, turn)

	in := intent.DetectIntent(message)
	turn.Intent = in

	defer func() {
		turn.Instructions.Constraints = e.constraints(ctx)
		turn.Instructions.AntiLoopDirectives = loopguard.Directives(ctx)
	}()

	// Evidence against a settled conclusion outranks everything else.
	if e.cfg.EnableReplan && ctx.IsolationComplete {
		if res := replan.ShouldReplan(message, ctx, history); res.ShouldReplan {
			replan.Execute(ctx, res, e.cfg)
			turn.StateChanged = true
			turn.Notices = append(turn.Notices, res.Reason)
			turn.Instructions = Instructions{
				Action: ActionReplanNotice,
				Notice: replan.BuildNotice(ctx),
			}
			if res.NewBranch != "" {
				turn.Notices = append(turn.Notices, "suggested branch: "+res.NewBranch)
			}
			e.logger.Info("replan executed",
				zap.String("case_id", ctx.CaseID),
				zap.String("reason", res.Reason),
				zap.String("branch", res.NewBranch))
			return
		}
	}

	// A decisive finding short-circuits the remaining steps.
	pivoted := false
	if !ctx.IsolationComplete {
		if f, ok := replan.DetectKeyFinding(message); ok && replan.ShouldPivot(f) {
			pivoted = true
			ctx.AddFact(diagctx.FactObservation, diagctx.SourceTechnician, message, ctx.ActiveStepID)
			ctx.MarkIsolationComplete(f.Summary)
			turn.StateChanged = true
			turn.Notices = append(turn.Notices, "key finding: "+string(f.Code))
			e.logger.Info("key finding pivot",
				zap.String("case_id", ctx.CaseID),
				zap.String("finding", string(f.Code)))
		}
	}

	if e.cfg.EnableClarificationSubflows && in.IsClarification() {
		e.handleClarification(ctx, in, turn)
		return
	}

	// A substantive diagnostic answer while a side-question is open means
	// the technician moved on; close the subflow and resume.
	if topic.InSubflow(ctx) && in.Kind == intent.MainDiagnostic {
		topic.Pop(ctx)
		turn.StateChanged = true
	}

	switch in.Kind {
	case intent.UnableToVerify:
		if ctx.ActiveStepID != "" {
			ctx.AddFact(diagctx.FactStepAnswer, diagctx.SourceTechnician, "unable to verify", ctx.ActiveStepID)
			ctx.MarkStepUnable(ctx.ActiveStepID)
			turn.StateChanged = true
		}
	case intent.AlreadyAnswered:
		if ctx.ActiveStepID != "" {
			ctx.AddFact(diagctx.FactStepAnswer, diagctx.SourceTechnician, message, ctx.ActiveStepID)
			ctx.MarkStepCompleted(ctx.ActiveStepID)
			turn.StateChanged = true
		}
	case intent.Confirmation:
		if ctx.Mode == diagctx.ModeLaborConfirmation {
			e.confirmLabor(ctx, in, turn)
			return
		}
		if in.Accepted && ctx.ActiveStepID != "" {
			ctx.AddFact(diagctx.FactStepAnswer, diagctx.SourceTechnician, message, ctx.ActiveStepID)
			ctx.MarkStepCompleted(ctx.ActiveStepID)
			turn.StateChanged = true
		}
	case intent.MainDiagnostic:
		e.absorbAnswer(ctx, message, turn)
	case intent.DisputeOrNewEvidence:
		// Before isolation this is just more data for the current line of
		// questioning; record it and keep going.
		if !pivoted {
			ctx.AddFact(diagctx.FactObservation, diagctx.SourceTechnician, message, ctx.ActiveStepID)
			turn.StateChanged = true
		}
	}

	if in.Kind == intent.Unclear {
		if e.handleUnclear(ctx, turn) {
			return
		}
	}

	if ctx.IsolationComplete && !replan.InReplanState(ctx) {
		e.handleIsolationComplete(ctx, turn)
		return
	}

	e.askNextStep(ctx, turn)
}

// ensureSystem resolves the primary system on first contact. Step
// pre-marking applies to whichever message first names the system, so a
// case opened with small talk still gets its symptoms credited.
func (e *Engine) ensureSystem(ctx *diagctx.Context, message string, turn *Turn) {
	if ctx.PrimarySystem != "" {
		return
	}

	system, ok := catalog.DetectSystem(message)
	if !ok {
		for _, t := range catalog.ExtractLegacyTopics(message) {
			if !hasString(ctx.LegacyTopics, t) {
				ctx.LegacyTopics = append(ctx.LegacyTopics, t)
			}
		}
		return
	}

	proc, _ := catalog.GetProcedure(system)
	ctx.PrimarySystem = system
	ctx.ActiveProcedureID = proc.System
	if ctx.Classification == "" {
		ctx.Classification = diagctx.ClassificationNonComplex
		if proc.Complex {
			ctx.Classification = diagctx.ClassificationComplex
		}
	}
	turn.StateChanged = true

	for _, stepID := range catalog.MapInitialMessageToSteps(message, proc) {
		ctx.AddFact(diagctx.FactStepAnswer, diagctx.SourceTechnician, message, stepID)
		ctx.MarkStepCompleted(stepID)
	}
	ctx.Touch()

	e.logger.Info("system detected",
		zap.String("case_id", ctx.CaseID),
		zap.String("system", system),
		zap.Int("pre_completed", len(ctx.CompletedSteps)))
}

// absorbAnswer credits the active step when the message answers it, and
// credits any other step the technician volunteered an answer for.
func (e *Engine) absorbAnswer(ctx *diagctx.Context, message string, turn *Turn) {
	proc, ok := catalog.GetProcedure(ctx.PrimarySystem)
	if !ok {
		return
	}

	if ctx.ActiveStepID != "" {
		if step := proc.StepByID(ctx.ActiveStepID); step != nil && catalog.StepMatchesMessage(message, step) {
			ctx.AddFact(diagctx.FactStepAnswer, diagctx.SourceTechnician, message, step.ID)
			ctx.MarkStepCompleted(step.ID)
			turn.StateChanged = true
		}
	}

	for i := range proc.Steps {
		step := &proc.Steps[i]
		if step.ID == ctx.ActiveStepID {
			continue
		}
		if diagctx.HasStep(ctx.CompletedSteps, step.ID) || diagctx.HasStep(ctx.UnableSteps, step.ID) {
			continue
		}
		if catalog.StepMatchesMessage(message, step) {
			ctx.AddFact(diagctx.FactStepAnswer, diagctx.SourceTechnician, message, step.ID)
			ctx.MarkStepCompleted(step.ID)
			turn.StateChanged = true
		}
	}
}

func (e *Engine) handleClarification(ctx *diagctx.Context, in intent.Intent, turn *Turn) {
	topic.Push(ctx, in)
	turn.StateChanged = true

	turn.Instructions = Instructions{
		Action:            ActionProvideClarification,
		ClarificationType: ctx.Submode,
		ClarificationText: topic.BuildClarificationContext(ctx.Submode, in.Query),
		ReturnInstruction: topic.BuildReturnInstruction(ctx),
		StepID:            ctx.ActiveStepID,
	}

	loopguard.UpdateState(ctx, diagctx.AgentAction{
		Type:    diagctx.ActionClarification,
		Content: in.Query,
		StepID:  ctx.ActiveStepID,
		Submode: ctx.Submode,
	}, e.cfg.MaxActionHistory)
}

// handleUnclear emits one fallback if the cap allows it; otherwise the turn
// falls through to a forced concrete question. Returns true when the
// fallback was emitted.
func (e *Engine) handleUnclear(ctx *diagctx.Context, turn *Turn) bool {
	candidate := diagctx.AgentAction{
		Type:    diagctx.ActionFallback,
		Content: "ask the technician to restate what they observed",
	}
	if res := loopguard.Check(candidate, ctx, e.cfg); res.Violation {
		turn.Notices = append(turn.Notices, res.Reason)
		e.logger.Warn("fallback suppressed",
			zap.String("case_id", ctx.CaseID),
			zap.String("code", string(res.Code)))
		return false
	}

	loopguard.UpdateState(ctx, candidate, e.cfg.MaxActionHistory)
	turn.Instructions = Instructions{
		Action: ActionAcknowledgeAndContinue,
		Notice: "The message could not be interpreted; ask the technician to restate their observation in concrete terms.",
	}
	return true
}

func (e *Engine) handleIsolationComplete(ctx *diagctx.Context, turn *Turn) {
	if e.cfg.EnableNonBlockingLabor && ctx.Labor.Mode == diagctx.LaborNone {
		hours, ok := baseLaborHours[ctx.ActiveProcedureID]
		if !ok {
			hours = 2.0
		}
		ctx.Labor.Mode = diagctx.LaborDraft
		ctx.Labor.EstimatedHours = hours
		ctx.Labor.ConfirmationRequired = true
		ctx.Labor.DraftGeneratedAt = ctx.UpdatedAt
		ctx.SetMode(diagctx.ModeLaborConfirmation)
		turn.StateChanged = true

		turn.Instructions = Instructions{
			Action:         ActionGenerateLabor,
			EstimatedHours: hours,
			Notice:         fmt.Sprintf("Cause isolated: %s. Present the draft labor estimate and ask the technician to confirm the hours.", ctx.IsolationFinding),
		}
		loopguard.UpdateState(ctx, diagctx.AgentAction{
			Type:    diagctx.ActionLaborDraft,
			Content: fmt.Sprintf("draft labor estimate: %.1f hours", hours),
		}, e.cfg.MaxActionHistory)
		return
	}

	if ctx.Mode == diagctx.ModeLaborConfirmation {
		// Waiting on an hour confirmation; restate the ask instead of
		// moving on.
		turn.Instructions = Instructions{
			Action:         ActionGenerateLabor,
			EstimatedHours: ctx.Labor.EstimatedHours,
			Notice:         "The labor estimate is still unconfirmed; restate it and ask for confirmation or a corrected figure.",
		}
		return
	}

	target := diagctx.ModeAuthorization
	if ctx.Mode == diagctx.ModeFinalReport {
		turn.Instructions = Instructions{Action: ActionGenerateReport, Target: diagctx.ModeFinalReport}
		return
	}
	if ctx.Mode != diagctx.ModeDiagnostic {
		target = ctx.Mode
	} else {
		ctx.SetMode(diagctx.ModeAuthorization)
		turn.StateChanged = true
	}
	turn.Instructions = Instructions{
		Action: ActionTransition,
		Target: target,
		Notice: fmt.Sprintf("Cause isolated: %s. State the conclusion and request repair authorization.", ctx.IsolationFinding),
	}
	loopguard.UpdateState(ctx, diagctx.AgentAction{
		Type:    diagctx.ActionTransition,
		Content: string(target),
	}, e.cfg.MaxActionHistory)
}

func (e *Engine) confirmLabor(ctx *diagctx.Context, in intent.Intent, turn *Turn) {
	switch {
	case in.Hours > 0:
		ctx.Labor.ConfirmedHours = in.Hours
	case in.Accepted:
		ctx.Labor.ConfirmedHours = ctx.Labor.EstimatedHours
	default:
		// A rejection without a figure keeps the draft open.
		turn.Instructions = Instructions{
			Action:         ActionGenerateLabor,
			EstimatedHours: ctx.Labor.EstimatedHours,
			Notice:         "The technician declined the draft without giving hours; ask for their figure.",
		}
		return
	}

	ctx.Labor.Mode = diagctx.LaborConfirmed
	ctx.Labor.ConfirmationRequired = false
	ctx.SetMode(diagctx.ModeFinalReport)
	turn.StateChanged = true

	turn.Instructions = Instructions{
		Action:         ActionGenerateReport,
		Target:         diagctx.ModeFinalReport,
		ConfirmedHours: ctx.Labor.ConfirmedHours,
		LaborConfirmed: true,
	}
	e.logger.Info("labor confirmed",
		zap.String("case_id", ctx.CaseID),
		zap.Float64("hours", ctx.Labor.ConfirmedHours))
}

// askNextStep selects the next eligible procedure step and runs it through
// the loop guard before committing to it.
func (e *Engine) askNextStep(ctx *diagctx.Context, turn *Turn) {
	proc, ok := catalog.GetProcedure(ctx.PrimarySystem)
	if !ok {
		// No procedure matched yet: acknowledge and probe for the system.
		candidate := diagctx.AgentAction{
			Type:    diagctx.ActionFallback,
			Content: "ask which equipment is being serviced",
		}
		if res := loopguard.Check(candidate, ctx, e.cfg); !res.Violation {
			loopguard.UpdateState(ctx, candidate, e.cfg.MaxActionHistory)
		}
		notice := "No diagnostic procedure matched yet; ask what equipment is being serviced and what the symptom is."
		if len(ctx.LegacyTopics) > 0 {
			notice += fmt.Sprintf(" Observed topics so far: %v.", ctx.LegacyTopics)
		}
		turn.Instructions = Instructions{Action: ActionAcknowledgeAndContinue, Notice: notice}
		return
	}

	next := catalog.NextStep(proc, ctx.CompletedSteps, ctx.UnableSteps)
	for attempts := 0; next != nil && attempts < len(proc.Steps); attempts++ {
		candidate := diagctx.AgentAction{
			Type:    diagctx.ActionQuestion,
			Content: next.Question,
			StepID:  next.ID,
		}
		res := loopguard.Check(candidate, ctx, e.cfg)
		if !res.Violation {
			if res.CooldownFlagged {
				turn.Notices = append(turn.Notices, res.Reason)
			}
			ctx.SetActiveStep(next.ID)
			loopguard.UpdateState(ctx, candidate, e.cfg.MaxActionHistory)
			turn.StateChanged = true
			turn.Instructions = Instructions{
				Action:           ActionAskStep,
				StepID:           next.ID,
				Question:         next.Question,
				ProcedureContext: catalog.BuildProcedureContext(proc, ctx.CompletedSteps, ctx.UnableSteps),
			}
			return
		}

		turn.Notices = append(turn.Notices, res.Reason)
		rec := loopguard.SuggestRecovery(res)
		e.logger.Warn("loop violation",
			zap.String("case_id", ctx.CaseID),
			zap.String("code", string(res.Code)),
			zap.String("recovery", string(rec.Action)),
			zap.String("step_id", rec.StepID))

		if rec.Action == loopguard.RecoveryMarkStepUnable && rec.StepID != "" {
			ctx.MarkStepUnable(rec.StepID)
			turn.StateChanged = true
		}
		next = catalog.NextStep(proc, ctx.CompletedSteps, ctx.UnableSteps)
	}

	if catalog.AllSettled(proc, ctx.CompletedSteps, ctx.UnableSteps) {
		ctx.CauseAllowed = true
		ctx.Touch()
		turn.StateChanged = true
		turn.Instructions = Instructions{
			Action:           ActionTransition,
			Target:           diagctx.ModeAuthorization,
			Notice:           "Every procedure step is settled; state the most likely cause based on the recorded answers.",
			ProcedureContext: catalog.BuildProcedureContext(proc, ctx.CompletedSteps, ctx.UnableSteps),
		}
		return
	}

	turn.Instructions = Instructions{
		Action: ActionAcknowledgeAndContinue,
		Notice: "No eligible step remains that the loop guard allows; summarize the recorded findings and ask an open question.",
	}
}

// constraints are the always-on generation rules, independent of the action.
func (e *Engine) constraints(ctx *diagctx.Context) []string {
	out := []string{
		"Respond in the technician's language.",
		"Ask at most one diagnostic question per response.",
	}
	if !ctx.CauseAllowed && !ctx.IsolationComplete {
		out = append(out, "Do not state a root cause; the diagnostic procedure is not complete.")
	}
	if notice := replan.BuildNotice(ctx); notice != "" {
		out = append(out, notice)
	}
	return out
}

// ObserveResponse records the generated response back into the case state:
// it classifies the response for the fallback counter, pops the topic stack
// when the response steers back to the procedure, and acknowledges a
// pending replan. Returns false if the case does not exist.
func (e *Engine) ObserveResponse(caseID, responseText string) bool {
	return e.store.Apply(caseID, func(ctx *diagctx.Context) {
		if topic.ShouldAutoPop(responseText, ctx) {
			topic.Pop(ctx)
		}
		if replan.InReplanState(ctx) {
			replan.ClearState(ctx)
		}
		if loopguard.IsFallbackResponse(responseText) {
			loopguard.UpdateState(ctx, diagctx.AgentAction{
				Type:    diagctx.ActionFallback,
				Content: responseText,
			}, e.cfg.MaxActionHistory)
		}
	})
}

// MarkStepCompleted records an out-of-band completion, e.g. from a portal
// action. No-op when the case does not exist.
func (e *Engine) MarkStepCompleted(caseID, stepID string) bool {
	return e.store.Apply(caseID, func(ctx *diagctx.Context) {
		ctx.MarkStepCompleted(stepID)
	})
}

// MarkStepUnable records an out-of-band unable-to-verify for a step.
func (e *Engine) MarkStepUnable(caseID, stepID string) bool {
	return e.store.Apply(caseID, func(ctx *diagctx.Context) {
		ctx.MarkStepUnable(stepID)
	})
}

// RecordAgentAction appends an externally-produced agent action to the
// case's bounded history, keeping the fallback counter in sync.
func (e *Engine) RecordAgentAction(caseID string, action diagctx.AgentAction) bool {
	return e.store.Apply(caseID, func(ctx *diagctx.Context) {
		loopguard.UpdateState(ctx, action, e.cfg.MaxActionHistory)
	})
}

// SetMode forces the conversation mode for a case.
func (e *Engine) SetMode(caseID string, mode diagctx.Mode) bool {
	return e.store.Apply(caseID, func(ctx *diagctx.Context) {
		ctx.SetMode(mode)
	})
}

// MarkIsolationComplete records an externally-determined finding.
func (e *Engine) MarkIsolationComplete(caseID, finding string) bool {
	return e.store.Apply(caseID, func(ctx *diagctx.Context) {
		ctx.MarkIsolationComplete(finding)
	})
}

// Snapshot returns a deep copy of the case context, or nil when absent.
func (e *Engine) Snapshot(caseID string) (*diagctx.Context, bool) {
	return e.store.Peek(caseID)
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
