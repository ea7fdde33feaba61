// Package loopguard enforces the anti-repetition rules: no re-asking
// settled steps, no fallback spirals, no hammering one question. Violations
// are advisory results, never errors; the orchestrator decides how to act.
package loopguard

import (
	"fmt"

	"fielddx/internal/config"
	"fielddx/internal/diagctx"
)

// ViolationCode is the structured violation taxonomy. Recovery dispatches
// on this code, never on the human-readable reason text.
type ViolationCode string

const (
	CodeNone           ViolationCode = ""
	CodeFallbackCapped ViolationCode = "fallback_capped"
	CodeStepCompleted  ViolationCode = "step_completed"
	CodeStepUnable     ViolationCode = "step_unable"
	CodeRepeatCapped   ViolationCode = "repeat_capped"
)

// CheckResult reports whether a proposed action violates a loop rule.
// CooldownFlagged is informational: the step was asked very recently but
// the caller may still proceed.
type CheckResult struct {
	Violation       bool
	Code            ViolationCode
	StepID          string
	Reason          string
	Suggestion      string
	CooldownFlagged bool
}

// Check evaluates the loop rules in fixed order against a proposed action;
// the first hard rule that fires wins.
func Check(action diagctx.AgentAction, ctx *diagctx.Context, cfg config.EngineConfig) CheckResult {
	// Rule 1: fallback cap.
	if action.Type == diagctx.ActionFallback && ctx.ConsecutiveFallbacks >= cfg.MaxConsecutiveFallbacks {
		return CheckResult{
			Violation:  true,
			Code:       CodeFallbackCapped,
			Reason:     fmt.Sprintf("fallback cap reached (%d consecutive)", ctx.ConsecutiveFallbacks),
			Suggestion: "ask the next concrete procedure step instead of another generic prompt",
		}
	}

	// Rules 2 and 3: never re-ask a settled step.
	if action.StepID != "" {
		if diagctx.HasStep(ctx.CompletedSteps, action.StepID) {
			return CheckResult{
				Violation:  true,
				Code:       CodeStepCompleted,
				StepID:     action.StepID,
				Reason:     fmt.Sprintf("step %s was already answered", action.StepID),
				Suggestion: "acknowledge the earlier answer and move to the next step",
			}
		}
		if diagctx.HasStep(ctx.UnableSteps, action.StepID) {
			return CheckResult{
				Violation:  true,
				Code:       CodeStepUnable,
				StepID:     action.StepID,
				Reason:     fmt.Sprintf("technician already reported being unable to verify step %s", action.StepID),
				Suggestion: "skip the step and continue with one the technician can perform",
			}
		}
	}

	// Rule 4: repeat cap within the bounded history.
	if action.StepID != "" && action.Type == diagctx.ActionQuestion {
		if countQuestions(ctx, action.StepID, cfg.MaxActionHistory) >= cfg.MaxStepRepeatCount {
			return CheckResult{
				Violation:  true,
				Code:       CodeRepeatCapped,
				StepID:     action.StepID,
				Reason:     fmt.Sprintf("step %s was already asked %d times", action.StepID, cfg.MaxStepRepeatCount),
				Suggestion: "mark the step unable to verify and move forward",
			}
		}

		// Rule 5: soft cooldown, flagged but not a violation.
		if askedWithin(ctx, action.StepID, cfg.TopicCooldownTurns) {
			return CheckResult{
				CooldownFlagged: true,
				StepID:          action.StepID,
				Reason:          fmt.Sprintf("step %s was asked within the last %d turns", action.StepID, cfg.TopicCooldownTurns),
			}
		}
	}

	return CheckResult{}
}

// countQuestions counts question actions for stepID within the last
// window entries of the action history.
func countQuestions(ctx *diagctx.Context, stepID string, window int) int {
	actions := tail(ctx.LastAgentActions, window)
	n := 0
	for _, a := range actions {
		if a.Type == diagctx.ActionQuestion && a.StepID == stepID {
			n++
		}
	}
	return n
}

// askedWithin reports whether stepID appears among the last window actions.
func askedWithin(ctx *diagctx.Context, stepID string, window int) bool {
	for _, a := range tail(ctx.LastAgentActions, window) {
		if a.StepID == stepID {
			return true
		}
	}
	return false
}

func tail(actions []diagctx.AgentAction, n int) []diagctx.AgentAction {
	if n <= 0 || len(actions) <= n {
		return actions
	}
	return actions[len(actions)-n:]
}

// RecoveryAction is the remediation taxonomy for loop violations.
type RecoveryAction string

const (
	RecoveryForceNextStep  RecoveryAction = "force_next_step"
	RecoveryMarkStepUnable RecoveryAction = "mark_step_unable"
	RecoveryForceForward   RecoveryAction = "force_forward"
)

// Recovery is the remediation suggested for a violation.
type Recovery struct {
	Action RecoveryAction
	StepID string
	Reason string
}

// SuggestRecovery maps a violation to a remediation, dispatching on the
// structured code.
func SuggestRecovery(res CheckResult) Recovery {
	switch res.Code {
	case CodeFallbackCapped:
		return Recovery{
			Action: RecoveryForceNextStep,
			Reason: "fallback responses are capped; a concrete procedure question must go out",
		}
	case CodeRepeatCapped:
		return Recovery{
			Action: RecoveryMarkStepUnable,
			StepID: res.StepID,
			Reason: "repeated asks went unanswered; treat the step as unverifiable and continue",
		}
	case CodeStepCompleted, CodeStepUnable:
		return Recovery{
			Action: RecoveryForceForward,
			StepID: res.StepID,
			Reason: "the step is settled; pick the next eligible one",
		}
	default:
		return Recovery{Action: RecoveryForceForward, Reason: "no violation recorded"}
	}
}
