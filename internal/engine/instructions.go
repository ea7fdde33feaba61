package engine

import (
	"fielddx/internal/diagctx"
	"fielddx/internal/intent"
)

// Action tags the closed ResponseInstructions union. It is the sole output
// of the engine and the sole input to the external prompt composition step.
type Action string

const (
	ActionAskStep                Action = "ask_step"
	ActionProvideClarification   Action = "provide_clarification"
	ActionAcknowledgeAndContinue Action = "acknowledge_and_continue"
	ActionReplanNotice           Action = "replan_notice"
	ActionTransition             Action = "transition"
	ActionGenerateLabor          Action = "generate_labor"
	ActionGenerateReport         Action = "generate_report"
)

// Instructions tells the prompt composer what the next response must do.
// Only the fields matching the Action are populated; Constraints and
// AntiLoopDirectives are always present.
type Instructions struct {
	Action Action `json:"action"`

	// ask_step
	StepID           string `json:"step_id,omitempty"`
	Question         string `json:"question,omitempty"`
	ProcedureContext string `json:"procedure_context,omitempty"`

	// provide_clarification
	ClarificationType diagctx.Submode `json:"clarification_type,omitempty"`
	ClarificationText string          `json:"clarification_text,omitempty"`
	ReturnInstruction string          `json:"return_instruction,omitempty"`

	// replan_notice / transition
	Notice string       `json:"notice,omitempty"`
	Target diagctx.Mode `json:"target,omitempty"`

	// generate_labor
	EstimatedHours float64 `json:"estimated_hours,omitempty"`
	ConfirmedHours float64 `json:"confirmed_hours,omitempty"`
	LaborConfirmed bool    `json:"labor_confirmed,omitempty"`

	Constraints        []string `json:"constraints"`
	AntiLoopDirectives []string `json:"anti_loop_directives"`
}

// Turn is the full result of processing one technician message.
type Turn struct {
	Context      *diagctx.Context
	Intent       intent.Intent
	Instructions Instructions
	StateChanged bool
	Notices      []string
}
