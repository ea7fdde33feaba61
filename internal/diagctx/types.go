// Package diagctx provides the per-case diagnostic conversation state and
// the store that owns it. Every other engine package reads and mutates a
// Context; the store is the only component that holds one across turns.
package diagctx

import (
	"time"

	"github.com/google/uuid"
)

// Mode is the top-level conversation mode.
type Mode string

const (
	ModeDiagnostic        Mode = "diagnostic"
	ModeAuthorization     Mode = "authorization"
	ModeFinalReport       Mode = "final_report"
	ModeLaborConfirmation Mode = "labor_confirmation"
)

// Submode is the conversation sub-state within a mode.
type Submode string

const (
	SubmodeMain      Submode = "main"
	SubmodeLocate    Submode = "locate"
	SubmodeExplain   Submode = "explain"
	SubmodeHowTo     Submode = "howto"
	SubmodeReplan    Submode = "replan"
	SubmodeLoopBreak Submode = "loop_break"
)

// Classification marks a case as needing the complex or non-complex flow.
type Classification string

const (
	ClassificationComplex    Classification = "complex"
	ClassificationNonComplex Classification = "non_complex"
)

// FactType categorizes a recorded fact.
type FactType string

const (
	FactObservation      FactType = "observation"
	FactMeasurement      FactType = "measurement"
	FactStepAnswer       FactType = "step_answer"
	FactIsolationFinding FactType = "isolation_finding"
	FactNewEvidence      FactType = "new_evidence"
)

// FactSource records who contributed a fact.
type FactSource string

const (
	SourceTechnician FactSource = "technician"
	SourceAgent      FactSource = "agent"
	SourceSystem     FactSource = "system"
)

// Fact is a single recorded statement about the case. Facts are append-only;
// a fact invalidated by later evidence is soft-retired via SupersededBy and
// never removed.
type Fact struct {
	ID           string     `json:"id"`
	Type         FactType   `json:"type"`
	Source       FactSource `json:"source"`
	Value        string     `json:"value"`
	StepID       string     `json:"step_id,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	SupersededBy string     `json:"superseded_by,omitempty"`
}

// ActionType categorizes an agent action in the bounded history.
type ActionType string

const (
	ActionQuestion      ActionType = "question"
	ActionFallback      ActionType = "fallback"
	ActionClarification ActionType = "clarification"
	ActionReplanNotice  ActionType = "replan_notice"
	ActionTransition    ActionType = "transition"
	ActionLaborDraft    ActionType = "labor_draft"
	ActionReport        ActionType = "report"
)

// AgentAction is one entry in the bounded agent action history that the
// loop guard inspects.
type AgentAction struct {
	Type      ActionType `json:"type"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	StepID    string     `json:"step_id,omitempty"`
	Submode   Submode    `json:"submode,omitempty"`
}

// TopicEntry is one clarification side-question on the topic stack. It
// captures the step to resume once the side-question is answered.
type TopicEntry struct {
	Topic        string    `json:"topic"`
	Submode      Submode   `json:"submode"`
	ReturnStepID string    `json:"return_step_id"`
	PushedAt     time.Time `json:"pushed_at"`
}

// LaborMode tracks the labor estimate lifecycle.
type LaborMode string

const (
	LaborNone      LaborMode = "none"
	LaborDraft     LaborMode = "draft"
	LaborConfirmed LaborMode = "confirmed"
	LaborSkipped   LaborMode = "skipped"
)

// LaborState holds the labor estimate for the case.
type LaborState struct {
	Mode                 LaborMode `json:"mode"`
	EstimatedHours       float64   `json:"estimated_hours,omitempty"`
	ConfirmedHours       float64   `json:"confirmed_hours,omitempty"`
	DraftGeneratedAt     time.Time `json:"draft_generated_at,omitempty"`
	ConfirmationRequired bool      `json:"confirmation_required"`
}

// Hypothesis is a working root-cause candidate recorded during diagnosis.
type Hypothesis struct {
	ID        string    `json:"id"`
	Statement string    `json:"statement"`
	CreatedAt time.Time `json:"created_at"`
}

// Contradiction records a detected conflict between a message and a fact.
type Contradiction struct {
	ID        string    `json:"id"`
	FactID    string    `json:"fact_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Context is the mutable per-case conversation state. One exists per case,
// created on first access and mutated in place on every message.
type Context struct {
	CaseID string `json:"case_id"`

	PrimarySystem  string         `json:"primary_system,omitempty"`
	Classification Classification `json:"classification,omitempty"`

	Mode            Mode    `json:"mode"`
	Submode         Submode `json:"submode"`
	PreviousSubmode Submode `json:"previous_submode,omitempty"`

	TopicStack []TopicEntry `json:"topic_stack,omitempty"`

	ActiveProcedureID string `json:"active_procedure_id,omitempty"`
	ActiveStepID      string `json:"active_step_id,omitempty"`

	// Step bookkeeping. Ordered slices rather than sets so progress blocks
	// and anti-loop directives list steps in a stable order.
	CompletedSteps []string `json:"completed_steps,omitempty"`
	UnableSteps    []string `json:"unable_steps,omitempty"`
	AskedSteps     []string `json:"asked_steps,omitempty"`

	Facts          []Fact          `json:"facts,omitempty"`
	Hypotheses     []Hypothesis    `json:"hypotheses,omitempty"`
	Contradictions []Contradiction `json:"contradictions,omitempty"`

	LastAgentActions     []AgentAction `json:"last_agent_actions,omitempty"`
	ConsecutiveFallbacks int           `json:"consecutive_fallbacks"`

	IsolationComplete    bool   `json:"isolation_complete"`
	IsolationFinding     string `json:"isolation_finding,omitempty"`
	IsolationInvalidated bool   `json:"isolation_invalidated"`
	ReplanReason         string `json:"replan_reason,omitempty"`
	CauseAllowed         bool   `json:"cause_allowed"`

	// LegacyTopics is the keyword fallback used when no system was detected.
	LegacyTopics []string `json:"legacy_topics,omitempty"`

	Labor LaborState `json:"labor"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryTurn is one prior conversation turn, read-only input to the
// replan engine's contradiction heuristic.
type HistoryTurn struct {
	Role    string `json:"role"` // "technician" or "assistant"
	Content string `json:"content"`
}

// NewContext returns a fresh context for a case in the main diagnostic flow.
func NewContext(caseID string) *Context {
	now := time.Now()
	return &Context{
		CaseID:    caseID,
		Mode:      ModeDiagnostic,
		Submode:   SubmodeMain,
		Labor:     LaborState{Mode: LaborNone},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes the modification timestamp. Every mutation helper calls it.
func (c *Context) Touch() {
	c.UpdatedAt = time.Now()
}

// HasStep reports whether id is present in the given step list.
func HasStep(steps []string, id string) bool {
	for _, s := range steps {
		if s == id {
			return true
		}
	}
	return false
}

func removeStep(steps []string, id string) []string {
	out := steps[:0]
	for _, s := range steps {
		if s != id {
			out = append(out, s)
		}
	}
	return out
}

// MarkStepCompleted records a step as answered. A step previously marked
// unable moves back to completed; the two lists never hold the same id.
func (c *Context) MarkStepCompleted(stepID string) {
	if stepID == "" || HasStep(c.CompletedSteps, stepID) {
		return
	}
	c.UnableSteps = removeStep(c.UnableSteps, stepID)
	c.CompletedSteps = append(c.CompletedSteps, stepID)
	if c.ActiveStepID == stepID {
		c.ActiveStepID = ""
	}
	c.Touch()
}

// MarkStepUnable records that the technician cannot verify a step.
// A step already completed stays completed; unable never demotes it.
func (c *Context) MarkStepUnable(stepID string) {
	if stepID == "" || HasStep(c.UnableSteps, stepID) || HasStep(c.CompletedSteps, stepID) {
		return
	}
	c.UnableSteps = append(c.UnableSteps, stepID)
	if c.ActiveStepID == stepID {
		c.ActiveStepID = ""
	}
	c.Touch()
}

// MarkStepAsked appends to the asked list (duplicates allowed; the loop
// guard counts repeats from the action history, not from this list).
func (c *Context) MarkStepAsked(stepID string) {
	if stepID == "" {
		return
	}
	c.AskedSteps = append(c.AskedSteps, stepID)
	c.Touch()
}

// AddFact appends a fact and returns its generated id.
func (c *Context) AddFact(t FactType, source FactSource, value, stepID string) string {
	f := Fact{
		ID:        uuid.NewString(),
		Type:      t,
		Source:    source,
		Value:     value,
		StepID:    stepID,
		Timestamp: time.Now(),
	}
	c.Facts = append(c.Facts, f)
	c.Touch()
	return f.ID
}

// SupersedeFact soft-invalidates the fact with the given id. The fact stays
// in the list; only SupersededBy is set.
func (c *Context) SupersedeFact(factID, byFactID string) {
	for i := range c.Facts {
		if c.Facts[i].ID == factID {
			c.Facts[i].SupersededBy = byFactID
			c.Touch()
			return
		}
	}
}

// ActiveFacts returns the facts not yet superseded, in insertion order.
func (c *Context) ActiveFacts() []Fact {
	var out []Fact
	for _, f := range c.Facts {
		if f.SupersededBy == "" {
			out = append(out, f)
		}
	}
	return out
}

// AddHypothesis appends a root-cause candidate.
func (c *Context) AddHypothesis(statement string) {
	c.Hypotheses = append(c.Hypotheses, Hypothesis{
		ID:        uuid.NewString(),
		Statement: statement,
		CreatedAt: time.Now(),
	})
	c.Touch()
}

// AddContradiction records a conflict between new text and an existing fact.
func (c *Context) AddContradiction(factID, detail string) {
	c.Contradictions = append(c.Contradictions, Contradiction{
		ID:        uuid.NewString(),
		FactID:    factID,
		Detail:    detail,
		CreatedAt: time.Now(),
	})
	c.Touch()
}

// MarkIsolationComplete records the diagnostic conclusion as a fact so a
// later replan has something concrete to supersede.
func (c *Context) MarkIsolationComplete(finding string) {
	c.IsolationComplete = true
	c.IsolationInvalidated = false
	c.IsolationFinding = finding
	c.CauseAllowed = true
	c.AddFact(FactIsolationFinding, SourceSystem, finding, c.ActiveStepID)
}

// SetMode switches the top-level conversation mode.
func (c *Context) SetMode(m Mode) {
	c.Mode = m
	c.Touch()
}

// SetActiveStep records the step currently being asked.
func (c *Context) SetActiveStep(stepID string) {
	c.ActiveStepID = stepID
	c.Touch()
}
