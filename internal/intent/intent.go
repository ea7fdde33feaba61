// Package intent classifies technician messages into a closed set of
// conversation intents. Classification is pure pattern matching over
// English, Russian and Spanish phrasing — no external calls, no locale
// negotiation: the same message always yields the same intent.
package intent

// Kind tags the closed intent union.
type Kind string

const (
	MainDiagnostic       Kind = "main_diagnostic"
	Locate               Kind = "locate"
	Explain              Kind = "explain"
	HowTo                Kind = "howto"
	DisputeOrNewEvidence Kind = "dispute_or_new_evidence"
	Confirmation         Kind = "confirmation"
	AlreadyAnswered      Kind = "already_answered"
	UnableToVerify       Kind = "unable_to_verify"
	Unclear              Kind = "unclear"
)

// EvidenceType tags the evidence branch of the union.
type EvidenceType string

const (
	EvidencePhysicalDamage    EvidenceType = "physical_damage"
	EvidenceMeasurementChange EvidenceType = "measurement_change"
	EvidenceTechnicianDispute EvidenceType = "technician_dispute"
	EvidenceNewObservation    EvidenceType = "new_observation"
)

// Intent is the tagged classification result. Only the fields matching the
// Kind are populated.
type Intent struct {
	Kind Kind

	// Query carries the technician's question for Locate/Explain/HowTo.
	Query string

	// Evidence fields for DisputeOrNewEvidence.
	Evidence     string
	EvidenceType EvidenceType

	// Confirmation payload: either an explicit hour value or a bare accept.
	Hours    float64
	Accepted bool
}

// IsClarification reports whether the intent opens a clarification
// side-question.
func (i Intent) IsClarification() bool {
	return i.Kind == Locate || i.Kind == Explain || i.Kind == HowTo
}
