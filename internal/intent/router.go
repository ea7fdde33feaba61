package intent

import (
	"strconv"
	"strings"
	"unicode"
)

// Hour confirmations outside this range are not believable labor values
// and fall through to the main diagnostic flow.
const (
	minLaborHours = 0.5
	maxLaborHours = 20
)

// DetectIntent classifies a technician message. Families are evaluated in
// fixed priority order; the first hit wins:
//
//	locate > explain > howto > already_answered > unable_to_verify >
//	evidence > confirmation > main_diagnostic
//
// Clarifications come first because their phrasing can overlap ordinary
// diagnostic answers.
func DetectIntent(message string) Intent {
	trimmed := strings.TrimSpace(message)
	if !hasContent(trimmed) {
		return Intent{Kind: Unclear}
	}

	switch {
	case anyMatch(locatePatterns, trimmed):
		return Intent{Kind: Locate, Query: trimmed}
	case anyMatch(explainPatterns, trimmed):
		return Intent{Kind: Explain, Query: trimmed}
	case anyMatch(howtoPatterns, trimmed):
		return Intent{Kind: HowTo, Query: trimmed}
	}

	if anyMatch(alreadyAnsweredPatterns, trimmed) {
		return Intent{Kind: AlreadyAnswered}
	}
	if anyMatch(unableToVerifyPatterns, trimmed) {
		return Intent{Kind: UnableToVerify}
	}

	if et, ok := detectStrictEvidence(trimmed); ok {
		return Intent{Kind: DisputeOrNewEvidence, Evidence: trimmed, EvidenceType: et}
	}

	if conf, ok := detectConfirmation(trimmed); ok {
		return conf
	}

	return Intent{Kind: MainDiagnostic}
}

// IsClarificationRequest reports whether the message asks a locate, explain
// or howto side-question.
func IsClarificationRequest(message string) bool {
	return DetectIntent(message).IsClarification()
}

// detectStrictEvidence is the router's evidence branch: damage, measurement
// change, dispute, or a new observation, in that order.
func detectStrictEvidence(message string) (EvidenceType, bool) {
	switch {
	case anyMatch(physicalDamagePatterns, message):
		return EvidencePhysicalDamage, true
	case anyMatch(measurementChangePatterns, message):
		return EvidenceMeasurementChange, true
	case anyMatch(technicianDisputePatterns, message):
		return EvidenceTechnicianDispute, true
	case anyMatch(newObservationPatterns, message):
		return EvidenceNewObservation, true
	}
	return "", false
}

// DetectNewEvidence is the looser classifier used by the replan engine.
// Beyond the router's families it accepts bare damage vocabulary with no
// reporting verb, trading precision for recall: missing real evidence is
// worse for replanning than a false hit, which the replan engine filters
// again.
func DetectNewEvidence(message string) (EvidenceType, bool) {
	if et, ok := detectStrictEvidence(message); ok {
		return et, true
	}
	if anyMatch(looseDamagePatterns, message) {
		return EvidencePhysicalDamage, true
	}
	return "", false
}

// detectConfirmation recognizes an accept word or an explicit hour value.
func detectConfirmation(message string) (Intent, bool) {
	if anyMatch(acceptPatterns, message) {
		return Intent{Kind: Confirmation, Accepted: true}, true
	}

	// A number inside technical vocabulary is a reading, not hours.
	if anyMatch(technicalContextPatterns, message) {
		return Intent{}, false
	}

	m := hoursNumberPattern.FindStringSubmatch(message)
	if m == nil {
		return Intent{}, false
	}
	raw := strings.ReplaceAll(m[1], ",", ".")
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || hours < minLaborHours || hours > maxLaborHours {
		return Intent{}, false
	}
	return Intent{Kind: Confirmation, Hours: hours}, true
}

func hasContent(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
