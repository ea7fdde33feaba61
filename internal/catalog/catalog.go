// Package catalog holds the static diagnostic procedure registry: the
// ordered question list per equipment system, system detection from free
// text, and the "first eligible step" selection that drives the
// conversation forward.
package catalog

import (
	"regexp"
)

// Step is a single diagnostic question within a procedure.
type Step struct {
	ID            string
	Question      string
	Prerequisites []string
	// MatchPatterns recognize a technician answer (or an up-front statement
	// in the very first message) as settling this step.
	MatchPatterns []*regexp.Regexp
}

// Procedure is the fixed ordered step list for one equipment system.
type Procedure struct {
	System      string
	DisplayName string
	Complex     bool
	Variant     string
	Steps       []Step
}

// systemEntry pairs a system id with the detection patterns for it.
// Registration order is the priority tie-break: on ambiguous text the first
// registered system wins.
type systemEntry struct {
	system   string
	patterns []*regexp.Regexp
}

var (
	detectionOrder []systemEntry
	procedures     = make(map[string]*Procedure)
)

func register(proc *Procedure, detection []*regexp.Regexp) {
	procedures[proc.System] = proc
	detectionOrder = append(detectionOrder, systemEntry{system: proc.System, patterns: detection})
}

// DetectSystem scans the registered systems in priority order and returns
// the first whose detection patterns match the text.
func DetectSystem(text string) (string, bool) {
	for _, entry := range detectionOrder {
		for _, re := range entry.patterns {
			if re.MatchString(text) {
				return entry.system, true
			}
		}
	}
	return "", false
}

// GetProcedure returns the procedure for a system id.
func GetProcedure(system string) (*Procedure, bool) {
	proc, ok := procedures[system]
	return proc, ok
}

// Systems returns the registered system ids in detection priority order.
func Systems() []string {
	out := make([]string, 0, len(detectionOrder))
	for _, entry := range detectionOrder {
		out = append(out, entry.system)
	}
	return out
}

// StepByID returns the step with the given id, or nil.
func (p *Procedure) StepByID(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}
