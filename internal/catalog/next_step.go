package catalog

// settled reports whether id is in completed or unable.
func settled(id string, completed, unable []string) bool {
	for _, s := range completed {
		if s == id {
			return true
		}
	}
	for _, s := range unable {
		if s == id {
			return true
		}
	}
	return false
}

// NextStep returns the first step, in declaration order, that is not yet
// settled and whose prerequisites are all settled. This is deliberately not
// a topological sort: the scan re-runs from the top on every call, so the
// author-chosen declaration order decides which eligible step is asked
// next, and a later step can come up before an earlier one whose
// prerequisites are still open. Returns nil when no step is eligible.
func NextStep(proc *Procedure, completed, unable []string) *Step {
	if proc == nil {
		return nil
	}
	for i := range proc.Steps {
		step := &proc.Steps[i]
		if settled(step.ID, completed, unable) {
			continue
		}
		eligible := true
		for _, pre := range step.Prerequisites {
			if !settled(pre, completed, unable) {
				eligible = false
				break
			}
		}
		if eligible {
			return step
		}
	}
	return nil
}

// AllSettled reports whether every step of the procedure is settled.
func AllSettled(proc *Procedure, completed, unable []string) bool {
	if proc == nil {
		return false
	}
	for i := range proc.Steps {
		if !settled(proc.Steps[i].ID, completed, unable) {
			return false
		}
	}
	return true
}

// MapInitialMessageToSteps pre-marks steps already answered by the case's
// very first message, so volunteered information is never re-asked. It
// returns the ids of every step whose match patterns fire on the message.
func MapInitialMessageToSteps(message string, proc *Procedure) []string {
	if proc == nil || message == "" {
		return nil
	}
	var matched []string
	for i := range proc.Steps {
		step := &proc.Steps[i]
		for _, re := range step.MatchPatterns {
			if re.MatchString(message) {
				matched = append(matched, step.ID)
				break
			}
		}
	}
	return matched
}

// StepMatchesMessage reports whether the message settles the given step.
func StepMatchesMessage(message string, step *Step) bool {
	if step == nil {
		return false
	}
	for _, re := range step.MatchPatterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}
