package catalog

import (
	"fmt"
	"strings"
)

// BuildProcedureContext renders the human-readable progress block handed to
// the prompt composition step: what is settled, what the technician could
// not verify, and the single next question — or the terminal marker once
// every step is settled. The content of this block is contract; downstream
// prompts depend on the section headers.
func BuildProcedureContext(proc *Procedure, completed, unable []string) string {
	if proc == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DIAGNOSTIC PROCEDURE: %s (%s)\n", proc.DisplayName, proc.System)

	if len(completed) > 0 {
		b.WriteString("COMPLETED STEPS:\n")
		for _, id := range completed {
			if step := proc.StepByID(id); step != nil {
				fmt.Fprintf(&b, "  - %s: %s\n", id, step.Question)
			} else {
				fmt.Fprintf(&b, "  - %s\n", id)
			}
		}
	}

	if len(unable) > 0 {
		b.WriteString("SKIPPED (technician unable to verify):\n")
		for _, id := range unable {
			if step := proc.StepByID(id); step != nil {
				fmt.Fprintf(&b, "  - %s: %s\n", id, step.Question)
			} else {
				fmt.Fprintf(&b, "  - %s\n", id)
			}
		}
	}

	if next := NextStep(proc, completed, unable); next != nil {
		fmt.Fprintf(&b, "NEXT QUESTION (%s): %s\n", next.ID, next.Question)
	} else if AllSettled(proc, completed, unable) {
		b.WriteString("ALL PROCEDURE STEPS COMPLETE. Move to isolation conclusion.\n")
	} else {
		// Remaining steps exist but none is eligible: every open step has an
		// unmet prerequisite that is itself open.
		b.WriteString("NO ELIGIBLE STEP. Revisit skipped prerequisites before concluding.\n")
	}

	return b.String()
}
