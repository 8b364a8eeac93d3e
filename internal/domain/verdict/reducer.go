// Package verdict reduces raw execution responses into an aggregated
// outcome and the console transcript rendered verbatim by clients.
package verdict

import (
	"fmt"
	"strings"

	"codearena/internal/domain/model"
)

// Outcome is the aggregate of one run or submit execution.
type Outcome struct {
	Passed     int      `json:"passed"`
	Total      int      `json:"total"`
	Accepted   bool     `json:"accepted"`
	Transcript []string `json:"transcript"`
}

// Reduce aggregates an ordered verdict list. Accepted requires every case to
// pass and at least one case to exist; an empty list is never accepted.
//
// Transcript order per test case is a contract: error line first when the
// case carried one, then PASSED/FAILED, then input, expected output and
// actual output, with a single summary line after all cases. An execution
// error on one case does not stop processing of the rest.
func Reduce(verdicts []model.Verdict) Outcome {
	out := Outcome{Total: len(verdicts)}

	for i, v := range verdicts {
		if strings.TrimSpace(v.Error) != "" {
			out.Transcript = append(out.Transcript, fmt.Sprintf("Error in test case %d: %s", i+1, v.Error))
		}
		if v.Correct {
			out.Passed++
			out.Transcript = append(out.Transcript, fmt.Sprintf("Test Case %d: PASSED", i+1))
		} else {
			out.Transcript = append(out.Transcript, fmt.Sprintf("Test Case %d: FAILED", i+1))
		}
		out.Transcript = append(out.Transcript,
			fmt.Sprintf("  Input: %s", strings.ReplaceAll(v.Input, "\n", ", ")),
			fmt.Sprintf("  Expected Output: %s", v.ExpectedOutput),
			fmt.Sprintf("  Actual Output: %s", v.ActualOutput),
		)
	}

	out.Accepted = out.Total > 0 && out.Passed == out.Total
	if out.Accepted {
		out.Transcript = append(out.Transcript, fmt.Sprintf("All %d passed! (%d/%d)", out.Total, out.Passed, out.Total))
	} else {
		out.Transcript = append(out.Transcript, fmt.Sprintf("Passed %d of %d", out.Passed, out.Total))
	}
	return out
}

// ProgressOf collapses a problem's submission history and violation flag
// into the single tagged state consumed by gating and result views.
func ProgressOf(history []model.Submission, violation bool) model.Progress {
	if violation {
		return model.ProgressViolation
	}
	if len(history) == 0 {
		return model.ProgressNotAttempted
	}
	for _, sub := range history {
		if sub.Accepted {
			return model.ProgressAccepted
		}
	}
	return model.ProgressAttempted
}
