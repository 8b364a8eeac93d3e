package model

import "time"

// Verdict is one test case's outcome as returned by the execution
// collaborator. Error carries compiler/runtime diagnostics; a non-empty
// Error does not remove the case from the transcript.
type Verdict struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Correct        bool   `json:"correct"`
	Error          string `json:"error,omitempty"`
}

// Submission is one "submit" action and its per-test-case results. "Run"
// actions never produce a Submission; they only return verdicts to the
// caller.
type Submission struct {
	ID          string    `json:"id"`
	ContestID   string    `json:"contest_id"`
	ProblemID   string    `json:"problem_id"`
	Email       string    `json:"email"`
	Language    string    `json:"language"`
	Code        string    `json:"code"`
	Accepted    bool      `json:"accepted"`
	Passed      int       `json:"passed"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submitted_at"`
	Verdicts    []Verdict `json:"verdicts,omitempty"`
}

// Progress is the per-problem participant state, computed once from the
// submission history and the violation flag, then consumed everywhere else
// instead of ad-hoc checks on optional fields.
type Progress string

const (
	ProgressNotAttempted Progress = "not_attempted"
	ProgressAttempted    Progress = "attempted"
	ProgressAccepted     Progress = "accepted"
	ProgressViolation    Progress = "violation"
)

// HasRecord reports whether the participant has any history for the
// problem. Problems with a record may be revealed ahead of the normal
// phase gate.
func (p Progress) HasRecord() bool {
	return p != ProgressNotAttempted
}
