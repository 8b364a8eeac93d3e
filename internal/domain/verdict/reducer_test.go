package verdict

import (
	"reflect"
	"testing"

	"codearena/internal/domain/model"
)

func TestReduceAllPassed(t *testing.T) {
	out := Reduce([]model.Verdict{
		{Input: "1 2", ExpectedOutput: "3", ActualOutput: "3", Correct: true},
		{Input: "4 5", ExpectedOutput: "9", ActualOutput: "9", Correct: true},
	})

	if !out.Accepted {
		t.Fatal("expected accepted outcome")
	}
	if out.Passed != 2 || out.Total != 2 {
		t.Fatalf("passed/total = %d/%d, want 2/2", out.Passed, out.Total)
	}
	last := out.Transcript[len(out.Transcript)-1]
	if last != "All 2 passed! (2/2)" {
		t.Fatalf("summary = %q, want \"All 2 passed! (2/2)\"", last)
	}
}

func TestReduceEmptyListIsNotAccepted(t *testing.T) {
	out := Reduce(nil)
	if out.Accepted {
		t.Fatal("empty verdict list must not be accepted")
	}
	if got := out.Transcript[len(out.Transcript)-1]; got != "Passed 0 of 0" {
		t.Fatalf("summary = %q", got)
	}
}

func TestReduceTranscriptOrdering(t *testing.T) {
	out := Reduce([]model.Verdict{
		{Input: "a\nb", ExpectedOutput: "x", ActualOutput: "y", Correct: false, Error: "timeout"},
	})

	want := []string{
		"Error in test case 1: timeout",
		"Test Case 1: FAILED",
		"  Input: a, b",
		"  Expected Output: x",
		"  Actual Output: y",
		"Passed 0 of 1",
	}
	if !reflect.DeepEqual(out.Transcript, want) {
		t.Fatalf("transcript = %q, want %q", out.Transcript, want)
	}
}

func TestReduceErrorDoesNotAbortRemainingCases(t *testing.T) {
	out := Reduce([]model.Verdict{
		{Input: "1", ExpectedOutput: "1", ActualOutput: "", Correct: false, Error: "segfault"},
		{Input: "2", ExpectedOutput: "2", ActualOutput: "2", Correct: true},
	})
	if out.Passed != 1 || out.Total != 2 {
		t.Fatalf("passed/total = %d/%d, want 1/2", out.Passed, out.Total)
	}
	if out.Accepted {
		t.Fatal("partial pass must not be accepted")
	}
	// The second case still shows up after the first case's error.
	found := false
	for _, line := range out.Transcript {
		if line == "Test Case 2: PASSED" {
			found = true
		}
	}
	if !found {
		t.Fatalf("second case missing from transcript: %q", out.Transcript)
	}
}

func TestReduceBlankErrorIsIgnored(t *testing.T) {
	out := Reduce([]model.Verdict{
		{Input: "1", ExpectedOutput: "1", ActualOutput: "1", Correct: true, Error: "   "},
	})
	if len(out.Transcript) != 5 {
		t.Fatalf("transcript length = %d, want 5 (no error line): %q", len(out.Transcript), out.Transcript)
	}
	if out.Transcript[0] != "Test Case 1: PASSED" {
		t.Fatalf("first line = %q", out.Transcript[0])
	}
}

func TestProgressOf(t *testing.T) {
	accepted := []model.Submission{{Accepted: false}, {Accepted: true}}
	attempted := []model.Submission{{Accepted: false}}

	cases := []struct {
		name      string
		history   []model.Submission
		violation bool
		want      model.Progress
	}{
		{"no history", nil, false, model.ProgressNotAttempted},
		{"failed attempts", attempted, false, model.ProgressAttempted},
		{"accepted", accepted, false, model.ProgressAccepted},
		{"violation wins", accepted, true, model.ProgressViolation},
	}
	for _, tc := range cases {
		if got := ProgressOf(tc.history, tc.violation); got != tc.want {
			t.Fatalf("%s: ProgressOf = %s, want %s", tc.name, got, tc.want)
		}
	}
}
