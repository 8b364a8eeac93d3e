package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codearena/internal/app/phase"
	"codearena/internal/common"
	"codearena/internal/domain/model"
)

type fakeContests struct {
	details *model.ContestDetails
	err     error
}

func (f *fakeContests) GetContestDetails(ctx context.Context, contestID, email string) (*model.ContestDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

type fakeSubmissions struct {
	mu      sync.Mutex
	history map[string][]model.Submission
	saved   []*model.Submission
	saveErr error
}

func (f *fakeSubmissions) History(ctx context.Context, contestID, email string) (map[string][]model.Submission, error) {
	if f.history == nil {
		return map[string][]model.Submission{}, nil
	}
	return f.history, nil
}

func (f *fakeSubmissions) Save(ctx context.Context, sub *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, sub)
	return nil
}

func (f *fakeSubmissions) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeStore struct {
	mu        sync.Mutex
	accepted  map[string]bool
	violation bool
	marked    []string
	markErr   error
}

func (f *fakeStore) AcceptedProblems(ctx context.Context, contestID, email string) (map[string]bool, error) {
	out := map[string]bool{}
	for id, ok := range f.accepted {
		out[id] = ok
	}
	return out, nil
}

func (f *fakeStore) MarkAccepted(ctx context.Context, contestID, email, problemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, problemID)
	return nil
}

func (f *fakeStore) HasViolation(ctx context.Context, contestID, email string) (bool, error) {
	return f.violation, nil
}

func (f *fakeStore) MarkViolation(ctx context.Context, contestID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.violation = true
	return nil
}

// fakeExecutor counts calls and can block until released, to exercise the
// single-flight and teardown paths.
type fakeExecutor struct {
	mu       sync.Mutex
	runCalls int
	subCalls int
	verdicts []model.Verdict
	err      error
	block    chan struct{}
}

func (f *fakeExecutor) Run(ctx context.Context, token, problemID, language, code string) ([]model.Verdict, error) {
	f.mu.Lock()
	f.runCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.verdicts, f.err
}

func (f *fakeExecutor) Submit(ctx context.Context, token, problemID, language, code string) ([]model.Verdict, error) {
	f.mu.Lock()
	f.subCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.verdicts, f.err
}

func (f *fakeExecutor) calls() (runs, submits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runCalls, f.subCalls
}

type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func ongoingContest() *model.ContestDetails {
	return &model.ContestDetails{
		Contest: model.Contest{
			ID:    "c1",
			Title: "Spring Sprint",
			Schedule: model.Schedule{
				StartDate:     "2025-03-15",
				StartTime:     "14:00",
				DurationHours: 3,
			},
			Problems: []model.ProblemRef{
				{
					ID:    "p1",
					Title: "Two Sum",
					CodeTemplates: map[string]string{
						"cpp":  "int main() { /* p1 */ }",
						"java": "class Main { /* p1 */ }",
					},
				},
				{
					ID:    "p2",
					Title: "Graph Paths",
					CodeTemplates: map[string]string{
						"cpp": "int main() { /* p2 */ }",
					},
				},
			},
		},
		Registered: true,
	}
}

func midContest() time.Time {
	return time.Date(2025, 3, 15, 15, 0, 0, 0, time.UTC)
}

func passingVerdicts() []model.Verdict {
	return []model.Verdict{
		{Input: "1 2", ExpectedOutput: "3", ActualOutput: "3", Correct: true},
		{Input: "4 5", ExpectedOutput: "9", ActualOutput: "9", Correct: true},
	}
}

func newTestController(t *testing.T, details *model.ContestDetails, exec *fakeExecutor, store *fakeStore, subs *fakeSubmissions, clock *mutableClock) *Controller {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}
	if subs == nil {
		subs = &fakeSubmissions{}
	}
	ctrl := NewController(Config{
		ContestID:    details.ID,
		Email:        "alice@example.com",
		Token:        "tok",
		Contests:     &fakeContests{details: details},
		Submissions:  subs,
		Executor:     exec,
		Store:        store,
		Location:     time.UTC,
		TickInterval: time.Hour,
		ExitGrace:    time.Millisecond,
	}).WithClock(clock.Now)
	return ctrl
}

func TestEnterRefusedOutsideGate(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	entered := false

	unregistered := ongoingContest()
	unregistered.Registered = false
	ctrl := newTestController(t, unregistered, &fakeExecutor{}, nil, nil, clock)
	ctrl.hooks.EnterFullscreen = func() { entered = true }
	if err := ctrl.Enter(context.Background()); !errors.Is(err, common.ErrGateViolation) {
		t.Fatalf("unregistered entry: got %v, want ErrGateViolation", err)
	}

	early := ongoingContest()
	clock.Set(time.Date(2025, 3, 15, 13, 0, 0, 0, time.UTC))
	ctrl = newTestController(t, early, &fakeExecutor{}, nil, nil, clock)
	ctrl.hooks.EnterFullscreen = func() { entered = true }
	if err := ctrl.Enter(context.Background()); !errors.Is(err, common.ErrGateViolation) {
		t.Fatalf("upcoming entry: got %v, want ErrGateViolation", err)
	}

	if entered {
		t.Fatal("fullscreen requested despite refused entry")
	}
}

func TestEnterRefusesDraft(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	details := ongoingContest()
	details.IsDraft = true
	ctrl := newTestController(t, details, &fakeExecutor{}, nil, nil, clock)
	if err := ctrl.Enter(context.Background()); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("draft entry: got %v, want ErrNotFound", err)
	}
}

func TestEnterRefusesAfterViolation(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	store := &fakeStore{violation: true}
	ctrl := newTestController(t, ongoingContest(), &fakeExecutor{}, store, nil, clock)
	if err := ctrl.Enter(context.Background()); !errors.Is(err, common.ErrAccessDenied) {
		t.Fatalf("violated entry: got %v, want ErrAccessDenied", err)
	}
}

func TestAcceptedSubmitLocksProblem(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	exec := &fakeExecutor{verdicts: passingVerdicts()}
	store := &fakeStore{}
	subs := &fakeSubmissions{}
	ctrl := newTestController(t, ongoingContest(), exec, store, subs, clock)
	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer ctrl.Close()

	outcome, err := ctrl.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !outcome.Accepted || outcome.Passed != 2 || outcome.Total != 2 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if subs.savedCount() != 1 {
		t.Fatalf("saved %d submissions, want 1", subs.savedCount())
	}
	if len(store.marked) != 1 || store.marked[0] != "p1" {
		t.Fatalf("marked = %v, want [p1]", store.marked)
	}
	if got := ctrl.Snapshot().Progress["p1"]; got != model.ProgressAccepted {
		t.Fatalf("progress = %v, want accepted", got)
	}

	// Locked: no further execution reaches the collaborator.
	if _, err := ctrl.Run(context.Background()); !errors.Is(err, common.ErrProblemLocked) {
		t.Fatalf("run on locked problem: got %v, want ErrProblemLocked", err)
	}
	if _, err := ctrl.Submit(context.Background()); !errors.Is(err, common.ErrProblemLocked) {
		t.Fatalf("submit on locked problem: got %v, want ErrProblemLocked", err)
	}
	runs, submits := exec.calls()
	if runs != 0 || submits != 1 {
		t.Fatalf("collaborator calls after lock: runs=%d submits=%d", runs, submits)
	}

	// Other problems stay open.
	if err := ctrl.SelectProblem(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("run on open problem: %v", err)
	}
}

func TestRunNeverLocksOrPersists(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	exec := &fakeExecutor{verdicts: passingVerdicts()}
	store := &fakeStore{}
	subs := &fakeSubmissions{}
	ctrl := newTestController(t, ongoingContest(), exec, store, subs, clock)
	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer ctrl.Close()

	outcome, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !outcome.Accepted {
		t.Fatalf("all cases passed yet outcome not accepted: %+v", outcome)
	}
	if subs.savedCount() != 0 {
		t.Fatal("run persisted a submission")
	}
	if len(store.marked) != 0 {
		t.Fatal("run locked the problem")
	}
	if _, err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("submit after passing run: %v", err)
	}
}

func TestLocksRestoredFromStore(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	exec := &fakeExecutor{verdicts: passingVerdicts()}
	store := &fakeStore{accepted: map[string]bool{"p1": true}}
	ctrl := newTestController(t, ongoingContest(), exec, store, nil, clock)
	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer ctrl.Close()

	if _, err := ctrl.Submit(context.Background()); !errors.Is(err, common.ErrProblemLocked) {
		t.Fatalf("submit on restored lock: got %v, want ErrProblemLocked", err)
	}
	if runs, submits := exec.calls(); runs != 0 || submits != 0 {
		t.Fatalf("collaborator contacted: runs=%d submits=%d", runs, submits)
	}
}

func TestSingleFlight(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	exec := &fakeExecutor{verdicts: passingVerdicts(), block: make(chan struct{})}
	ctrl := newTestController(t, ongoingContest(), exec, nil, nil, clock)
	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer ctrl.Close()

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Run(context.Background())
		done <- err
	}()

	// Wait for the first call to reach the collaborator.
	deadline := time.After(time.Second)
	for {
		if runs, _ := exec.calls(); runs == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first run never started")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := ctrl.Run(context.Background()); !errors.Is(err, common.ErrSessionBusy) {
		t.Fatalf("concurrent run: got %v, want ErrSessionBusy", err)
	}
	if _, err := ctrl.Submit(context.Background()); !errors.Is(err, common.ErrSessionBusy) {
		t.Fatalf("concurrent submit: got %v, want ErrSessionBusy", err)
	}

	close(exec.block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("run after settle: %v", err)
	}
}

func TestCloseDiscardsInFlightResult(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	exec := &fakeExecutor{verdicts: passingVerdicts(), block: make(chan struct{})}
	subs := &fakeSubmissions{}
	ctrl := newTestController(t, ongoingContest(), exec, nil, subs, clock)
	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Submit(context.Background())
		done <- err
	}()
	deadline := time.After(time.Second)
	for {
		if _, submits := exec.calls(); submits == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("submit never started")
		case <-time.After(time.Millisecond):
		}
	}

	ctrl.Close()
	close(exec.block)

	if err := <-done; !errors.Is(err, common.ErrSessionClosed) {
		t.Fatalf("in-flight submit after close: got %v, want ErrSessionClosed", err)
	}
	if subs.savedCount() != 0 {
		t.Fatal("submission persisted after teardown")
	}
}

func TestExpiryFiresExactlyOnce(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	ctrl := newTestController(t, ongoingContest(), &fakeExecutor{}, nil, nil, clock)

	var mu sync.Mutex
	notifies, exits, navigates := 0, 0, 0
	navigated := make(chan struct{}, 4)
	ctrl.hooks.Notify = func(string, string) { mu.Lock(); notifies++; mu.Unlock() }
	ctrl.hooks.ExitFullscreen = func() { mu.Lock(); exits++; mu.Unlock() }
	ctrl.hooks.NavigateAway = func() {
		mu.Lock()
		navigates++
		mu.Unlock()
		navigated <- struct{}{}
	}

	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer ctrl.Close()

	clock.Set(time.Date(2025, 3, 15, 17, 0, 1, 0, time.UTC))
	past := phase.Tick{Phase: model.PhasePast}
	ctrl.onTick(past)
	ctrl.onTick(past)

	select {
	case <-navigated:
	case <-time.After(time.Second):
		t.Fatal("forced exit never navigated away")
	}
	// Give a duplicate sequence time to show up if one were coming.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if notifies != 1 {
		t.Fatalf("notify fired %d times, want 1", notifies)
	}
	if navigates != 1 {
		t.Fatalf("navigate fired %d times, want 1", navigates)
	}
	// ExitFullscreen fires once for expiry and once more from Close.
	if exits == 0 {
		t.Fatal("fullscreen never released")
	}

	if _, err := ctrl.Run(context.Background()); !errors.Is(err, common.ErrSessionClosed) {
		t.Fatalf("run after expiry: got %v, want ErrSessionClosed", err)
	}
}

func TestReportViolationTerminates(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	store := &fakeStore{}
	ctrl := newTestController(t, ongoingContest(), &fakeExecutor{}, store, nil, clock)
	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}

	if err := ctrl.ReportViolation(context.Background()); err != nil {
		t.Fatalf("report violation: %v", err)
	}
	if !store.violation {
		t.Fatal("violation not recorded in store")
	}
	if _, err := ctrl.Run(context.Background()); !errors.Is(err, common.ErrSessionClosed) {
		t.Fatalf("run after violation: got %v, want ErrSessionClosed", err)
	}
	if got := ctrl.Snapshot().State; got != StateTerminated {
		t.Fatalf("state = %v, want terminated", got)
	}
}

func TestReportViolationFailedWriteLeavesSessionOpen(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	store := &fakeStore{markErr: errors.New("redis down")}
	ctrl := newTestController(t, ongoingContest(), &fakeExecutor{}, store, nil, clock)
	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer ctrl.Close()

	if err := ctrl.ReportViolation(context.Background()); err == nil {
		t.Fatal("report violation succeeded despite failing store write")
	}
	snap := ctrl.Snapshot()
	if snap.State != StateRunning {
		t.Fatalf("state = %v, want running", snap.State)
	}
	for id, progress := range snap.Progress {
		if progress == model.ProgressViolation {
			t.Fatalf("problem %s reports violation after failed write", id)
		}
	}

	// Once the store recovers the report goes through and terminates.
	store.mu.Lock()
	store.markErr = nil
	store.mu.Unlock()
	if err := ctrl.ReportViolation(context.Background()); err != nil {
		t.Fatalf("retried report violation: %v", err)
	}
	if !store.violation {
		t.Fatal("violation not recorded in store")
	}
	if got := ctrl.Snapshot().State; got != StateTerminated {
		t.Fatalf("state = %v, want terminated", got)
	}
}

func TestBufferFollowsSelectionAndLanguage(t *testing.T) {
	clock := &mutableClock{now: midContest()}
	details := ongoingContest()
	ctrl := newTestController(t, details, &fakeExecutor{}, nil, nil, clock)
	if err := ctrl.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer ctrl.Close()

	p1cpp := details.Problems[0].CodeTemplates["cpp"]
	if got := ctrl.Snapshot().Code; got != p1cpp {
		t.Fatalf("initial buffer = %q, want template", got)
	}

	// Edits building on the template survive a re-select of the same problem.
	edited := p1cpp + "\n// work in progress"
	ctrl.SetCode(edited)
	if err := ctrl.SelectProblem(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := ctrl.Snapshot().Code; got != edited {
		t.Fatalf("re-select clobbered edits: %q", got)
	}

	// Switching problems resets, because the buffer no longer embeds the
	// target's template.
	if err := ctrl.SelectProblem(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := ctrl.Snapshot().Code; got != details.Problems[1].CodeTemplates["cpp"] {
		t.Fatalf("buffer after switch = %q", got)
	}

	// Language change always resets to the new language's template.
	if err := ctrl.SelectProblem(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := ctrl.SetLanguage("java"); err != nil {
		t.Fatalf("set language: %v", err)
	}
	if got := ctrl.Snapshot().Code; got != details.Problems[0].CodeTemplates["java"] {
		t.Fatalf("buffer after language switch = %q", got)
	}

	if err := ctrl.SetLanguage("python"); !errors.Is(err, common.ErrBadRequest) {
		t.Fatalf("unsupported language: got %v, want ErrBadRequest", err)
	}
	if err := ctrl.SelectProblem(5); !errors.Is(err, common.ErrBadRequest) {
		t.Fatalf("out-of-range select: got %v, want ErrBadRequest", err)
	}
}
