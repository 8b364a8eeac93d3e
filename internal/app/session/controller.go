// Package session orchestrates a live contest-taking session: fullscreen
// enforcement at entry and exit, per-problem submission locking, the
// countdown-driven forced exit, and run/submit dispatch through the
// execution collaborator.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"codearena/internal/app/phase"
	"codearena/internal/common"
	"codearena/internal/domain/gate"
	"codearena/internal/domain/model"
	"codearena/internal/domain/schedule"
	"codearena/internal/domain/verdict"
	"codearena/internal/platform/executor"

	"github.com/google/uuid"
)

type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateRunning    State = "running"
	StateSubmitting State = "submitting"
	StateExpired    State = "expired"
	StateTerminated State = "terminated"
)

// ContestSource supplies contest details for the entering participant.
type ContestSource interface {
	GetContestDetails(ctx context.Context, contestID, email string) (*model.ContestDetails, error)
}

// SubmissionSource loads and persists submission history. Only "submit"
// actions ever reach Save; runs leave no trace here.
type SubmissionSource interface {
	History(ctx context.Context, contestID, email string) (map[string][]model.Submission, error)
	Save(ctx context.Context, sub *model.Submission) error
}

// Hooks are the client-facing side effects the controller drives. Handlers
// translate them into responses or pushes; tests observe them directly.
type Hooks struct {
	EnterFullscreen func()
	ExitFullscreen  func()
	Notify          func(title, message string)
	NavigateAway    func()
}

func (h *Hooks) fillDefaults() {
	if h.EnterFullscreen == nil {
		h.EnterFullscreen = func() {}
	}
	if h.ExitFullscreen == nil {
		h.ExitFullscreen = func() {}
	}
	if h.Notify == nil {
		h.Notify = func(string, string) {}
	}
	if h.NavigateAway == nil {
		h.NavigateAway = func() {}
	}
}

// Controller is the state machine for one open session. All methods are
// safe for concurrent use; execution calls release the lock while waiting
// on the collaborator so a phase tick can expire the session mid-flight.
type Controller struct {
	contestID string
	email     string
	token     string

	contests    ContestSource
	submissions SubmissionSource
	exec        executor.Client
	store       Store
	hooks       Hooks

	loc          *time.Location
	tickInterval time.Duration
	exitGrace    time.Duration
	now          func() time.Time
	afterFunc    func(time.Duration, func()) *time.Timer

	mu         sync.Mutex
	state      State
	contest    *model.ContestDetails
	subs       map[string][]model.Submission
	accepted   map[string]bool
	violation  bool
	selected   int
	language   string
	codeBuffer string
	lastTick   phase.Tick
	expired    bool
	closed     bool

	cancelResolver context.CancelFunc
	expireOnce     sync.Once
}

// Config carries the immutable wiring for a controller.
type Config struct {
	ContestID    string
	Email        string
	Token        string
	Contests     ContestSource
	Submissions  SubmissionSource
	Executor     executor.Client
	Store        Store
	Hooks        Hooks
	Location     *time.Location
	TickInterval time.Duration
	ExitGrace    time.Duration
}

func NewController(cfg Config) *Controller {
	cfg.Hooks.fillDefaults()
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Controller{
		contestID:    cfg.ContestID,
		email:        cfg.Email,
		token:        cfg.Token,
		contests:     cfg.Contests,
		submissions:  cfg.Submissions,
		exec:         cfg.Executor,
		store:        cfg.Store,
		hooks:        cfg.Hooks,
		loc:          cfg.Location,
		tickInterval: cfg.TickInterval,
		exitGrace:    cfg.ExitGrace,
		now:          time.Now,
		afterFunc:    time.AfterFunc,
		state:        StateLoading,
		language:     model.SupportedLanguages[1], // cpp, the editor default
		subs:         map[string][]model.Submission{},
		accepted:     map[string]bool{},
	}
}

// WithClock overrides the controller's time source for tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Email identifies the session's owner; handlers refuse callers who present
// someone else's session ID.
func (c *Controller) Email() string { return c.email }

// Submissions returns the session's history for one problem, oldest first.
func (c *Controller) Submissions(problemID string) []model.Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Submission, len(c.subs[problemID]))
	copy(out, c.subs[problemID])
	return out
}

// Enter admits the participant, or refuses without side effects. Admission
// is delegated to the access gate: the contest must be ongoing and the
// participant registered. On success the phase resolver starts and
// fullscreen is requested.
func (c *Controller) Enter(ctx context.Context) error {
	details, err := c.contests.GetContestDetails(ctx, c.contestID, c.email)
	if err != nil {
		return fmt.Errorf("load contest: %w", err)
	}
	if details.IsDraft {
		return common.ErrNotFound
	}

	res, err := schedule.Resolve(details.Schedule, c.loc, c.now())
	if err != nil {
		return fmt.Errorf("resolve contest phase: %w", err)
	}
	if !gate.CanEnterSession(res.Phase, details.Registered) {
		return fmt.Errorf("cannot enter contest %s: %w", c.contestID, common.ErrGateViolation)
	}

	history, err := c.submissions.History(ctx, c.contestID, c.email)
	if err != nil {
		return fmt.Errorf("load submission history: %w", err)
	}
	accepted, err := c.store.AcceptedProblems(ctx, c.contestID, c.email)
	if err != nil {
		return fmt.Errorf("load lock state: %w", err)
	}
	violation, err := c.store.HasViolation(ctx, c.contestID, c.email)
	if err != nil {
		return fmt.Errorf("load violation state: %w", err)
	}
	if violation {
		return fmt.Errorf("session terminated by proctoring violation: %w", common.ErrAccessDenied)
	}
	// History is authoritative for locks; the store bridges reconnects.
	for problemID, subs := range history {
		for _, sub := range subs {
			if sub.Accepted {
				accepted[problemID] = true
			}
		}
	}

	c.mu.Lock()
	c.contest = details
	c.subs = history
	c.accepted = accepted
	c.selected = 0
	c.codeBuffer = c.templateFor(0, c.language)
	c.state = StateReady
	c.mu.Unlock()

	c.hooks.EnterFullscreen()

	resolverCtx, cancel := context.WithCancel(context.Background())
	c.cancelResolver = cancel
	resolver := phase.NewResolver(details.Schedule, c.loc, c.tickInterval, c.onTick).WithClock(c.now)
	if err := resolver.Start(resolverCtx); err != nil {
		cancel()
		c.hooks.ExitFullscreen()
		c.mu.Lock()
		c.state = StateTerminated
		c.closed = true
		c.mu.Unlock()
		return fmt.Errorf("start phase resolver: %w", err)
	}
	return nil
}

// onTick receives every phase resolution. The transition to past fires the
// forced-exit sequence exactly once; later past ticks are no-ops.
func (c *Controller) onTick(t phase.Tick) {
	c.mu.Lock()
	c.lastTick = t
	alreadyClosed := c.closed
	c.mu.Unlock()

	if t.Phase != model.PhasePast || alreadyClosed {
		return
	}

	c.expireOnce.Do(func() {
		c.mu.Lock()
		c.expired = true
		if c.state == StateReady {
			c.state = StateExpired
		}
		c.mu.Unlock()

		c.hooks.Notify("Contest Ended", "The contest has ended. You will be redirected to the dashboard.")
		c.hooks.ExitFullscreen()
		c.afterFunc(c.exitGrace, func() {
			c.hooks.NavigateAway()
			c.Close()
		})
	})
}

// SelectProblem switches the active problem. The code buffer resets to the
// target problem's template unless it already carries edits built on that
// template, so a re-render never clobbers work in progress.
func (c *Controller) SelectProblem(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contest == nil || index < 0 || index >= len(c.contest.Problems) {
		return common.ErrBadRequest
	}
	c.selected = index
	template := c.templateFor(index, c.language)
	if c.codeBuffer == "" || !containsTemplate(c.codeBuffer, template) {
		c.codeBuffer = template
	}
	return nil
}

// SetLanguage switches the editor language and resets the buffer to the
// active problem's template for it.
func (c *Controller) SetLanguage(lang string) error {
	if !model.IsSupportedLanguage(lang) {
		return fmt.Errorf("unsupported language %q: %w", lang, common.ErrBadRequest)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = lang
	c.codeBuffer = c.templateFor(c.selected, lang)
	return nil
}

// SetCode replaces the active buffer with the participant's edits.
func (c *Controller) SetCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codeBuffer = code
}

// Run executes the buffer against the public test cases. A run never locks
// the problem and never touches history, even when every case passes.
func (c *Controller) Run(ctx context.Context) (verdict.Outcome, error) {
	problemID, language, code, err := c.beginExecution(StateRunning)
	if err != nil {
		return verdict.Outcome{}, err
	}

	verdicts, execErr := c.exec.Run(ctx, c.token, problemID, language, code)
	return c.finishExecution(verdicts, execErr, false, problemID, language, code)
}

// Submit executes the buffer against the full test set and persists the
// outcome. An accepted submit permanently locks the problem for the rest
// of the session.
func (c *Controller) Submit(ctx context.Context) (verdict.Outcome, error) {
	problemID, language, code, err := c.beginExecution(StateSubmitting)
	if err != nil {
		return verdict.Outcome{}, err
	}

	verdicts, execErr := c.exec.Submit(ctx, c.token, problemID, language, code)
	return c.finishExecution(verdicts, execErr, true, problemID, language, code)
}

// beginExecution applies the single-flight and lock guards, then marks the
// session busy.
func (c *Controller) beginExecution(next State) (problemID, language, code string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed || c.state == StateTerminated:
		return "", "", "", common.ErrSessionClosed
	case c.expired || c.state == StateExpired:
		return "", "", "", common.ErrSessionClosed
	case c.state == StateRunning || c.state == StateSubmitting:
		return "", "", "", common.ErrSessionBusy
	case c.state != StateReady:
		return "", "", "", common.ErrSessionClosed
	}

	problem := c.contest.Problems[c.selected]
	if c.accepted[problem.ID] {
		return "", "", "", common.ErrProblemLocked
	}

	c.state = next
	return problem.ID, c.language, c.codeBuffer, nil
}

// finishExecution applies an execution result. Responses landing after
// teardown or expiry are discarded rather than applied to dead state; the
// collaborator call itself was allowed to complete and is never re-issued.
func (c *Controller) finishExecution(verdicts []model.Verdict, execErr error, isSubmit bool, problemID, language, code string) (verdict.Outcome, error) {
	c.mu.Lock()
	if c.state == StateRunning || c.state == StateSubmitting {
		if c.expired {
			c.state = StateExpired
		} else {
			c.state = StateReady
		}
	}
	closed := c.closed
	c.mu.Unlock()

	if execErr != nil {
		return verdict.Outcome{}, execErr
	}
	if closed {
		return verdict.Outcome{}, common.ErrSessionClosed
	}

	outcome := verdict.Reduce(verdicts)
	if !isSubmit {
		return outcome, nil
	}

	sub := &model.Submission{
		ID:          uuid.NewString(),
		ContestID:   c.contestID,
		ProblemID:   problemID,
		Email:       c.email,
		Language:    language,
		Code:        code,
		Accepted:    outcome.Accepted,
		Passed:      outcome.Passed,
		Total:       outcome.Total,
		SubmittedAt: c.now(),
		Verdicts:    verdicts,
	}
	// Persistence happens outside the request context on purpose: the
	// submit was accepted by the collaborator and must not be lost to a
	// caller hanging up.
	if err := c.submissions.Save(context.Background(), sub); err != nil {
		return outcome, fmt.Errorf("persist submission: %w", err)
	}

	c.mu.Lock()
	c.subs[problemID] = append(c.subs[problemID], *sub)
	if outcome.Accepted {
		c.accepted[problemID] = true
	}
	c.mu.Unlock()

	if outcome.Accepted {
		if err := c.store.MarkAccepted(context.Background(), c.contestID, c.email, problemID); err != nil {
			// The in-memory lock still holds for this session.
			return outcome, nil
		}
	}
	return outcome, nil
}

// ReportViolation records a proctoring violation and terminates the
// session immediately, fullscreen released, no grace period.
func (c *Controller) ReportViolation(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return common.ErrSessionClosed
	}
	c.mu.Unlock()

	// Record the ban durably before the session reflects it; a failed write
	// leaves the session untouched so the report can be retried.
	if err := c.store.MarkViolation(ctx, c.contestID, c.email); err != nil {
		return err
	}
	c.mu.Lock()
	c.violation = true
	c.mu.Unlock()
	c.hooks.Notify("Violation Recorded", "A proctoring violation was recorded. The session is terminated.")
	c.Close()
	return nil
}

// Finish is the participant's own "I'm done": the session ends cleanly.
func (c *Controller) Finish() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return common.ErrSessionClosed
	}
	c.mu.Unlock()
	c.Close()
	return nil
}

// Close tears the session down: the phase resolver is cancelled, fullscreen
// released, and all later operations refuse. Safe to call repeatedly.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateTerminated
	cancel := c.cancelResolver
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.hooks.ExitFullscreen()
}

// Snapshot is the read model handlers serve: current state, countdown,
// active problem and per-problem progress.
type Snapshot struct {
	State           State                     `json:"state"`
	ContestID       string                    `json:"contest_id"`
	Phase           model.Phase               `json:"phase"`
	Countdown       string                    `json:"countdown"`
	Clock           string                    `json:"clock"`
	SelectedProblem int                       `json:"selected_problem"`
	Language        string                    `json:"language"`
	Code            string                    `json:"code"`
	Progress        map[string]model.Progress `json:"progress"`
	Problems        []model.ProblemRef        `json:"problems"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:           c.state,
		ContestID:       c.contestID,
		Phase:           c.lastTick.Phase,
		Countdown:       c.lastTick.Countdown,
		Clock:           schedule.FormatClock(c.lastTick.Remaining),
		SelectedProblem: c.selected,
		Language:        c.language,
		Code:            c.codeBuffer,
		Progress:        map[string]model.Progress{},
	}
	if c.contest != nil {
		snap.Problems = c.contest.Problems
		for _, p := range c.contest.Problems {
			progress := verdict.ProgressOf(c.subs[p.ID], c.violation)
			if c.accepted[p.ID] {
				progress = model.ProgressAccepted
			}
			snap.Progress[p.ID] = progress
		}
	}
	return snap
}

func (c *Controller) templateFor(index int, lang string) string {
	if c.contest == nil || index < 0 || index >= len(c.contest.Problems) {
		return ""
	}
	return c.contest.Problems[index].CodeTemplates[lang]
}

// containsTemplate reports whether the buffer still embeds the template it
// would be reset to, meaning the participant's edits build on it.
func containsTemplate(buffer, template string) bool {
	return template != "" && strings.Contains(buffer, template)
}
