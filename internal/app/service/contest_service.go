package service

import (
	"context"
	"fmt"
	"time"

	"codearena/internal/app/session"
	"codearena/internal/common"
	"codearena/internal/domain/gate"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/domain/schedule"
	"codearena/internal/domain/verdict"

	"github.com/google/uuid"
)

// ContestService serves the outside-the-session contest surface: listing,
// details with the derived phase and access decision, registration, and the
// viewer's own result once a contest is over. It also backs the session
// controller's contest source.
type ContestService struct {
	contestRepo repository.ContestRepository
	subRepo     repository.SubmissionRepository
	store       session.Store
	loc         *time.Location
	now         func() time.Time
}

func NewContestService(contestRepo repository.ContestRepository, subRepo repository.SubmissionRepository, store session.Store, loc *time.Location) *ContestService {
	return &ContestService{
		contestRepo: contestRepo,
		subRepo:     subRepo,
		store:       store,
		loc:         loc,
		now:         time.Now,
	}
}

// WithClock overrides the service's time source for tests.
func (s *ContestService) WithClock(now func() time.Time) *ContestService {
	s.now = now
	return s
}

// ContestView is one contest as listed to a viewer: the stored record plus
// the derived phase, countdown and access decision at the time of the call.
type ContestView struct {
	model.Contest
	Phase     model.Phase   `json:"phase"`
	Countdown string        `json:"countdown"`
	Access    gate.Decision `json:"access"`
}

// ContestDetailsView is the full detail page payload. Problems are elided
// when the access gate says they are not yet visible.
type ContestDetailsView struct {
	ContestView
	ParticipantCount int  `json:"participant_count"`
	Registered       bool `json:"registered"`
}

// List returns the published contests with their derived phase. Drafts never
// leave the admin surface. Registration is resolved with one batched lookup,
// and the early-reveal record check is skipped entirely: list rows drop the
// problem set, which is all the record would unlock.
func (s *ContestService) List(ctx context.Context, email string) ([]ContestView, error) {
	contests, err := s.contestRepo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}

	registered := map[string]bool{}
	if email != "" {
		registered, err = s.contestRepo.RegisteredContestIDs(ctx, email)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	views := make([]ContestView, 0, len(contests))
	for _, c := range contests {
		view, err := s.view(c, now, registered[c.ID], false)
		if err != nil {
			return nil, err
		}
		view.Problems = nil // list rows never carry problem sets
		views = append(views, view)
	}
	return views, nil
}

// Details returns one contest with the viewer's registration state and the
// gate decision that drives what the page may show.
func (s *ContestService) Details(ctx context.Context, contestID, email string) (*ContestDetailsView, error) {
	c, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if c.IsDraft {
		return nil, common.ErrNotFound
	}

	registered, hasRecord, err := s.participantRecord(ctx, contestID, email)
	if err != nil {
		return nil, err
	}
	view, err := s.view(*c, s.now(), registered, hasRecord)
	if err != nil {
		return nil, err
	}
	participants, err := s.contestRepo.ListParticipants(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if !view.Access.ProblemsVisible {
		view.Problems = nil
	}

	return &ContestDetailsView{
		ContestView:      view,
		ParticipantCount: len(participants),
		Registered:       view.Access.ShowRegistered,
	}, nil
}

// participantRecord resolves the viewer's registration and whether they
// already have a submission or violation record for the contest.
func (s *ContestService) participantRecord(ctx context.Context, contestID, email string) (registered, hasRecord bool, err error) {
	if email == "" {
		return false, false, nil
	}
	registered, err = s.contestRepo.IsRegistered(ctx, contestID, email)
	if err != nil || !registered {
		return registered, false, err
	}
	accepted, err := s.subRepo.AcceptedProblemIDs(ctx, contestID, email)
	if err != nil {
		return registered, false, err
	}
	violation, err := s.store.HasViolation(ctx, contestID, email)
	if err != nil {
		return registered, false, err
	}
	return registered, len(accepted) > 0 || violation, nil
}

func (s *ContestService) view(c model.Contest, now time.Time, registered, hasRecord bool) (ContestView, error) {
	res, err := schedule.Resolve(c.Schedule, s.loc, now)
	if err != nil {
		return ContestView{}, fmt.Errorf("resolve contest %s: %w", c.ID, err)
	}

	return ContestView{
		Contest:   c,
		Phase:     res.Phase,
		Countdown: schedule.FormatCountdown(res.Remaining),
		Access: gate.Evaluate(gate.Input{
			Phase:      res.Phase,
			Registered: registered,
			Remaining:  res.Remaining,
			HasRecord:  hasRecord,
		}),
	}, nil
}

// CreateContestRequest is the admin payload for publishing a contest.
type CreateContestRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Schedule    model.Schedule   `json:"schedule"`
	Difficulty  model.Difficulty `json:"difficulty"`
	Rules       []string         `json:"rules"`
	Problems    []ProblemInput   `json:"problems"`
	IsDraft     bool             `json:"is_draft"`
}

type ProblemInput struct {
	Title         string            `json:"title"`
	Difficulty    model.Difficulty  `json:"difficulty"`
	Tags          []string          `json:"tags"`
	Description   string            `json:"description"`
	CodeTemplates map[string]string `json:"code_templates"`
}

// Create validates and stores a new contest, minting IDs for the contest and
// its problems. The schedule must parse and span at least one hour; problem
// difficulties must carry a point value.
func (s *ContestService) Create(ctx context.Context, req CreateContestRequest) (*model.Contest, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("contest title is required: %w", common.ErrValidation)
	}
	if req.Schedule.DurationHours < 1 {
		return nil, fmt.Errorf("contest duration must be at least one hour: %w", common.ErrValidation)
	}
	if _, err := req.Schedule.StartInstant(s.loc); err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrValidation)
	}

	contest := &model.Contest{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Schedule:    req.Schedule,
		Difficulty:  req.Difficulty,
		Rules:       req.Rules,
		IsDraft:     req.IsDraft,
	}
	for i, p := range req.Problems {
		if p.Title == "" {
			return nil, fmt.Errorf("problem %d: title is required: %w", i+1, common.ErrValidation)
		}
		if p.Difficulty.Points() == 0 {
			return nil, fmt.Errorf("problem %d: unknown difficulty %q: %w", i+1, p.Difficulty, common.ErrValidation)
		}
		contest.Problems = append(contest.Problems, model.ProblemRef{
			ID:            uuid.NewString(),
			Title:         p.Title,
			Difficulty:    p.Difficulty,
			Tags:          p.Tags,
			Description:   p.Description,
			CodeTemplates: p.CodeTemplates,
			SortOrder:     i + 1,
		})
	}

	if err := s.contestRepo.Create(ctx, contest); err != nil {
		return nil, err
	}
	return contest, nil
}

// Register enrolls the viewer. The gate is consulted first: registration is
// refused once the contest started, ended, or entered the pre-start lockout
// window. Re-registering is a no-op success.
func (s *ContestService) Register(ctx context.Context, contestID, email string) error {
	c, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return err
	}
	if c.IsDraft {
		return common.ErrNotFound
	}

	res, err := schedule.Resolve(c.Schedule, s.loc, s.now())
	if err != nil {
		return fmt.Errorf("resolve contest %s: %w", contestID, err)
	}
	registered, err := s.contestRepo.IsRegistered(ctx, contestID, email)
	if err != nil {
		return err
	}
	if registered {
		return nil
	}

	d := gate.Evaluate(gate.Input{Phase: res.Phase, Registered: false, Remaining: res.Remaining})
	if !d.CanRegister {
		return fmt.Errorf("registration closed for contest %s: %w", contestID, common.ErrGateViolation)
	}
	return s.contestRepo.Register(ctx, contestID, email)
}

// GetContestDetails assembles the record the session controller admits
// against. Unlike Details it always carries the problem set; the controller
// only exists once entry was granted.
func (s *ContestService) GetContestDetails(ctx context.Context, contestID, email string) (*model.ContestDetails, error) {
	c, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	participants, err := s.contestRepo.ListParticipants(ctx, contestID)
	if err != nil {
		return nil, err
	}
	registered, err := s.contestRepo.IsRegistered(ctx, contestID, email)
	if err != nil {
		return nil, err
	}
	return &model.ContestDetails{
		Contest:           *c,
		ParticipantEmails: participants,
		Registered:        registered,
	}, nil
}

// Result builds the viewer's own outcome for a finished contest. Before the
// contest is over there is no result to show.
func (s *ContestService) Result(ctx context.Context, contestID, email string) (*model.ContestResult, error) {
	c, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if c.IsDraft {
		return nil, common.ErrNotFound
	}

	res, err := schedule.Resolve(c.Schedule, s.loc, s.now())
	if err != nil {
		return nil, fmt.Errorf("resolve contest %s: %w", contestID, err)
	}
	if res.Phase != model.PhasePast {
		return nil, fmt.Errorf("results are not available until the contest ends: %w", common.ErrGateViolation)
	}

	history, err := s.subRepo.History(ctx, contestID, email)
	if err != nil {
		return nil, err
	}
	violation, err := s.store.HasViolation(ctx, contestID, email)
	if err != nil {
		return nil, err
	}

	result := &model.ContestResult{
		ContestID: contestID,
		Email:     email,
		Finished:  true,
		Violation: violation,
	}
	for _, p := range c.Problems {
		progress := verdict.ProgressOf(history[p.ID], violation)
		points := 0
		if progress == model.ProgressAccepted {
			points = p.Difficulty.Points()
			result.Solved++
			result.Score += points
		}
		result.MaxScore += p.Difficulty.Points()
		result.Problems = append(result.Problems, model.ProblemResult{
			ProblemID:  p.ID,
			Title:      p.Title,
			Difficulty: p.Difficulty,
			Points:     points,
			Progress:   progress,
		})
	}
	return result, nil
}
