package service

import (
	"context"
	"fmt"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/leaderboard"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/domain/schedule"
)

// LeaderboardService serves the final standings of a contest, paginated.
// Standings stay hidden until the contest is over.
type LeaderboardService struct {
	contestRepo repository.ContestRepository
	boardRepo   repository.LeaderboardRepository
	loc         *time.Location
	now         func() time.Time
}

func NewLeaderboardService(contestRepo repository.ContestRepository, boardRepo repository.LeaderboardRepository, loc *time.Location) *LeaderboardService {
	return &LeaderboardService{
		contestRepo: contestRepo,
		boardRepo:   boardRepo,
		loc:         loc,
		now:         time.Now,
	}
}

func (s *LeaderboardService) WithClock(now func() time.Time) *LeaderboardService {
	s.now = now
	return s
}

// StandingsPage is one page of the board plus enough metadata to render the
// pager and the viewer's jump target.
type StandingsPage struct {
	ContestID  string                 `json:"contest_id"`
	Rows       []model.LeaderboardRow `json:"rows"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
	TotalRows  int                    `json:"total_rows"`
	// ViewerPage is the page holding the viewer's own row, page 1 when the
	// viewer is not on the board.
	ViewerPage int `json:"viewer_page"`
}

// Standings returns the requested page. Page 0 means "the page with the
// viewer's row", the jump-to-me affordance.
func (s *LeaderboardService) Standings(ctx context.Context, contestID, viewerEmail string, page, size int) (*StandingsPage, error) {
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
		return nil, fmt.Errorf("leaderboard is not available until the contest ends: %w", common.ErrGateViolation)
	}

	start, err := c.Schedule.StartInstant(s.loc)
	if err != nil {
		return nil, err
	}
	duration := time.Duration(c.Schedule.DurationHours) * time.Hour
	rows, err := s.boardRepo.Rows(ctx, contestID, start, duration)
	if err != nil {
		return nil, err
	}

	if size < 1 {
		size = leaderboard.DefaultPageSize
	}
	viewerPage := leaderboard.PageOf(rows, viewerEmail, size)
	if page < 1 {
		page = viewerPage
	}
	total := leaderboard.TotalPages(rows, size)
	if page > total {
		return nil, fmt.Errorf("page %d of %d: %w", page, total, common.ErrBadRequest)
	}

	return &StandingsPage{
		ContestID:  contestID,
		Rows:       leaderboard.Page(rows, page, size),
		Page:       page,
		PageSize:   size,
		TotalPages: total,
		TotalRows:  len(rows),
		ViewerPage: viewerPage,
	}, nil
}
