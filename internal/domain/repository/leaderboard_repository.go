package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codearena/internal/domain/leaderboard"
	"codearena/internal/domain/model"
)

type LeaderboardRepository interface {
	// Rows returns the ranked standings for a contest. The returned order
	// IS the ranking; callers never re-sort.
	Rows(ctx context.Context, contestID string, start time.Time, duration time.Duration) ([]model.LeaderboardRow, error)
}

type pgLeaderboardRepository struct {
	db *sql.DB
}

func NewPgLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &pgLeaderboardRepository{db: db}
}

// Rows aggregates accepted submissions per participant, then applies the
// weighted final score and ranks by it. A participant's finish is the instant
// the last counted problem was accepted.
func (r *pgLeaderboardRepository) Rows(ctx context.Context, contestID string, start time.Time, duration time.Duration) ([]model.LeaderboardRow, error) {
	query := `
        WITH solved AS (
            SELECT s.email, s.problem_id, MIN(s.submitted_at) AS solved_at
            FROM submissions s
            WHERE s.contest_id = $1 AND s.accepted = TRUE
            GROUP BY s.email, s.problem_id
        ),
        max_score AS (
            SELECT COALESCE(SUM(CASE cp.difficulty
                WHEN 'easy' THEN 100 WHEN 'medium' THEN 200 WHEN 'hard' THEN 300 ELSE 0
            END), 0) AS total FROM contest_problems cp WHERE cp.contest_id = $1
        )
        SELECT reg.email, COALESCE(u.username, reg.email) AS uname,
               COUNT(solved.problem_id) AS solved,
               COALESCE(SUM(CASE cp.difficulty
                   WHEN 'easy' THEN 100 WHEN 'medium' THEN 200 WHEN 'hard' THEN 300 ELSE 0
               END), 0) AS score,
               (SELECT total FROM max_score) AS max_score,
               MAX(solved.solved_at) AS finished_at
        FROM contest_registrations reg
        LEFT JOIN users u ON u.email = reg.email
        LEFT JOIN solved ON solved.email = reg.email
        LEFT JOIN contest_problems cp ON cp.id = solved.problem_id
        WHERE reg.contest_id = $1
        GROUP BY reg.email, u.username
        ORDER BY score DESC, finished_at ASC NULLS LAST, reg.email ASC`

	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.Rows query: %w", err)
	}
	defer rows.Close()

	standings := []model.LeaderboardRow{}
	taken := []time.Duration{}
	for rows.Next() {
		var row model.LeaderboardRow
		var finishedAt sql.NullTime
		if err := rows.Scan(&row.Email, &row.Uname, &row.Solved, &row.Score, &row.MaxScore, &finishedAt); err != nil {
			return nil, fmt.Errorf("pgLeaderboardRepository.Rows scan: %w", err)
		}
		elapsed := time.Duration(0)
		if finishedAt.Valid {
			elapsed = finishedAt.Time.Sub(start)
			row.FinishTime = finishedAt.Time.In(start.Location()).Format("15:04:05")
			row.TimeTaken = formatTaken(elapsed)
		}
		standings = append(standings, row)
		taken = append(taken, elapsed)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLeaderboardRepository.Rows rows.Err: %w", err)
	}

	for i := range standings {
		standings[i].FinalScore = leaderboard.FinalScore(
			standings[i].Score, standings[i].MaxScore, taken[i], duration, len(standings))
	}
	leaderboard.Rank(standings)
	return standings, nil
}

func formatTaken(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
