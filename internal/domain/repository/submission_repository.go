package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"codearena/internal/domain/model"
)

type SubmissionRepository interface {
	Save(ctx context.Context, sub *model.Submission) error
	History(ctx context.Context, contestID, email string) (map[string][]model.Submission, error)
	AcceptedProblemIDs(ctx context.Context, contestID, email string) ([]string, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) Save(ctx context.Context, s *model.Submission) error {
	verdicts, err := json.Marshal(s.Verdicts)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Save marshal verdicts: %w", err)
	}
	query := `INSERT INTO submissions (id, contest_id, problem_id, email, language, code, accepted, passed, total, verdicts, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.ContestID, s.ProblemID, s.Email, s.Language, s.Code,
		s.Accepted, s.Passed, s.Total, verdicts, s.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Save: %w", err)
	}
	return nil
}

// History returns the participant's submissions grouped by problem, oldest
// first within each problem.
func (r *pgSubmissionRepository) History(ctx context.Context, contestID, email string) (map[string][]model.Submission, error) {
	query := `SELECT id, contest_id, problem_id, email, language, code, accepted, passed, total, verdicts, submitted_at
	          FROM submissions WHERE contest_id = $1 AND email = $2 ORDER BY submitted_at ASC`
	rows, err := r.db.QueryContext(ctx, query, contestID, email)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.History query: %w", err)
	}
	defer rows.Close()

	history := map[string][]model.Submission{}
	for rows.Next() {
		var s model.Submission
		var verdicts []byte
		if err := rows.Scan(
			&s.ID, &s.ContestID, &s.ProblemID, &s.Email, &s.Language, &s.Code,
			&s.Accepted, &s.Passed, &s.Total, &verdicts, &s.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.History scan: %w", err)
		}
		if len(verdicts) > 0 {
			if err := json.Unmarshal(verdicts, &s.Verdicts); err != nil {
				return nil, fmt.Errorf("pgSubmissionRepository.History unmarshal verdicts: %w", err)
			}
		}
		history[s.ProblemID] = append(history[s.ProblemID], s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.History rows.Err: %w", err)
	}
	return history, nil
}

func (r *pgSubmissionRepository) AcceptedProblemIDs(ctx context.Context, contestID, email string) ([]string, error) {
	query := `SELECT DISTINCT problem_id FROM submissions
	          WHERE contest_id = $1 AND email = $2 AND accepted = TRUE`
	rows, err := r.db.QueryContext(ctx, query, contestID, email)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.AcceptedProblemIDs query: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.AcceptedProblemIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.AcceptedProblemIDs rows.Err: %w", err)
	}
	return ids, nil
}
