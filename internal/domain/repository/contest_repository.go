package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"codearena/internal/common"
	"codearena/internal/domain/model"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5/pgconn"
)

type ContestRepository interface {
	Create(ctx context.Context, contest *model.Contest) error
	FindByID(ctx context.Context, id string) (*model.Contest, error)
	List(ctx context.Context, includeDrafts bool) ([]model.Contest, error)

	Register(ctx context.Context, contestID, email string) error
	IsRegistered(ctx context.Context, contestID, email string) (bool, error)
	RegisteredContestIDs(ctx context.Context, email string) (map[string]bool, error)
	ListParticipants(ctx context.Context, contestID string) ([]string, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) Create(ctx context.Context, c *model.Contest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Create begin: %w", err)
	}
	defer tx.Rollback()

	rules, err := json.Marshal(c.Rules)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Create marshal rules: %w", err)
	}
	query := `INSERT INTO contests (id, title, description, start_date, start_time, duration_hours, difficulty, rules, is_draft)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, query,
		c.ID, c.Title, c.Description,
		c.Schedule.StartDate, c.Schedule.StartTime, c.Schedule.DurationHours,
		c.Difficulty, rules, c.IsDraft,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("contest with this title already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.Create: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO contest_problems (id, contest_id, title, difficulty, tags, description, code_templates, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Create prepare problems: %w", err)
	}
	defer stmt.Close()

	for i, p := range c.Problems {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("pgContestRepository.Create marshal tags: %w", err)
		}
		templates, err := json.Marshal(p.CodeTemplates)
		if err != nil {
			return fmt.Errorf("pgContestRepository.Create marshal templates: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, c.ID, p.Title, p.Difficulty, tags, p.Description, templates, i+1); err != nil {
			return fmt.Errorf("pgContestRepository.Create problem %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgContestRepository.Create commit: %w", err)
	}
	return nil
}

func (r *pgContestRepository) FindByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT id, title, description, start_date, start_time, duration_hours, difficulty, rules, is_draft, created_at, updated_at
	          FROM contests WHERE id = $1`
	c := &model.Contest{}
	var rules []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Title, &c.Description,
		&c.Schedule.StartDate, &c.Schedule.StartTime, &c.Schedule.DurationHours,
		&c.Difficulty, &rules, &c.IsDraft, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindByID: %w", err)
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &c.Rules); err != nil {
			return nil, fmt.Errorf("pgContestRepository.FindByID unmarshal rules: %w", err)
		}
	}

	problems, err := r.problemsByContestID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Problems = problems
	return c, nil
}

func (r *pgContestRepository) problemsByContestID(ctx context.Context, contestID string) ([]model.ProblemRef, error) {
	query := `SELECT id, title, difficulty, tags, description, code_templates, sort_order
	          FROM contest_problems WHERE contest_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.problemsByContestID query: %w", err)
	}
	defer rows.Close()

	problems := []model.ProblemRef{}
	for rows.Next() {
		var p model.ProblemRef
		var tags, templates []byte
		if err := rows.Scan(&p.ID, &p.Title, &p.Difficulty, &tags, &p.Description, &templates, &p.SortOrder); err != nil {
			return nil, fmt.Errorf("pgContestRepository.problemsByContestID scan: %w", err)
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &p.Tags); err != nil {
				return nil, fmt.Errorf("pgContestRepository.problemsByContestID unmarshal tags: %w", err)
			}
		}
		if len(templates) > 0 {
			if err := json.Unmarshal(templates, &p.CodeTemplates); err != nil {
				return nil, fmt.Errorf("pgContestRepository.problemsByContestID unmarshal templates: %w", err)
			}
		}
		p.Slug = slug.Make(p.Title)
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.problemsByContestID rows.Err: %w", err)
	}
	return problems, nil
}

func (r *pgContestRepository) List(ctx context.Context, includeDrafts bool) ([]model.Contest, error) {
	query := `SELECT id, title, description, start_date, start_time, duration_hours, difficulty, is_draft, created_at, updated_at
	          FROM contests`
	if !includeDrafts {
		query += ` WHERE is_draft = FALSE`
	}
	query += ` ORDER BY start_date ASC, start_time ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.List query: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	for rows.Next() {
		var c model.Contest
		if err := rows.Scan(
			&c.ID, &c.Title, &c.Description,
			&c.Schedule.StartDate, &c.Schedule.StartTime, &c.Schedule.DurationHours,
			&c.Difficulty, &c.IsDraft, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("pgContestRepository.List scan: %w", err)
		}
		contests = append(contests, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.List rows.Err: %w", err)
	}
	return contests, nil
}

// Register is idempotent: re-registering an already registered participant
// succeeds without a new row.
func (r *pgContestRepository) Register(ctx context.Context, contestID, email string) error {
	query := `INSERT INTO contest_registrations (contest_id, email)
	          VALUES ($1, $2) ON CONFLICT (contest_id, email) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, contestID, email)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // FK: unknown contest
			return fmt.Errorf("contest not found: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgContestRepository.Register: %w", err)
	}
	return nil
}

func (r *pgContestRepository) IsRegistered(ctx context.Context, contestID, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM contest_registrations WHERE contest_id = $1 AND email = $2)`
	var registered bool
	if err := r.db.QueryRowContext(ctx, query, contestID, email).Scan(&registered); err != nil {
		return false, fmt.Errorf("pgContestRepository.IsRegistered: %w", err)
	}
	return registered, nil
}

// RegisteredContestIDs answers "which contests is this participant in" with
// one query, so list views do not look up registration per row.
func (r *pgContestRepository) RegisteredContestIDs(ctx context.Context, email string) (map[string]bool, error) {
	query := `SELECT contest_id FROM contest_registrations WHERE email = $1`
	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.RegisteredContestIDs query: %w", err)
	}
	defer rows.Close()

	ids := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgContestRepository.RegisteredContestIDs scan: %w", err)
		}
		ids[id] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.RegisteredContestIDs rows.Err: %w", err)
	}
	return ids, nil
}

func (r *pgContestRepository) ListParticipants(ctx context.Context, contestID string) ([]string, error) {
	query := `SELECT email FROM contest_registrations WHERE contest_id = $1 ORDER BY registered_at ASC`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListParticipants query: %w", err)
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListParticipants scan: %w", err)
		}
		emails = append(emails, email)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListParticipants rows.Err: %w", err)
	}
	return emails, nil
}
