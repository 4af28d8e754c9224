package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/shared"
)

const runColumns = `id, sequence, content_root, timing_root, output_root, workers, mode, take, status,
	total, processed, skipped, failed, started_at, finished_at, created_at, updated_at`

var _ models.Repository[*models.BatchRun] = (*RunRepository)(nil)

// RunRepository implements models.Repository[*models.BatchRun] for the batch run journal.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with a generated ID and the next sequence number
func (r *RunRepository) Create(run *models.BatchRun) error {
	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		run.ID(),
		run.Sequence(),
		run.ContentRoot,
		run.TimingRoot,
		run.OutputRoot,
		run.Workers,
		string(run.Mode),
		run.Take,
		string(run.Status),
		run.Total,
		run.Processed,
		run.Skipped,
		run.Failed,
		run.StartedAt,
		nullTime(run.FinishedAt),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.BatchRun, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row.Scan, id)
}

// GetBySequence retrieves a run by its human-readable number
func (r *RunRepository) GetBySequence(sequence int) (*models.BatchRun, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE sequence = ?`, sequence)
	return scanRun(row.Scan, fmt.Sprintf("#%d", sequence))
}

// Latest returns the most recently started run
func (r *RunRepository) Latest() (*models.BatchRun, error) {
	row := r.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY sequence DESC LIMIT 1`)
	return scanRun(row.Scan, "latest")
}

// Update writes the run's status, counters and finish time
func (r *RunRepository) Update(run *models.BatchRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET status = ?, total = ?, processed = ?, skipped = ?, failed = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		string(run.Status),
		run.Total,
		run.Processed,
		run.Skipped,
		run.Failed,
		nullTime(run.FinishedAt),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return expectOne(result, shared.ErrRunNotFound, run.ID())
}

// Delete removes a run and, through the foreign key, its jobs
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectOne(result, shared.ErrRunNotFound, id)
}

// List retrieves runs newest first.
//
// Supported criteria: "status" (string), "content_root" (string), "since" (time.Time) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.BatchRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if root, ok := criteria["content_root"].(string); ok && root != "" {
		query += " AND content_root = ?"
		args = append(args, root)
	}
	if since, ok := criteria["since"].(time.Time); ok && !since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, since.UTC())
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.BatchRun
	for rows.Next() {
		run, err := scanRun(rows.Scan, "")
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanRun reads one row through scan, which is either [sql.Row.Scan] or [sql.Rows.Scan]
func scanRun(scan func(dest ...any) error, key string) (*models.BatchRun, error) {
	var (
		run        models.BatchRun
		id         string
		sequence   int
		mode       string
		status     string
		finishedAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := scan(&id, &sequence, &run.ContentRoot, &run.TimingRoot, &run.OutputRoot, &run.Workers, &mode, &run.Take, &status,
		&run.Total, &run.Processed, &run.Skipped, &run.Failed, &run.StartedAt, &finishedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.Mode = models.StrictnessMode(mode)
	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// expectOne maps zero affected rows onto notFound.
func expectOne(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
