package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crosstrim/internal/models"
	"github.com/desertthunder/crosstrim/internal/shared"
)

const jobColumns = `id, run_id, content_path, timing_path, output_path, status, message, elapsed_ms, created_at`

var _ models.Repository[*models.JobResult] = (*JobRepository)(nil)

// JobRepository implements models.Repository[*models.JobResult] for per-entry batch outcomes.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a job result with a generated ID. The parent run must exist.
func (r *JobRepository) Create(job *models.JobResult) error {
	job.SetID(shared.GenerateID())

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		job.ID(),
		job.RunID,
		job.ContentPath,
		nullString(job.TimingPath),
		nullString(job.OutputPath),
		string(job.Status),
		nullString(job.Message),
		job.Elapsed.Milliseconds(),
		job.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Get retrieves a job result by ID
func (r *JobRepository) Get(id string) (*models.JobResult, error) {
	row := r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row.Scan, id)
}

// Update rewrites the outcome fields of a job result
func (r *JobRepository) Update(job *models.JobResult) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE jobs
		SET timing_path = ?, output_path = ?, status = ?, message = ?, elapsed_ms = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		nullString(job.TimingPath),
		nullString(job.OutputPath),
		string(job.Status),
		nullString(job.Message),
		job.Elapsed.Milliseconds(),
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return expectOne(result, shared.ErrJobNotFound, job.ID())
}

// Delete removes a job result by ID
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return expectOne(result, shared.ErrJobNotFound, id)
}

// List retrieves job results in the order they were recorded.
//
// Supported criteria: "run_id" (string) and "status" (string or [models.JobStatus]).
func (r *JobRepository) List(criteria map[string]any) ([]*models.JobResult, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	args := []any{}

	if runID, ok := criteria["run_id"].(string); ok && runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}
	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.JobStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.JobResult
	for rows.Next() {
		job, err := scanJob(rows.Scan, "")
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return jobs, nil
}

// CountByStatus returns how many jobs of a run ended in each status
func (r *JobRepository) CountByStatus(runID string) (map[models.JobStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM jobs WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[models.JobStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

func scanJob(scan func(dest ...any) error, key string) (*models.JobResult, error) {
	var (
		job       models.JobResult
		id        string
		timing    sql.NullString
		output    sql.NullString
		status    string
		message   sql.NullString
		elapsedMS int64
		createdAt time.Time
	)

	err := scan(&id, &job.RunID, &job.ContentPath, &timing, &output, &status, &message, &elapsedMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.SetID(id)
	job.SetCreatedAt(createdAt)
	job.TimingPath = timing.String
	job.OutputPath = output.String
	job.Status = models.JobStatus(status)
	job.Message = message.String
	job.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
