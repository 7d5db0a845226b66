package postgres

import (
	"context"
	"database/sql"

	"instashare/internal/model"
	"instashare/internal/repository"
)

// JobPostgres is a PostgreSQL implementation of repository.JobRepository.
// Status transitions are guarded in the WHERE clause so a terminal row can
// never be moved back into pending or processing.
type JobPostgres struct {
	db *sql.DB
}

// NewJobPostgres creates a new JobPostgres repository.
func NewJobPostgres(db *sql.DB) *JobPostgres {
	return &JobPostgres{db: db}
}

var _ repository.JobRepository = (*JobPostgres)(nil)

const jobColumns = `id, user_id, status, artifact_path, artifact_size, message, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*model.ArchiveJob, error) {
	var j model.ArchiveJob
	var artifact sql.NullString
	var size sql.NullInt64
	var message sql.NullString
	if err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.Status,
		&artifact,
		&size,
		&message,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if artifact.Valid {
		j.ArtifactPath = artifact.String
	}
	if size.Valid {
		j.ArtifactSize = size.Int64
	}
	if message.Valid {
		j.Message = message.String
	}
	return &j, nil
}

// Create inserts a new pending job row and returns the stored record.
func (r *JobPostgres) Create(ctx context.Context, j *model.ArchiveJob) (*model.ArchiveJob, error) {
	const q = `
		INSERT INTO archive_jobs (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + jobColumns
	row := r.db.QueryRowContext(ctx, q, j.ID, j.UserID, j.Status, j.CreatedAt, j.UpdatedAt)
	return scanJob(row)
}

// FindByID fetches a single job scoped to its owner.
func (r *JobPostgres) FindByID(ctx context.Context, id, userID string) (*model.ArchiveJob, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM archive_jobs
		WHERE id = $1 AND user_id = $2
	`
	return scanJob(r.db.QueryRowContext(ctx, q, id, userID))
}

// MarkProcessing moves a pending job to processing.
func (r *JobPostgres) MarkProcessing(ctx context.Context, id string) error {
	const q = `
		UPDATE archive_jobs
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	return r.exec(ctx, q, id)
}

// MarkDone moves a processing job to done with its artifact and message.
func (r *JobPostgres) MarkDone(ctx context.Context, id, artifactPath string, artifactSize int64, message string) error {
	const q = `
		UPDATE archive_jobs
		SET status = 'done', artifact_path = $2, artifact_size = $3, message = $4, updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`
	res, err := r.db.ExecContext(ctx, q, id, artifactPath, artifactSize, message)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// MarkFailed moves a processing job to failed with the failure message.
func (r *JobPostgres) MarkFailed(ctx context.Context, id, message string) error {
	const q = `
		UPDATE archive_jobs
		SET status = 'failed', message = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`
	res, err := r.db.ExecContext(ctx, q, id, message)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (r *JobPostgres) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// oneRow translates "no row updated" into sql.ErrNoRows so callers notice
// attempts to move a job that is not in the expected prior state.
func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
