package postgres

import (
	"context"
	"database/sql"
	"time"

	"instashare/internal/model"
	"instashare/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

const fileColumns = `id, user_id, original_name, display_name, storage_path, size, content_type, status, compressed_path, uploaded_at, processed_at`

func scanFile(row interface{ Scan(...any) error }) (*model.UploadedFile, error) {
	var f model.UploadedFile
	var compressed sql.NullString
	var processed sql.NullTime
	if err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.OriginalName,
		&f.DisplayName,
		&f.StoragePath,
		&f.Size,
		&f.ContentType,
		&f.Status,
		&compressed,
		&f.UploadedAt,
		&processed,
	); err != nil {
		return nil, err
	}
	if compressed.Valid {
		f.CompressedPath = compressed.String
	}
	if processed.Valid {
		t := processed.Time
		f.ProcessedAt = &t
	}
	return &f, nil
}

// Create inserts a new file row and returns the stored record.
func (r *FilePostgres) Create(ctx context.Context, f *model.UploadedFile) (*model.UploadedFile, error) {
	const q = `
		INSERT INTO files (id, user_id, original_name, display_name, storage_path, size, content_type, status, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + fileColumns
	row := r.db.QueryRowContext(ctx, q,
		f.ID,
		f.UserID,
		f.OriginalName,
		f.DisplayName,
		f.StoragePath,
		f.Size,
		f.ContentType,
		f.Status,
		f.UploadedAt,
	)
	return scanFile(row)
}

// FindByID fetches a single file scoped to its owner.
func (r *FilePostgres) FindByID(ctx context.Context, id, userID string) (*model.UploadedFile, error) {
	const q = `
		SELECT ` + fileColumns + `
		FROM files
		WHERE id = $1 AND user_id = $2
	`
	return scanFile(r.db.QueryRowContext(ctx, q, id, userID))
}

// ListByUser returns the user's files using LIMIT/OFFSET pagination and a total count.
func (r *FilePostgres) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.UploadedFile], error) {
	const qCount = `SELECT COUNT(*) FROM files WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, userID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, userID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.UploadedFile, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.UploadedFile]{Items: items, Total: total}, nil
}

// ListPending returns pending files oldest first so archive entries have a
// stable order across runs.
func (r *FilePostgres) ListPending(ctx context.Context, userID string) ([]model.UploadedFile, error) {
	const q = `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY uploaded_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.UploadedFile, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	return items, rows.Err()
}

// Rename updates the display name of the user's file.
func (r *FilePostgres) Rename(ctx context.Context, id, userID, displayName string) error {
	const q = `UPDATE files SET display_name = $3 WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q, id, userID, displayName)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetStatus updates the processing status of a file.
func (r *FilePostgres) SetStatus(ctx context.Context, id string, status model.FileStatus) error {
	const q = `UPDATE files SET status = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, status)
	return err
}

// MarkCompleted records a successful compression.
func (r *FilePostgres) MarkCompleted(ctx context.Context, id, compressedPath string, processedAt time.Time) error {
	const q = `
		UPDATE files
		SET status = 'completed', compressed_path = $2, processed_at = $3
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, q, id, compressedPath, processedAt)
	return err
}

// Delete removes a file row. It does not return an error if the row does not exist.
func (r *FilePostgres) Delete(ctx context.Context, id, userID string) error {
	const q = `DELETE FROM files WHERE id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, q, id, userID)
	return err
}

// Stats returns aggregate numbers for the user's files.
func (r *FilePostgres) Stats(ctx context.Context, userID string) (*repository.FileStats, error) {
	const qAgg = `
		SELECT status, COUNT(*), COALESCE(SUM(size), 0)
		FROM files
		WHERE user_id = $1
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, qAgg, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &repository.FileStats{ByStatus: make(map[model.FileStatus]int)}
	for rows.Next() {
		var status model.FileStatus
		var count int
		var size int64
		if err := rows.Scan(&status, &count, &size); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.TotalFiles += count
		stats.TotalSize += size
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pending, err := r.ListPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.PendingList = pending
	return stats, nil
}
