package repository

import (
	"context"
	"time"

	"instashare/internal/model"
)

// FileStats aggregates a user's files for the stats endpoint.
type FileStats struct {
	TotalFiles  int
	TotalSize   int64
	ByStatus    map[model.FileStatus]int
	PendingList []model.UploadedFile
}

// FileRepository defines data access for uploaded files. All lookups are
// owner-scoped: a user can never reach another user's rows.
type FileRepository interface {
	// Create inserts a new file record and returns the stored row.
	Create(ctx context.Context, f *model.UploadedFile) (*model.UploadedFile, error)

	// FindByID returns the file with the given id belonging to userID.
	FindByID(ctx context.Context, id, userID string) (*model.UploadedFile, error)

	// ListByUser returns the user's files newest first, with a total count.
	ListByUser(ctx context.Context, userID string, pq PageQuery) (*PageResult[model.UploadedFile], error)

	// ListPending returns the user's pending files ordered by upload time
	// ascending. The stable order feeds straight into the archive builder.
	ListPending(ctx context.Context, userID string) ([]model.UploadedFile, error)

	// Rename updates the display name of the user's file.
	Rename(ctx context.Context, id, userID, displayName string) error

	// SetStatus updates the processing status of a file.
	SetStatus(ctx context.Context, id string, status model.FileStatus) error

	// MarkCompleted records a successful compression: status completed,
	// artifact path, and processing timestamp.
	MarkCompleted(ctx context.Context, id, compressedPath string, processedAt time.Time) error

	// Delete removes a file row. It returns nil if the row did not exist.
	Delete(ctx context.Context, id, userID string) error

	// Stats returns aggregate numbers for the user's files.
	Stats(ctx context.Context, userID string) (*FileStats, error)
}
