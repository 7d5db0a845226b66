package repository

import (
	"context"

	"instashare/internal/model"
)

// JobRepository defines data access for archive jobs. Status updates follow
// the monotonic state machine pending -> processing -> done|failed; the
// implementation guards transitions in SQL so a terminal row is never moved.
type JobRepository interface {
	// Create inserts a new pending job and returns the stored row.
	Create(ctx context.Context, j *model.ArchiveJob) (*model.ArchiveJob, error)

	// FindByID returns the job with the given id belonging to userID.
	FindByID(ctx context.Context, id, userID string) (*model.ArchiveJob, error)

	// MarkProcessing moves a pending job to processing.
	MarkProcessing(ctx context.Context, id string) error

	// MarkDone moves a processing job to done with its artifact and message.
	MarkDone(ctx context.Context, id, artifactPath string, artifactSize int64, message string) error

	// MarkFailed moves a processing job to failed with the failure message.
	MarkFailed(ctx context.Context, id, message string) error
}
