package model

import "time"

// JobStatus is the state of an archive job. Transitions are monotonic:
// pending -> processing -> done|failed. A terminal job is never reused; a
// re-run creates a new job row.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// ArchiveJob is one run of the archive builder for a user's pending files.
// ArtifactPath and ArtifactSize are set only on done; Message carries the
// confirmation text on done and the failure text on failed.
type ArchiveJob struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Status       JobStatus `json:"status"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	ArtifactSize int64     `json:"artifact_size,omitempty"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
