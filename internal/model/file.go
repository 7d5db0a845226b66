package model

import "time"

// FileStatus tracks a file through the compression workflow.
type FileStatus string

const (
	FilePending    FileStatus = "pending"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileFailed     FileStatus = "failed"
)

// UploadedFile represents a file uploaded by a user.
// The original bytes live in object storage under StoragePath; once a file
// has been compressed, CompressedPath points at the ZIP artifact on disk.
// This is a pure domain model with no database-specific dependencies or tags.
type UploadedFile struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OriginalName   string     `json:"original_name"`
	DisplayName    string     `json:"display_name"`
	StoragePath    string     `json:"storage_path"`
	Size           int64      `json:"size"`
	ContentType    string     `json:"content_type"`
	Status         FileStatus `json:"status"`
	CompressedPath string     `json:"compressed_path,omitempty"`
	UploadedAt     time.Time  `json:"uploaded_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

// SizeMB returns the file size in megabytes, rounded to two decimals.
func (f *UploadedFile) SizeMB() float64 {
	if f.Size == 0 {
		return 0
	}
	mb := float64(f.Size) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}
