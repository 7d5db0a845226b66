package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"instashare/internal/model"
	"instashare/internal/repository"
	"instashare/internal/storage"
)

var (
	ErrIDRequired   = errors.New("id is required")
	ErrNotFound     = errors.New("file not found")
	ErrReaderNil    = errors.New("reader is nil")
	ErrFileNotReady = errors.New("file is not ready for download")
)

// FileListResult is the service-level DTO for paginated files.
type FileListResult struct {
	Items []model.UploadedFile `json:"data"`
	Total int                  `json:"total"`
}

// StatsResult aggregates a user's files for the stats endpoint.
type StatsResult struct {
	TotalFiles   int                      `json:"total_files"`
	TotalSizeMB  float64                  `json:"total_size_mb"`
	ByStatus     map[model.FileStatus]int `json:"files_by_status"`
	PendingFiles []model.UploadedFile     `json:"pending_files"`
}

// FileService defines the use cases for handling a user's uploaded files.
// Every operation is owner-scoped.
type FileService interface {
	// Upload streams the content to object storage, saves metadata to DB, and
	// rolls back storage if the DB save fails. The stored object key is a UUID
	// plus the original extension; displayName falls back to originalFilename.
	Upload(ctx context.Context, userID string, r io.Reader, originalFilename, displayName, contentType string, size int64) (*model.UploadedFile, error)

	// List returns the user's files using limit/offset and a total count.
	List(ctx context.Context, userID string, limit, offset int) (*FileListResult, error)

	// Get returns a single file by its ID.
	Get(ctx context.Context, userID, id string) (*model.UploadedFile, error)

	// Rename updates a file's display name.
	Rename(ctx context.Context, userID, id, displayName string) error

	// Delete removes a file from both storage and repository.
	Delete(ctx context.Context, userID, id string) error

	// OriginalURL returns a presigned download URL for the original upload.
	OriginalURL(ctx context.Context, userID, id string, expiry time.Duration) (string, error)

	// Artifact returns the local path and download filename of the compressed
	// artifact; ErrFileNotReady unless the file status is completed.
	Artifact(ctx context.Context, userID, id string) (path, name string, err error)

	// Stats returns aggregate numbers for the user's files.
	Stats(ctx context.Context, userID string) (*StatsResult, error)
}

// fileService is a concrete implementation of FileService.
type fileService struct {
	store storage.Storage
	repo  repository.FileRepository
}

// NewFileService constructs a new FileService.
func NewFileService(store storage.Storage, repo repository.FileRepository) FileService {
	return &fileService{store: store, repo: repo}
}

func (s *fileService) Upload(ctx context.Context, userID string, r io.Reader, originalFilename, displayName, contentType string, size int64) (*model.UploadedFile, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if displayName == "" {
		displayName = originalFilename
	}

	// Generate object key using UUID + extension
	ext := filepath.Ext(originalFilename)
	genName := uuid.New().String() + ext
	key := filepath.ToSlash(filepath.Join("uploads", genName))

	// Upload to object storage
	objInfo, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	// Save metadata to database
	f := &model.UploadedFile{
		ID:           uuid.New().String(),
		UserID:       userID,
		OriginalName: originalFilename,
		DisplayName:  displayName,
		StoragePath:  objInfo.Key,
		Size:         objInfo.Size,
		ContentType:  objInfo.ContentType,
		Status:       model.FilePending,
		UploadedAt:   time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, f)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// List returns paginated files without exposing repository types.
func (s *fileService) List(ctx context.Context, userID string, limit, offset int) (*FileListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.ListByUser(ctx, userID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &FileListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a file by ID.
func (s *fileService) Get(ctx context.Context, userID, id string) (*model.UploadedFile, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	f, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Rename updates a file's display name.
func (s *fileService) Rename(ctx context.Context, userID, id, displayName string) error {
	if id == "" {
		return ErrIDRequired
	}
	if displayName == "" {
		return errors.New("display name is required")
	}
	if err := s.repo.Rename(ctx, id, userID, displayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Delete removes a file from storage, then deletes its record.
func (s *fileService) Delete(ctx context.Context, userID, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	// Find the file to get its storage path
	f, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	// Delete from storage first; if this fails, keep DB row to avoid orphaned storage reference loss
	if err := s.store.Delete(ctx, f.StoragePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	// Delete DB row (repository ignores missing row errors as per contract)
	return s.repo.Delete(ctx, id, userID)
}

// OriginalURL presigns a download link for the original upload.
func (s *fileService) OriginalURL(ctx context.Context, userID, id string, expiry time.Duration) (string, error) {
	f, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, f.StoragePath, expiry)
}

// Artifact returns the compressed artifact location for a completed file.
func (s *fileService) Artifact(ctx context.Context, userID, id string) (string, string, error) {
	f, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", "", err
	}
	if f.Status != model.FileCompleted || f.CompressedPath == "" {
		return "", "", ErrFileNotReady
	}
	return f.CompressedPath, f.DisplayName + ".zip", nil
}

// Stats maps repository aggregates into the response DTO.
func (s *fileService) Stats(ctx context.Context, userID string) (*StatsResult, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	mb := float64(stats.TotalSize) / (1024 * 1024)
	return &StatsResult{
		TotalFiles:   stats.TotalFiles,
		TotalSizeMB:  float64(int64(mb*100+0.5)) / 100,
		ByStatus:     stats.ByStatus,
		PendingFiles: stats.PendingList,
	}, nil
}
