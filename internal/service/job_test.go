package service

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"instashare/internal/archive"
	"instashare/internal/cache"
	"instashare/internal/config"
	"instashare/internal/model"
	repoMocks "instashare/internal/repository/mocks"
	"instashare/internal/storage"
	storeMocks "instashare/internal/storage/mocks"
)

func newJobService(t *testing.T, files *repoMocks.MockFileRepository, jobs *repoMocks.MockJobRepository, store *storeMocks.MockStorage, artifactDir string) JobService {
	t.Helper()
	svc, err := NewJobService(
		files, jobs, store,
		archive.NewRunner(),
		cache.NewJobStatusCache(nil),
		config.ArchiveConfig{ArtifactDir: artifactDir, PoolSize: 2},
		prometheus.NewRegistry(),
	)
	require.NoError(t, err)
	return svc
}

func stubObject(store *storeMocks.MockStorage, key, content string) {
	store.On("Get", mock.Anything, key).
		Return(io.NopCloser(strings.NewReader(content)), storage.ObjectInfo{Key: key}, nil)
}

func TestJobService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path builds one artifact from all pending files", func(t *testing.T) {
		dir := t.TempDir()
		files := new(repoMocks.MockFileRepository)
		jobs := new(repoMocks.MockJobRepository)
		store := new(storeMocks.MockStorage)

		pending := []model.UploadedFile{
			{ID: "f1", UserID: "user-1", OriginalName: "a.txt", StoragePath: "uploads/a"},
			{ID: "f2", UserID: "user-1", OriginalName: "b.txt", StoragePath: "uploads/b"},
		}
		stubObject(store, "uploads/a", "alpha")
		stubObject(store, "uploads/b", "beta")

		jobs.On("Create", ctx, mock.Anything).
			Return(func(ctx context.Context, j *model.ArchiveJob) *model.ArchiveJob { return j }, nil)
		jobs.On("MarkProcessing", ctx, mock.Anything).Return(nil)
		files.On("ListPending", ctx, "user-1").Return(pending, nil)

		target := filepath.Join(dir, "user-1.zip")
		jobs.On("MarkDone", ctx, mock.Anything, target, mock.Anything, "archived 2 files").Return(nil)
		files.On("MarkCompleted", ctx, "f1", target, mock.Anything).Return(nil)
		files.On("MarkCompleted", ctx, "f2", target, mock.Anything).Return(nil)

		svc := newJobService(t, files, jobs, store, dir)

		job, err := svc.Run(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, model.JobDone, job.Status)
		assert.Equal(t, target, job.ArtifactPath)
		assert.Equal(t, "archived 2 files", job.Message)
		assert.Greater(t, job.ArtifactSize, int64(0))

		// Verify the ZIP on disk contains both entries in upload order.
		zr, err := zip.OpenReader(target)
		require.NoError(t, err)
		defer zr.Close()
		require.Len(t, zr.File, 2)
		assert.Equal(t, "a.txt", zr.File[0].Name)
		assert.Equal(t, "b.txt", zr.File[1].Name)

		rc, err := zr.File[0].Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, "alpha", string(body))

		jobs.AssertExpectations(t)
		files.AssertExpectations(t)
	})

	t.Run("no pending files fails the job", func(t *testing.T) {
		dir := t.TempDir()
		files := new(repoMocks.MockFileRepository)
		jobs := new(repoMocks.MockJobRepository)
		store := new(storeMocks.MockStorage)

		jobs.On("Create", ctx, mock.Anything).
			Return(func(ctx context.Context, j *model.ArchiveJob) *model.ArchiveJob { return j }, nil)
		jobs.On("MarkProcessing", ctx, mock.Anything).Return(nil)
		files.On("ListPending", ctx, "user-1").Return([]model.UploadedFile{}, nil)
		jobs.On("MarkFailed", ctx, mock.Anything, "no pending files to archive").Return(nil)

		svc := newJobService(t, files, jobs, store, dir)

		job, err := svc.Run(ctx, "user-1")

		assert.ErrorIs(t, err, archive.ErrNoInputFiles)
		require.NotNil(t, job)
		assert.Equal(t, model.JobFailed, job.Status)
		assert.Equal(t, "no pending files to archive", job.Message)
		assert.NoFileExists(t, filepath.Join(dir, "user-1.zip"))
		jobs.AssertExpectations(t)
	})

	t.Run("unreadable source fails the job without an artifact", func(t *testing.T) {
		dir := t.TempDir()
		files := new(repoMocks.MockFileRepository)
		jobs := new(repoMocks.MockJobRepository)
		store := new(storeMocks.MockStorage)

		pending := []model.UploadedFile{
			{ID: "f1", UserID: "user-1", OriginalName: "a.txt", StoragePath: "uploads/a"},
		}
		store.On("Get", mock.Anything, "uploads/a").
			Return(nil, storage.ObjectInfo{}, errors.New("object gone"))

		jobs.On("Create", ctx, mock.Anything).
			Return(func(ctx context.Context, j *model.ArchiveJob) *model.ArchiveJob { return j }, nil)
		jobs.On("MarkProcessing", ctx, mock.Anything).Return(nil)
		files.On("ListPending", ctx, "user-1").Return(pending, nil)
		jobs.On("MarkFailed", ctx, mock.Anything, "a source file could not be read; archive aborted").Return(nil)

		svc := newJobService(t, files, jobs, store, dir)

		job, err := svc.Run(ctx, "user-1")

		assert.ErrorIs(t, err, archive.ErrUnreadableSource)
		assert.Equal(t, model.JobFailed, job.Status)
		assert.NoFileExists(t, filepath.Join(dir, "user-1.zip"))
		assert.NoFileExists(t, filepath.Join(dir, "user-1.zip.tmp"))
		files.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("file bookkeeping failure fails the job", func(t *testing.T) {
		dir := t.TempDir()
		files := new(repoMocks.MockFileRepository)
		jobs := new(repoMocks.MockJobRepository)
		store := new(storeMocks.MockStorage)

		pending := []model.UploadedFile{
			{ID: "f1", UserID: "user-1", OriginalName: "a.txt", StoragePath: "uploads/a"},
		}
		stubObject(store, "uploads/a", "alpha")

		jobs.On("Create", ctx, mock.Anything).
			Return(func(ctx context.Context, j *model.ArchiveJob) *model.ArchiveJob { return j }, nil)
		jobs.On("MarkProcessing", ctx, mock.Anything).Return(nil)
		files.On("ListPending", ctx, "user-1").Return(pending, nil)
		files.On("MarkCompleted", ctx, "f1", mock.Anything, mock.Anything).
			Return(errors.New("db down"))
		jobs.On("MarkFailed", ctx, mock.Anything, "could not record archived files").Return(nil)

		svc := newJobService(t, files, jobs, store, dir)

		job, err := svc.Run(ctx, "user-1")

		assert.Error(t, err)
		require.NotNil(t, job)
		assert.Equal(t, model.JobFailed, job.Status)
		assert.Equal(t, "could not record archived files", job.Message)
		jobs.AssertNotCalled(t, "MarkDone", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		jobs.AssertExpectations(t)
	})

	t.Run("duplicate names inside the archive are suffixed", func(t *testing.T) {
		dir := t.TempDir()
		files := new(repoMocks.MockFileRepository)
		jobs := new(repoMocks.MockJobRepository)
		store := new(storeMocks.MockStorage)

		pending := []model.UploadedFile{
			{ID: "f1", UserID: "user-1", OriginalName: "a.txt", StoragePath: "uploads/a"},
			{ID: "f2", UserID: "user-1", OriginalName: "a.txt", StoragePath: "uploads/b"},
		}
		stubObject(store, "uploads/a", "first")
		stubObject(store, "uploads/b", "second")

		jobs.On("Create", ctx, mock.Anything).
			Return(func(ctx context.Context, j *model.ArchiveJob) *model.ArchiveJob { return j }, nil)
		jobs.On("MarkProcessing", ctx, mock.Anything).Return(nil)
		files.On("ListPending", ctx, "user-1").Return(pending, nil)
		jobs.On("MarkDone", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		files.On("MarkCompleted", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		svc := newJobService(t, files, jobs, store, dir)

		_, err := svc.Run(ctx, "user-1")
		require.NoError(t, err)

		zr, err := zip.OpenReader(filepath.Join(dir, "user-1.zip"))
		require.NoError(t, err)
		defer zr.Close()
		require.Len(t, zr.File, 2)
		assert.Equal(t, "a.txt", zr.File[0].Name)
		assert.Equal(t, "a (2).txt", zr.File[1].Name)
	})
}

func TestJobService_ProcessPending(t *testing.T) {
	ctx := context.Background()

	t.Run("mixed outcomes", func(t *testing.T) {
		dir := t.TempDir()
		files := new(repoMocks.MockFileRepository)
		jobs := new(repoMocks.MockJobRepository)
		store := new(storeMocks.MockStorage)

		pending := []model.UploadedFile{
			{ID: "f1", UserID: "user-1", OriginalName: "good.txt", DisplayName: "good.txt", StoragePath: "uploads/good"},
			{ID: "f2", UserID: "user-1", OriginalName: "bad.txt", DisplayName: "bad.txt", StoragePath: "uploads/bad"},
		}
		stubObject(store, "uploads/good", "payload")
		store.On("Get", mock.Anything, "uploads/bad").
			Return(nil, storage.ObjectInfo{}, errors.New("object gone"))

		files.On("ListPending", ctx, "user-1").Return(pending, nil)
		files.On("SetStatus", mock.Anything, "f1", model.FileProcessing).Return(nil)
		files.On("SetStatus", mock.Anything, "f2", model.FileProcessing).Return(nil)
		files.On("SetStatus", mock.Anything, "f2", model.FileFailed).Return(nil)
		files.On("MarkCompleted", mock.Anything, "f1", mock.Anything, mock.Anything).Return(nil)

		svc := newJobService(t, files, jobs, store, dir)

		res, err := svc.ProcessPending(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, 1, res.Processed)
		assert.Equal(t, 1, res.Failed)
		assert.Len(t, res.Details, 2)

		// Each file gets its own single-entry ZIP named after the original.
		target := filepath.Join(dir, "user-1", "compressed_good.txt.zip")
		zr, err := zip.OpenReader(target)
		require.NoError(t, err)
		defer zr.Close()
		require.Len(t, zr.File, 1)
		assert.Equal(t, "good.txt", zr.File[0].Name)

		entries, err := os.ReadDir(filepath.Join(dir, "user-1"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		files.AssertExpectations(t)
	})

	t.Run("same-named files build distinct artifacts even when overlapping", func(t *testing.T) {
		dir := t.TempDir()
		files := new(repoMocks.MockFileRepository)
		jobs := new(repoMocks.MockJobRepository)
		store := new(storeMocks.MockStorage)

		pending := []model.UploadedFile{
			{ID: "f1", UserID: "user-1", OriginalName: "a.txt", DisplayName: "a.txt", StoragePath: "uploads/a"},
			{ID: "f2", UserID: "user-1", OriginalName: "a.txt", DisplayName: "a.txt", StoragePath: "uploads/b"},
		}

		// Barrier: both builds must be mid-flight at once before either may
		// finish, so the two same-named files demonstrably overlap.
		var inFlight sync.WaitGroup
		inFlight.Add(2)
		barrier := func(mock.Arguments) {
			inFlight.Done()
			inFlight.Wait()
		}
		store.On("Get", mock.Anything, "uploads/a").Run(barrier).
			Return(io.NopCloser(strings.NewReader("first")), storage.ObjectInfo{}, nil)
		store.On("Get", mock.Anything, "uploads/b").Run(barrier).
			Return(io.NopCloser(strings.NewReader("second")), storage.ObjectInfo{}, nil)

		files.On("ListPending", ctx, "user-1").Return(pending, nil)
		files.On("SetStatus", mock.Anything, mock.Anything, model.FileProcessing).Return(nil)
		files.On("MarkCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		svc := newJobService(t, files, jobs, store, dir)

		res, err := svc.ProcessPending(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, 2, res.Processed)
		assert.Equal(t, 0, res.Failed)

		assert.FileExists(t, filepath.Join(dir, "user-1", "compressed_a.txt.zip"))
		assert.FileExists(t, filepath.Join(dir, "user-1", "compressed_a (2).txt.zip"))
	})

	t.Run("path segments in names cannot escape the artifact dir", func(t *testing.T) {
		dir := t.TempDir()
		files := new(repoMocks.MockFileRepository)
		jobs := new(repoMocks.MockJobRepository)
		store := new(storeMocks.MockStorage)

		pending := []model.UploadedFile{
			{ID: "f1", UserID: "user-1", OriginalName: "foo/../../../escape", DisplayName: "escape", StoragePath: "uploads/esc"},
		}
		stubObject(store, "uploads/esc", "payload")

		files.On("ListPending", ctx, "user-1").Return(pending, nil)
		files.On("SetStatus", mock.Anything, "f1", model.FileProcessing).Return(nil)
		files.On("MarkCompleted", mock.Anything, "f1", mock.Anything, mock.Anything).Return(nil)

		svc := newJobService(t, files, jobs, store, dir)

		res, err := svc.ProcessPending(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, 1, res.Processed)

		// The artifact lands inside the owner's directory under the base name,
		// and the ZIP entry carries the base name too.
		target := filepath.Join(dir, "user-1", "compressed_escape.zip")
		require.FileExists(t, target)
		assert.NoFileExists(t, filepath.Join(dir, "..", "escape.zip"))
		assert.NoFileExists(t, filepath.Join(dir, "..", "..", "escape.zip"))

		zr, err := zip.OpenReader(target)
		require.NoError(t, err)
		defer zr.Close()
		require.Len(t, zr.File, 1)
		assert.Equal(t, "escape", zr.File[0].Name)
	})

	t.Run("nothing pending", func(t *testing.T) {
		files := new(repoMocks.MockFileRepository)
		files.On("ListPending", ctx, "user-1").Return([]model.UploadedFile{}, nil)
		svc := newJobService(t, files, new(repoMocks.MockJobRepository), new(storeMocks.MockStorage), t.TempDir())

		res, err := svc.ProcessPending(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.Empty(t, res.Details)
	})
}

func TestJobService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("cache disabled falls through to repository", func(t *testing.T) {
		jobs := new(repoMocks.MockJobRepository)
		jobs.On("FindByID", ctx, "job-1", "user-1").
			Return(&model.ArchiveJob{ID: "job-1", UserID: "user-1", Status: model.JobDone}, nil)
		svc := newJobService(t, new(repoMocks.MockFileRepository), jobs, new(storeMocks.MockStorage), t.TempDir())

		job, err := svc.Get(ctx, "user-1", "job-1")

		require.NoError(t, err)
		assert.Equal(t, model.JobDone, job.Status)
	})

	t.Run("unknown job", func(t *testing.T) {
		jobs := new(repoMocks.MockJobRepository)
		jobs.On("FindByID", ctx, "missing", "user-1").Return(nil, sql.ErrNoRows)
		svc := newJobService(t, new(repoMocks.MockFileRepository), jobs, new(storeMocks.MockStorage), t.TempDir())

		_, err := svc.Get(ctx, "user-1", "missing")

		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{archive.ErrNoInputFiles, "no pending files to archive"},
		{archive.ErrUnreadableSource, "a source file could not be read; archive aborted"},
		{archive.ErrWriteFailure, "could not write archive artifact"},
		{archive.ErrAlreadyRunning, "an archive job is already running for this account"},
		{errors.New("some other failure"), "some other failure"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureMessage(tt.err))
	}
}
