package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"instashare/internal/archive"
	"instashare/internal/cache"
	"instashare/internal/config"
	"instashare/internal/model"
	"instashare/internal/repository"
	"instashare/internal/storage"
	"instashare/internal/worker"
)

var ErrJobNotFound = errors.New("job not found")

// BatchDetail is the per-file outcome of a batch processing run.
type BatchDetail struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// BatchResult summarizes a batch processing run.
type BatchResult struct {
	Total     int           `json:"total_files"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Details   []BatchDetail `json:"details"`
}

// JobService runs archive jobs for a user's pending files and answers status
// polls. Run builds one artifact from all pending files; ProcessPending
// compresses each pending file into its own single-entry ZIP.
type JobService interface {
	// Run creates a job, archives the caller's pending files into one ZIP,
	// and returns the job in its terminal state. The returned error (if any)
	// is one of the archive failure kinds and matches the job's message.
	Run(ctx context.Context, userID string) (*model.ArchiveJob, error)

	// ProcessPending compresses every pending file individually through a
	// bounded worker pool and reports per-file outcomes.
	ProcessPending(ctx context.Context, userID string) (*BatchResult, error)

	// Get returns a job's current state, served from the status cache when
	// possible.
	Get(ctx context.Context, userID, jobID string) (*model.ArchiveJob, error)
}

type jobService struct {
	files    repository.FileRepository
	jobs     repository.JobRepository
	store    storage.Storage
	runner   *archive.Runner
	statuses *cache.JobStatusCache

	artifactDir string
	poolSize    int

	jobsTotal *prometheus.CounterVec
}

// NewJobService constructs a JobService. The jobs counter is registered on
// reg; pass prometheus.DefaultRegisterer in production wiring.
func NewJobService(
	files repository.FileRepository,
	jobs repository.JobRepository,
	store storage.Storage,
	runner *archive.Runner,
	statuses *cache.JobStatusCache,
	cfg config.ArchiveConfig,
	reg prometheus.Registerer,
) (JobService, error) {
	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_jobs_total",
			Help: "Total number of archive jobs by terminal status.",
		},
		[]string{"status"},
	)
	if err := reg.Register(jobsTotal); err != nil {
		return nil, err
	}

	return &jobService{
		files:       files,
		jobs:        jobs,
		store:       store,
		runner:      runner,
		statuses:    statuses,
		artifactDir: cfg.ArtifactDir,
		poolSize:    cfg.PoolSize,
		jobsTotal:   jobsTotal,
	}, nil
}

func (s *jobService) Run(ctx context.Context, userID string) (*model.ArchiveJob, error) {
	now := time.Now().UTC()
	job, err := s.jobs.Create(ctx, &model.ArchiveJob{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    model.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.jobs.MarkProcessing(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	job.Status = model.JobProcessing
	s.statuses.Set(ctx, job)

	pending, err := s.files.ListPending(ctx, userID)
	if err != nil {
		return s.fail(ctx, job, fmt.Sprintf("list pending files: %v", err), err)
	}

	entries := s.entriesFor(pending)
	target := filepath.Join(s.artifactDir, userID+".zip")

	res, runErr := s.runner.Run(ctx, userID, entries, target)
	if runErr != nil {
		return s.fail(ctx, job, FailureMessage(runErr), runErr)
	}

	// Record file completion before the job's terminal state so a bookkeeping
	// failure surfaces as a failed job, not a done job with pending files.
	for _, f := range pending {
		if err := s.files.MarkCompleted(ctx, f.ID, res.Path, time.Now().UTC()); err != nil {
			return s.fail(ctx, job, "could not record archived files", fmt.Errorf("mark file %s completed: %w", f.ID, err))
		}
	}

	message := fmt.Sprintf("archived %d files", res.Entries)
	if err := s.jobs.MarkDone(ctx, job.ID, res.Path, res.Size, message); err != nil {
		return job, fmt.Errorf("mark done: %w", err)
	}

	job.Status = model.JobDone
	job.ArtifactPath = res.Path
	job.ArtifactSize = res.Size
	job.Message = message
	job.UpdatedAt = time.Now().UTC()
	s.statuses.Set(ctx, job)
	s.jobsTotal.WithLabelValues(string(model.JobDone)).Inc()
	return job, nil
}

// fail records the terminal failed state and hands the original error back to
// the caller so the trigger endpoint can shape its response.
func (s *jobService) fail(ctx context.Context, job *model.ArchiveJob, message string, cause error) (*model.ArchiveJob, error) {
	if err := s.jobs.MarkFailed(ctx, job.ID, message); err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	job.Status = model.JobFailed
	job.Message = message
	job.UpdatedAt = time.Now().UTC()
	s.statuses.Set(ctx, job)
	s.jobsTotal.WithLabelValues(string(model.JobFailed)).Inc()
	return job, cause
}

func (s *jobService) ProcessPending(ctx context.Context, userID string) (*BatchResult, error) {
	pending, err := s.files.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending files: %w", err)
	}

	result := &BatchResult{Total: len(pending), Details: make([]BatchDetail, 0, len(pending))}
	var mu sync.Mutex

	pool := worker.NewPool(s.poolSize)
	seen := make(map[string]int, len(pending))
	for _, f := range pending {
		f := f
		target := s.batchTarget(userID, f.OriginalName, seen)
		pool.Submit(ctx, func(ctx context.Context) {
			detail := s.processOne(ctx, f, target)
			mu.Lock()
			if detail.Error == "" {
				result.Processed++
			} else {
				result.Failed++
			}
			result.Details = append(result.Details, detail)
			mu.Unlock()
		})
	}
	pool.Wait()

	return result, nil
}

// batchTarget derives the per-file artifact path. The client-supplied name is
// reduced to its base so path segments never escape the artifact directory,
// then deduplicated across the batch so no two builds share a target.
func (s *jobService) batchTarget(userID, originalName string, seen map[string]int) string {
	base := safeName(originalName)
	name := base
	if n := seen[base]; n > 0 {
		ext := filepath.Ext(base)
		name = fmt.Sprintf("%s (%d)%s", base[:len(base)-len(ext)], n+1, ext)
	}
	seen[base]++
	return filepath.Join(s.artifactDir, userID, "compressed_"+name+".zip")
}

// processOne compresses a single file into its own ZIP, mirroring the
// per-file lifecycle pending -> processing -> completed|failed.
func (s *jobService) processOne(ctx context.Context, f model.UploadedFile, target string) BatchDetail {
	detail := BatchDetail{FileID: f.ID, FileName: f.DisplayName}

	if err := s.files.SetStatus(ctx, f.ID, model.FileProcessing); err != nil {
		detail.Status = "error"
		detail.Error = err.Error()
		return detail
	}

	entries := s.entriesFor([]model.UploadedFile{f})

	// The target path is the guard key: distinct targets run in parallel,
	// same target is mutually exclusive.
	res, err := s.runner.Run(ctx, target, entries, target)
	if err != nil {
		s.files.SetStatus(ctx, f.ID, model.FileFailed)
		detail.Status = "error"
		detail.Error = FailureMessage(err)
		return detail
	}

	if err := s.files.MarkCompleted(ctx, f.ID, res.Path, time.Now().UTC()); err != nil {
		detail.Status = "error"
		detail.Error = err.Error()
		return detail
	}
	detail.Status = "success"
	return detail
}

func (s *jobService) Get(ctx context.Context, userID, jobID string) (*model.ArchiveJob, error) {
	if job, err := s.statuses.Get(ctx, userID, jobID); err == nil {
		return job, nil
	}

	job, err := s.jobs.FindByID(ctx, jobID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	s.statuses.Set(ctx, job)
	return job, nil
}

// entriesFor maps file rows to archive entries. Entry names are reduced to
// their base so extracted archives cannot escape their directory, then
// deduplicated so two uploads named a.txt do not collide inside the ZIP.
func (s *jobService) entriesFor(files []model.UploadedFile) []archive.Entry {
	seen := make(map[string]int, len(files))
	entries := make([]archive.Entry, 0, len(files))
	for _, f := range files {
		base := safeName(f.OriginalName)
		name := base
		if n := seen[base]; n > 0 {
			ext := filepath.Ext(base)
			name = fmt.Sprintf("%s (%d)%s", base[:len(base)-len(ext)], n+1, ext)
		}
		seen[base]++

		key := f.StoragePath
		entries = append(entries, archive.Entry{
			Name: name,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				rc, _, err := s.store.Get(ctx, key)
				return rc, err
			},
		})
	}
	return entries
}

// safeName strips any path segments from a client-supplied filename. Both
// separator styles count: browsers on Windows send full backslashed paths.
func safeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == ".." || base == "/" || base == "" {
		return "file"
	}
	return base
}

// FailureMessage translates archive failure kinds into the user-facing text
// carried in the job's message field and the trigger response.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, archive.ErrNoInputFiles):
		return "no pending files to archive"
	case errors.Is(err, archive.ErrUnreadableSource):
		return "a source file could not be read; archive aborted"
	case errors.Is(err, archive.ErrWriteFailure):
		return "could not write archive artifact"
	case errors.Is(err, archive.ErrAlreadyRunning):
		return "an archive job is already running for this account"
	default:
		return err.Error()
	}
}
