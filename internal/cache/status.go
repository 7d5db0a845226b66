package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"instashare/internal/database"
	"instashare/internal/model"
)

const (
	statusKeyPrefix = "job:status:"
	statusTTL       = 10 * time.Minute
)

// backend is the slice of database.Cache the status cache needs.
type backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// JobStatusCache fronts the archive_jobs table for status polling. Entries
// are keyed by owner and job, so a poll can never surface another owner's
// job, and carry the serialized job so status, message, and artifact fields
// survive a cache hit. A nil backing cache disables it: Get always misses and
// Set/Delete are no-ops, so callers never need to branch on whether Redis is
// configured.
type JobStatusCache struct {
	cache backend
}

// NewJobStatusCache wraps the given cache; c may be nil.
func NewJobStatusCache(c *database.Cache) *JobStatusCache {
	if c == nil {
		return &JobStatusCache{}
	}
	return &JobStatusCache{cache: c}
}

// Get returns the cached job for the given owner, or an error on miss.
func (sc *JobStatusCache) Get(ctx context.Context, userID, jobID string) (*model.ArchiveJob, error) {
	if sc.cache == nil {
		return nil, fmt.Errorf("status cache disabled")
	}
	data, err := sc.cache.Get(ctx, statusKey(userID, jobID))
	if err != nil {
		return nil, err
	}
	var job model.ArchiveJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decode cached job: %w", err)
	}
	return &job, nil
}

// Set stores the job with a short TTL, keyed by its owner.
func (sc *JobStatusCache) Set(ctx context.Context, job *model.ArchiveJob) error {
	if sc.cache == nil {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return sc.cache.Set(ctx, statusKey(job.UserID, job.ID), string(data), statusTTL)
}

// Delete evicts the cached entry for a job.
func (sc *JobStatusCache) Delete(ctx context.Context, userID, jobID string) error {
	if sc.cache == nil {
		return nil
	}
	return sc.cache.Del(ctx, statusKey(userID, jobID))
}

func statusKey(userID, jobID string) string {
	return statusKeyPrefix + userID + ":" + jobID
}
