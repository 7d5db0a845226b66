package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instashare/internal/model"
)

// mapBackend is an in-memory stand-in for the Redis wrapper.
type mapBackend struct {
	data map[string]string
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string]string)}
}

func (m *mapBackend) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("key not found: %s", key)
	}
	return v, nil
}

func (m *mapBackend) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *mapBackend) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "job:status:user-1:abc", statusKey("user-1", "abc"))
}

func TestJobStatusCache_RoundTrip(t *testing.T) {
	sc := &JobStatusCache{cache: newMapBackend()}
	ctx := context.Background()

	job := &model.ArchiveJob{
		ID:           "job-1",
		UserID:       "user-1",
		Status:       model.JobDone,
		ArtifactPath: "artifacts/user-1.zip",
		ArtifactSize: 42,
		Message:      "archived 2 files",
	}
	require.NoError(t, sc.Set(ctx, job))

	got, err := sc.Get(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobDone, got.Status)
	assert.Equal(t, "archived 2 files", got.Message)
	assert.Equal(t, "artifacts/user-1.zip", got.ArtifactPath)

	require.NoError(t, sc.Delete(ctx, "user-1", "job-1"))
	_, err = sc.Get(ctx, "user-1", "job-1")
	assert.Error(t, err)
}

func TestJobStatusCache_ScopedToOwner(t *testing.T) {
	sc := &JobStatusCache{cache: newMapBackend()}
	ctx := context.Background()

	require.NoError(t, sc.Set(ctx, &model.ArchiveJob{
		ID:     "job-1",
		UserID: "user-1",
		Status: model.JobProcessing,
	}))

	// Another owner polling the same job ID must miss.
	_, err := sc.Get(ctx, "user-2", "job-1")
	assert.Error(t, err)

	got, err := sc.Get(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, got.Status)
}

func TestJobStatusCache_Disabled(t *testing.T) {
	sc := NewJobStatusCache(nil)
	ctx := context.Background()

	_, err := sc.Get(ctx, "user-1", "job-id")
	assert.Error(t, err, "disabled cache must always miss")

	assert.NoError(t, sc.Set(ctx, &model.ArchiveJob{ID: "job-id", UserID: "user-1"}))
	assert.NoError(t, sc.Delete(ctx, "user-1", "job-id"))
}
