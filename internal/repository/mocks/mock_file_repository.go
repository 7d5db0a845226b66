package mocks

import (
	"context"
	"time"

	"instashare/internal/model"
	"instashare/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) Create(ctx context.Context, f *model.UploadedFile) (*model.UploadedFile, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadedFile), args.Error(1)
}

func (m *MockFileRepository) FindByID(ctx context.Context, id, userID string) (*model.UploadedFile, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadedFile), args.Error(1)
}

func (m *MockFileRepository) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.UploadedFile], error) {
	args := m.Called(ctx, userID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.UploadedFile]), args.Error(1)
}

func (m *MockFileRepository) ListPending(ctx context.Context, userID string) ([]model.UploadedFile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UploadedFile), args.Error(1)
}

func (m *MockFileRepository) Rename(ctx context.Context, id, userID, displayName string) error {
	args := m.Called(ctx, id, userID, displayName)
	return args.Error(0)
}

func (m *MockFileRepository) SetStatus(ctx context.Context, id string, status model.FileStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockFileRepository) MarkCompleted(ctx context.Context, id, compressedPath string, processedAt time.Time) error {
	args := m.Called(ctx, id, compressedPath, processedAt)
	return args.Error(0)
}

func (m *MockFileRepository) Delete(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockFileRepository) Stats(ctx context.Context, userID string) (*repository.FileStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.FileStats), args.Error(1)
}
