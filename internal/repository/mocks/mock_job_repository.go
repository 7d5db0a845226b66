package mocks

import (
	"context"

	"instashare/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, j *model.ArchiveJob) (*model.ArchiveJob, error) {
	args := m.Called(ctx, j)
	if f, ok := args.Get(0).(func(context.Context, *model.ArchiveJob) *model.ArchiveJob); ok {
		return f(ctx, j), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArchiveJob), args.Error(1)
}

func (m *MockJobRepository) FindByID(ctx context.Context, id, userID string) (*model.ArchiveJob, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArchiveJob), args.Error(1)
}

func (m *MockJobRepository) MarkProcessing(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobRepository) MarkDone(ctx context.Context, id, artifactPath string, artifactSize int64, message string) error {
	args := m.Called(ctx, id, artifactPath, artifactSize, message)
	return args.Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}
