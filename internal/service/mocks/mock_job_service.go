package mocks

import (
	"context"

	"instashare/internal/model"
	"instashare/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) Run(ctx context.Context, userID string) (*model.ArchiveJob, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArchiveJob), args.Error(1)
}

func (m *MockJobService) ProcessPending(ctx context.Context, userID string) (*service.BatchResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func (m *MockJobService) Get(ctx context.Context, userID, jobID string) (*model.ArchiveJob, error) {
	args := m.Called(ctx, userID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArchiveJob), args.Error(1)
}
