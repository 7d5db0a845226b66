package mocks

import (
	"context"
	"io"
	"time"

	"instashare/internal/model"
	"instashare/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) Upload(ctx context.Context, userID string, r io.Reader, originalFilename, displayName, contentType string, size int64) (*model.UploadedFile, error) {
	args := m.Called(ctx, userID, r, originalFilename, displayName, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadedFile), args.Error(1)
}

func (m *MockFileService) List(ctx context.Context, userID string, limit, offset int) (*service.FileListResult, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileListResult), args.Error(1)
}

func (m *MockFileService) Get(ctx context.Context, userID, id string) (*model.UploadedFile, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadedFile), args.Error(1)
}

func (m *MockFileService) Rename(ctx context.Context, userID, id, displayName string) error {
	args := m.Called(ctx, userID, id, displayName)
	return args.Error(0)
}

func (m *MockFileService) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockFileService) OriginalURL(ctx context.Context, userID, id string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, userID, id, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockFileService) Artifact(ctx context.Context, userID, id string) (string, string, error) {
	args := m.Called(ctx, userID, id)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockFileService) Stats(ctx context.Context, userID string) (*service.StatsResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StatsResult), args.Error(1)
}
