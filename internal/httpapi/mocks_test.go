package httpapi

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/forPelevin/clipforge/internal/types"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Projects() []types.Project {
	args := m.Called()
	return args.Get(0).([]types.Project)
}

func (m *MockService) Project(id string) (types.Project, error) {
	args := m.Called(id)
	return args.Get(0).(types.Project), args.Error(1)
}

func (m *MockService) Clip(clipID string) (types.Clip, error) {
	args := m.Called(clipID)
	return args.Get(0).(types.Clip), args.Error(1)
}

func (m *MockService) Manifest(projectID string) (types.Manifest, error) {
	args := m.Called(projectID)
	return args.Get(0).(types.Manifest), args.Error(1)
}

func (m *MockService) AddProject(ctx context.Context, url string) (types.Project, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(types.Project), args.Error(1)
}

func (m *MockService) Analyze(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *MockService) RenderClip(ctx context.Context, clipID string) (types.Clip, error) {
	args := m.Called(ctx, clipID)
	return args.Get(0).(types.Clip), args.Error(1)
}

func (m *MockService) RenderAll(ctx context.Context, projectID string) ([]types.Clip, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]types.Clip), args.Error(1)
}
