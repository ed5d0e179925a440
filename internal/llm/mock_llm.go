package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a mock implementation of Backend using testify/mock.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockSummarizer stands in for SummaryClient in orchestrator tests.
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Send(ctx context.Context, prompt string) string {
	args := m.Called(ctx, prompt)
	return args.String(0)
}
