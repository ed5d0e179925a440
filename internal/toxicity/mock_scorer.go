package toxicity

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockScorer is a mock implementation of Scorer using testify/mock.
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, text string) (Scores, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(Scores), args.Error(1)
}
