package embeddings

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockEmbedder is a mock implementation of Embedder using testify/mock.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Vector), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Vector), args.Error(1)
}

// StaticEmbedder returns fixed vectors per text; unknown texts get the zero-length vector.
// It is deterministic and safe for concurrent use, which testify mocks with ordered
// expectations are not.
type StaticEmbedder map[string]Vector

func (s StaticEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	return s[text], nil
}

func (s StaticEmbedder) EmbedBatch(_ context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = s[t]
	}
	return out, nil
}
