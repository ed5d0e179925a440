package cluster

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"news-digest/internal/embeddings"
	"news-digest/internal/logger"
)

// matrixFromPairs builds an n×n similarity matrix where listed pairs score high and
// every other pair scores low.
func matrixFromPairs(n int, pairs ...[2]int) *Matrix {
	sym := mat.NewSymDense(n, nil)
	for _, p := range pairs {
		sym.SetSym(p[0], p[1], 0.9)
	}
	return NewMatrixFromSym(sym)
}

func TestGroupTwoSimilarDocuments(t *testing.T) {
	clusters := Group(matrixFromPairs(2, [2]int{0, 1}), DefaultThreshold)
	assert.Equal(t, []Cluster{{ID: 0, Members: []int{0, 1}}}, clusters)
}

func TestGroupIsNotTransitive(t *testing.T) {
	// 0~1 and 1~2, but 0 and 2 are unrelated.
	clusters := Group(matrixFromPairs(3, [2]int{0, 1}, [2]int{1, 2}), DefaultThreshold)

	assert.Equal(t, []Cluster{
		{ID: 0, Members: []int{0, 1}},
		{ID: 1, Members: []int{1, 2}},
	}, clusters)
}

func TestGroupPrunesSubsets(t *testing.T) {
	// A full triangle opens {0,1,2} and {1,2}; the latter is contained in the former.
	clusters := Group(matrixFromPairs(3, [2]int{0, 1}, [2]int{0, 2}, [2]int{1, 2}), DefaultThreshold)
	assert.Equal(t, []Cluster{{ID: 0, Members: []int{0, 1, 2}}}, clusters)
}

func TestGroupThresholdIsStrict(t *testing.T) {
	sym := mat.NewSymDense(2, nil)
	sym.SetSym(0, 1, DefaultThreshold)
	assert.Empty(t, Group(NewMatrixFromSym(sym), DefaultThreshold))
}

func TestGroupEmptyAndSingle(t *testing.T) {
	assert.Empty(t, Group(NewMatrix(nil), DefaultThreshold))
	assert.Empty(t, Group(NewMatrix([]embeddings.Vector{{1, 0}}), DefaultThreshold))
}

func randomMatrix(r *rand.Rand, n int) *Matrix {
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sym.SetSym(i, j, r.Float64())
		}
	}
	return NewMatrixFromSym(sym)
}

func TestGroupProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	const threshold = 0.8

	for round := 0; round < 50; round++ {
		m := randomMatrix(r, 2+r.Intn(20))
		clusters := Group(m, threshold)

		for a, ca := range clusters {
			require.NotEmpty(t, ca.Members)
			assert.Contains(t, ca.Members, ca.ID)
			assert.IsIncreasing(t, ca.Members)

			// Every member joined through a direct edge to the representative.
			for _, member := range ca.Members {
				if member != ca.ID {
					assert.Greater(t, m.At(ca.ID, member), threshold,
						"round %d: member %d of cluster %d is not adjacent", round, member, ca.ID)
				}
			}

			for b, cb := range clusters {
				if a != b {
					assert.False(t, isSubset(ca.Members, cb.Members),
						"round %d: cluster %d survived inside cluster %d", round, ca.ID, cb.ID)
				}
			}
		}
	}
}

func TestGroupDeterministic(t *testing.T) {
	m := randomMatrix(rand.New(rand.NewSource(7)), 25)
	first := Group(m, 0.7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Group(m, 0.7))
	}
}

func TestIsSubset(t *testing.T) {
	assert.True(t, isSubset([]int{1, 3}, []int{1, 2, 3}))
	assert.True(t, isSubset([]int{1, 2}, []int{1, 2}))
	assert.False(t, isSubset([]int{1, 4}, []int{1, 2, 3}))
	assert.False(t, isSubset([]int{1, 2, 3}, []int{1, 2}))
	assert.True(t, isSubset(nil, []int{1}))
}

func TestClustererScenario(t *testing.T) {
	e := embeddings.StaticEmbedder{
		"A x":   {1, 0},
		"A2 x2": {0.95, 0.31},
	}
	c := New(e, DefaultThreshold, logger.Discard())

	clusters, err := c.Cluster(context.Background(), []string{"A x", "A2 x2"})
	require.NoError(t, err)
	assert.Equal(t, []Cluster{{ID: 0, Members: []int{0, 1}}}, clusters)
}

func TestClustererSkipsMissingText(t *testing.T) {
	e := embeddings.StaticEmbedder{
		"A x":     {1, 0},
		"C z":     {0.9, 0.1},
		"other w": {-1, 0},
	}
	c := New(e, DefaultThreshold, logger.Discard(), WithBatchSize(1), WithConcurrency(2))

	clusters, err := c.Cluster(context.Background(), []string{"A x", "", "C z", "   ", "other w"})
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, 0, clusters[0].ID)
	assert.Equal(t, []int{0, 2}, clusters[0].Members)
	for _, cl := range clusters {
		assert.NotContains(t, cl.Members, 1)
		assert.NotContains(t, cl.Members, 3)
	}
}

func TestClustererTooFewDocuments(t *testing.T) {
	// Any embedding call on the mock would panic: none is expected.
	e := new(embeddings.MockEmbedder)
	c := New(e, DefaultThreshold, logger.Discard())

	for _, texts := range [][]string{nil, {"only one"}, {"", "one", ""}} {
		clusters, err := c.Cluster(context.Background(), texts)
		require.NoError(t, err)
		assert.Empty(t, clusters)
	}
	e.AssertExpectations(t)
}
