package cluster

import (
	"gonum.org/v1/gonum/mat"

	"news-digest/internal/embeddings"
)

// Matrix holds pairwise similarities between embedded documents. It is symmetric;
// the diagonal is never read.
type Matrix struct {
	n   int
	sym *mat.SymDense
}

// NewMatrix computes the angular similarity for every pair of vectors.
func NewMatrix(vectors []embeddings.Vector) *Matrix {
	n := len(vectors)
	if n == 0 {
		return &Matrix{}
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sym.SetSym(i, j, embeddings.AngularSimilarity(vectors[i], vectors[j]))
		}
	}
	return &Matrix{n: n, sym: sym}
}

// NewMatrixFromSym wraps precomputed similarities.
func NewMatrixFromSym(sym *mat.SymDense) *Matrix {
	if sym == nil {
		return &Matrix{}
	}
	n, _ := sym.Dims()
	return &Matrix{n: n, sym: sym}
}

// Len is the number of documents covered.
func (m *Matrix) Len() int {
	return m.n
}

// At returns the similarity between positions i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.sym.At(i, j)
}
