package ai

import (
	"fmt"

	"github.com/poiesic/docstage/core"
)

// CheckEmbeddings verifies that an embedding response has one vector per
// input and that every vector has the same non-zero dimension.
func CheckEmbeddings(want int, vectors [][]float32) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: requested %d embeddings, received %d", core.ErrLengthMismatch, want, len(vectors))
	}
	if want == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty embedding at position 0", core.ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: position %d has %d dimensions, expected %d", core.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}
