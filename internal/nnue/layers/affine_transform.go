// Dense (fully-connected) affine layer: output = weights*input + bias.

package layers

import (
	"fmt"
	"io"

	"github.com/lucaspeterson/chesscore/internal/nnue/wire"
)

// affineLayerHash folds outputDims and the previous layer's hash into a
// running architecture hash. Shared by AffineTransform and
// AffineTransformSparseInput since their on-disk parameter layout is
// identical.
func affineLayerHash(prevHash uint32, outputDims int) uint32 {
	h := uint32(0xCC03DAE4)
	h += uint32(outputDims)
	h ^= prevHash >> 1
	h ^= prevHash << 31
	return h
}

// AffineTransform is a dense layer: every output is a weighted sum of
// every input plus a bias.
type AffineTransform struct {
	InputDimensions       int
	OutputDimensions      int
	PaddedInputDimensions int

	Biases  []int32
	Weights []int8
}

// NewAffineTransform allocates a dense layer mapping inputDims inputs to
// outputDims outputs. The input width is padded so SIMD dot products
// can always read a full vector register's worth of weights.
func NewAffineTransform(inputDims, outputDims int) *AffineTransform {
	padded := wire.PadTo(inputDims, wire.Alignment)
	return &AffineTransform{
		InputDimensions:       inputDims,
		OutputDimensions:      outputDims,
		PaddedInputDimensions: padded,
		Biases:                make([]int32, outputDims),
		Weights:               make([]int8, outputDims*padded),
	}
}

// GetHashValue folds this layer into the architecture hash chain.
func (a *AffineTransform) GetHashValue(prevHash uint32) uint32 {
	return affineLayerHash(prevHash, a.OutputDimensions)
}

// ReadParameters reads biases then weights. The weights keep the file's
// row-major order (one PaddedInputDimensions-wide row per output), which
// is the layout Propagate reads.
func (a *AffineTransform) ReadParameters(r io.Reader) error {
	if err := wire.ReadInt32s(r, a.Biases); err != nil {
		return fmt.Errorf("affine transform: read biases: %w", err)
	}

	raw := make([]int8, a.OutputDimensions*a.PaddedInputDimensions)
	if err := wire.ReadInt8s(r, raw); err != nil {
		return fmt.Errorf("affine transform: read weights: %w", err)
	}
	for i, w := range raw {
		a.Weights[i] = w
	}
	return nil
}

// weightIndex maps a row-major weight position to the 4-wide
// chunk-interleaved layout, in which weights are grouped into 4-wide
// chunks shared across all output rows before moving to the next input
// chunk. This layer's ReadParameters and Propagate use row-major order
// and do not call it.
func (a *AffineTransform) weightIndex(i int) int {
	return (i/4)%(a.PaddedInputDimensions/4)*a.OutputDimensions*4 +
		i/a.PaddedInputDimensions*4 + i%4
}

// Propagate computes output[i] = bias[i] + dot(weights[i], input) for
// every output row.
func (a *AffineTransform) Propagate(input []uint8, output []int32) {
	for i := 0; i < a.OutputDimensions; i++ {
		row := i * a.PaddedInputDimensions
		output[i] = a.Biases[i] + SIMDDotProductInt8Uint8(a.Weights[row:], input, a.InputDimensions)
	}
}
