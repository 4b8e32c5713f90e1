// Dense affine layer optimized for a mostly-zero input vector: the
// feature transformer's pairwise-multiplied output has only a handful
// of nonzero 4-byte chunks, so this layer skips every all-zero chunk
// instead of running the full dot product.

package layers

import (
	"fmt"
	"io"

	"github.com/lucaspeterson/chesscore/internal/nnue/wire"
)

// AffineTransformSparseInput is the network's first dense layer, always
// fed directly by the feature transformer.
type AffineTransformSparseInput struct {
	InputDimensions       int
	OutputDimensions      int
	PaddedInputDimensions int

	Biases  []int32
	Weights []int8
}

// NewAffineTransformSparseInput allocates a sparse-input dense layer
// with the same padding and weight layout as AffineTransform.
func NewAffineTransformSparseInput(inputDims, outputDims int) *AffineTransformSparseInput {
	padded := wire.PadTo(inputDims, wire.Alignment)
	return &AffineTransformSparseInput{
		InputDimensions:       inputDims,
		OutputDimensions:      outputDims,
		PaddedInputDimensions: padded,
		Biases:                make([]int32, outputDims),
		Weights:               make([]int8, outputDims*padded),
	}
}

// GetHashValue folds this layer into the architecture hash chain; the
// sparse and dense affine layers share the same formula since their
// on-disk parameter layout is identical.
func (a *AffineTransformSparseInput) GetHashValue(prevHash uint32) uint32 {
	return affineLayerHash(prevHash, a.OutputDimensions)
}

// ReadParameters reads biases then weights, rearranging the file's
// row-major weights into the chunk-interleaved layout Propagate reads.
func (a *AffineTransformSparseInput) ReadParameters(r io.Reader) error {
	if err := wire.ReadInt32s(r, a.Biases); err != nil {
		return fmt.Errorf("sparse affine transform: read biases: %w", err)
	}

	raw := make([]int8, a.OutputDimensions*a.PaddedInputDimensions)
	if err := wire.ReadInt8s(r, raw); err != nil {
		return fmt.Errorf("sparse affine transform: read weights: %w", err)
	}
	for i, w := range raw {
		a.Weights[a.weightIndex(i)] = w
	}
	return nil
}

// sparseChunkSize is the width a nonzero-chunk test groups input bytes
// into; 4 matches the SSSE3/NEON chunked dot product.
const sparseChunkSize = 4

// weightIndex maps a row-major (file-order) weight position into the
// chunk-interleaved in-memory layout, grouped by sparseChunkSize instead
// of 4-wide SIMD lanes directly so the constant is named once.
func (a *AffineTransformSparseInput) weightIndex(i int) int {
	return (i/sparseChunkSize)%(a.PaddedInputDimensions/sparseChunkSize)*a.OutputDimensions*sparseChunkSize +
		i/a.PaddedInputDimensions*sparseChunkSize + i%sparseChunkSize
}

// Propagate adds the bias, then walks only the nonzero 4-byte chunks of
// input, accumulating their weighted contribution into every output.
func (a *AffineTransformSparseInput) Propagate(input []uint8, output []int32) {
	copy(output, a.Biases)

	numChunks := wire.PadTo(a.InputDimensions, 8) / sparseChunkSize

	packed := make([]int32, (len(input)+3)/4)
	for i, b := range input {
		packed[i/4] |= int32(b) << (8 * (i % 4))
	}

	nonzero := make([]int, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		if packed[i] != 0 {
			nonzero = append(nonzero, i)
		}
	}

	for _, idx := range nonzero {
		chunk := packed[idx]
		b0 := uint8(chunk)
		b1 := uint8(chunk >> 8)
		b2 := uint8(chunk >> 16)
		b3 := uint8(chunk >> 24)

		col := idx * a.OutputDimensions * sparseChunkSize
		for k := 0; k < a.OutputDimensions; k++ {
			w := col + k*sparseChunkSize
			output[k] += int32(a.Weights[w+0]) * int32(b0)
			output[k] += int32(a.Weights[w+1]) * int32(b1)
			output[k] += int32(a.Weights[w+2]) * int32(b2)
			output[k] += int32(a.Weights[w+3]) * int32(b3)
		}
	}
}
