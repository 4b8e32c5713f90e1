// Portable Go dot-product and sparse-chunk kernels for the affine
// layers. There is no assembly-backed vector path in this build, so
// every architecture including arm64 runs these directly.

package layers

// SIMDDotProductInt8Uint8 returns the dot product of weights and inputs
// over the first count elements, unrolled by 4 for the compiler's
// benefit.
func SIMDDotProductInt8Uint8(weights []int8, inputs []uint8, count int) int32 {
	var sum int32
	i := 0
	for ; i+4 <= count; i += 4 {
		sum += int32(weights[i]) * int32(inputs[i])
		sum += int32(weights[i+1]) * int32(inputs[i+1])
		sum += int32(weights[i+2]) * int32(inputs[i+2])
		sum += int32(weights[i+3]) * int32(inputs[i+3])
	}
	for ; i < count; i++ {
		sum += int32(weights[i]) * int32(inputs[i])
	}
	return sum
}

// SIMDSparseChunkMulAcc accumulates one nonzero 4-byte input chunk's
// weighted contribution into every output row.
func SIMDSparseChunkMulAcc(output []int32, weights []int8, outLen int, inputChunk uint32) {
	if outLen == 0 || inputChunk == 0 {
		return
	}

	b0 := uint8(inputChunk)
	b1 := uint8(inputChunk >> 8)
	b2 := uint8(inputChunk >> 16)
	b3 := uint8(inputChunk >> 24)

	for k := 0; k < outLen; k++ {
		w := k * 4
		output[k] += int32(weights[w+0]) * int32(b0)
		output[k] += int32(weights[w+1]) * int32(b1)
		output[k] += int32(weights[w+2]) * int32(b2)
		output[k] += int32(weights[w+3]) * int32(b3)
	}
}
