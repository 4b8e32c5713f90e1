//go:build !goexperiment.simd || !amd64

// Portable Go fallback for accumulator arithmetic, used on every
// platform except amd64 built with GOEXPERIMENT=simd (see simd.go).
// There is no vectorized path for arm64 in this build: the assembly it
// would call was never actually shipped, so arm64 always lands here.

package nnue

// SIMDAddInt16 computes dst[i] += src[i] for every element.
func SIMDAddInt16(dst, src []int16) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// SIMDSubInt16 computes dst[i] -= src[i] for every element.
func SIMDSubInt16(dst, src []int16) {
	for i := range dst {
		dst[i] -= src[i]
	}
}

// SIMDAddInt32 computes dst[i] += src[i] for every element.
func SIMDAddInt32(dst, src []int32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// SIMDSubInt32 computes dst[i] -= src[i] for every element.
func SIMDSubInt32(dst, src []int32) {
	for i := range dst {
		dst[i] -= src[i]
	}
}

// SIMDCopyInt16 copies src into dst.
func SIMDCopyInt16(dst, src []int16) {
	copy(dst, src)
}

// SIMDCopyInt32 copies src into dst.
func SIMDCopyInt32(dst, src []int32) {
	copy(dst, src)
}

// SIMDAddInt16Offset computes dst[i] += src[offset+i] for i in [0, count).
func SIMDAddInt16Offset(dst, src []int16, offset, count int) {
	for i := 0; i < count; i++ {
		dst[i] += src[offset+i]
	}
}

// SIMDSubInt16Offset computes dst[i] -= src[offset+i] for i in [0, count).
func SIMDSubInt16Offset(dst, src []int16, offset, count int) {
	for i := 0; i < count; i++ {
		dst[i] -= src[offset+i]
	}
}

// SIMDDotProductInt8Uint8 returns the dot product of weights and inputs
// over the first count elements.
func SIMDDotProductInt8Uint8(weights []int8, inputs []uint8, count int) int32 {
	var sum int32
	for i := 0; i < count; i++ {
		sum += int32(weights[i]) * int32(inputs[i])
	}
	return sum
}

// SIMDClippedReLU writes clamp(input[i]>>shift, 0, 127) to output[i].
func SIMDClippedReLU(input []int32, output []uint8, shift int) {
	for i := range input {
		v := input[i] >> shift
		switch {
		case v < 0:
			v = 0
		case v > 127:
			v = 127
		}
		output[i] = uint8(v)
	}
}
