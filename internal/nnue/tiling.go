package nnue

// Lane widths for the tiled accumulator update. These describe the widest
// vector register the SIMD build tags target (256-bit AVX2 lanes); the
// scalar fallback (simd_scalar.go) reuses the same tile boundaries so
// both paths sum weights in the same grouping and stay bit-exact.
const (
	simdInt16Width = 16
	simdInt32Width = 8
)

// TileHeight returns the number of rows processed together by one SIMD
// pass over a weight block of the given dimension. Stockfish's
// Kernels::add/Kernels::subtract(src/nnue/nnue_accumulator.cpp) tile the
// accumulator update so a fixed number of vector registers holds the
// entire working set for one tile; the tile height is the largest divisor
// of (dim*laneSize)/regSize that does not exceed maxRegs, so that no tile
// spills into a second pass over its registers.
func TileHeight(dim, laneSize, regSize, maxRegs int) int {
	total := dim * laneSize / regSize
	if total <= 0 {
		return 0
	}
	for h := min(total, maxRegs); h >= 1; h-- {
		if total%h == 0 {
			return h
		}
	}
	return 1
}

// addWeightsTiled adds the weight rows for a single active feature index
// into dst in register-sized tiles, computed via TileHeight so the inner
// loop never processes more elements than fit in one vector-register
// tile's worth of lanes. Matches the SIMD path's register use bit-for-bit
// since SIMDAddInt16Offset sums the same elements regardless of the tile
// boundary, only the grouping of calls differs.
func addWeightsTiled(dst []int16, weights []int16, offset, halfDims int) {
	tile := TileHeight(halfDims, 1, simdInt16Width, 16)
	if tile <= 0 {
		tile = halfDims
	}
	for i := 0; i < halfDims; i += tile {
		n := tile
		if i+n > halfDims {
			n = halfDims - i
		}
		SIMDAddInt16Offset(dst[i:i+n], weights, offset+i, n)
	}
}

// subWeightsTiled mirrors addWeightsTiled for subtraction.
func subWeightsTiled(dst []int16, weights []int16, offset, halfDims int) {
	tile := TileHeight(halfDims, 1, simdInt16Width, 16)
	if tile <= 0 {
		tile = halfDims
	}
	for i := 0; i < halfDims; i += tile {
		n := tile
		if i+n > halfDims {
			n = halfDims - i
		}
		SIMDSubInt16Offset(dst[i:i+n], weights, offset+i, n)
	}
}
