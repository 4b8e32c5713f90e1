// Clipped ReLU activation: clamp(x >> shiftBits, 0, 127).

package layers

// clampShiftBits is the right shift applied before clamping, matching
// the fixed-point scale the preceding affine layer's weights were
// quantized to.
const clampShiftBits = 6

// clippedReLUHash folds this layer's contribution into the running
// architecture hash; ClippedReLU and SqrClippedReLU share the value
// since neither carries any learned parameters that would otherwise
// distinguish them.
func clippedReLUHash(prevHash uint32) uint32 {
	return 0x538D24C7 + prevHash
}

// ClippedReLU clamps its int32 input into the [0, 127] range a
// following affine layer's uint8 inputs expect.
type ClippedReLU struct {
	InputDimensions  int
	OutputDimensions int
}

// NewClippedReLU builds a clipped-ReLU layer over dims elements.
func NewClippedReLU(dims int) *ClippedReLU {
	return &ClippedReLU{InputDimensions: dims, OutputDimensions: dims}
}

// GetHashValue folds this layer into the architecture hash chain.
func (c *ClippedReLU) GetHashValue(prevHash uint32) uint32 {
	return clippedReLUHash(prevHash)
}

// ReadParameters is a no-op: this layer carries no learned parameters.
func (c *ClippedReLU) ReadParameters() error {
	return nil
}

// Propagate writes clamp(input[i]>>clampShiftBits, 0, 127) to output[i],
// unrolled by 4.
func (c *ClippedReLU) Propagate(input []int32, output []uint8) {
	n := c.InputDimensions

	i := 0
	for ; i+4 <= n; i += 4 {
		v0 := clamp127(input[i] >> clampShiftBits)
		v1 := clamp127(input[i+1] >> clampShiftBits)
		v2 := clamp127(input[i+2] >> clampShiftBits)
		v3 := clamp127(input[i+3] >> clampShiftBits)
		output[i] = uint8(v0)
		output[i+1] = uint8(v1)
		output[i+2] = uint8(v2)
		output[i+3] = uint8(v3)
	}
	for ; i < n; i++ {
		output[i] = uint8(clamp127(input[i] >> clampShiftBits))
	}
}

// clamp127 restricts v to [0, 127].
func clamp127(v int32) int32 {
	switch {
	case v < 0:
		return 0
	case v > 127:
		return 127
	default:
		return v
	}
}
