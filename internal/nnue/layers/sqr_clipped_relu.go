// Squared clipped ReLU activation: clamp(x*x >> shift, 0, 127). Squaring
// before clamping gives the network a smoother activation than the
// plain ClippedReLU branch it runs alongside.

package layers

// sqrClampShift is 2*clampShiftBits+7: doubled because the input is
// squared, plus 7 extra bits to keep the result in [0, 127] after the
// square roughly doubles the input's bit width.
const sqrClampShift = 2*clampShiftBits + 7

// SqrClippedReLU applies the squared-and-clamped activation.
type SqrClippedReLU struct {
	InputDimensions  int
	OutputDimensions int
}

// NewSqrClippedReLU builds a squared clipped-ReLU layer over dims
// elements.
func NewSqrClippedReLU(dims int) *SqrClippedReLU {
	return &SqrClippedReLU{InputDimensions: dims, OutputDimensions: dims}
}

// GetHashValue folds this layer into the architecture hash chain; it
// contributes the same term as ClippedReLU since neither layer has
// parameters of its own to distinguish them in the file format.
func (s *SqrClippedReLU) GetHashValue(prevHash uint32) uint32 {
	return clippedReLUHash(prevHash)
}

// ReadParameters is a no-op: this layer carries no learned parameters.
func (s *SqrClippedReLU) ReadParameters() error {
	return nil
}

// Propagate writes clamp(input[i]*input[i]>>sqrClampShift, 0, 127) to
// output[i].
func (s *SqrClippedReLU) Propagate(input []int32, output []uint8) {
	for i := 0; i < s.InputDimensions; i++ {
		sq := int64(input[i]) * int64(input[i])
		v := sq >> sqrClampShift
		if v > 127 {
			v = 127
		}
		output[i] = uint8(v)
	}
}
