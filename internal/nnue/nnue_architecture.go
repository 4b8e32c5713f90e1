// Layer-stack topology shared by every network size: a sparse first
// affine layer fed by the feature transformer's pairwise-multiplied
// output, a squared and a plain clipped-ReLU branch concatenated back
// together, and two more affine layers narrowing down to a single
// evaluation score.

package nnue

import (
	"io"

	"github.com/lucaspeterson/chesscore/internal/nnue/features"
	"github.com/lucaspeterson/chesscore/internal/nnue/layers"
	"github.com/lucaspeterson/chesscore/internal/nnue/wire"
)

// Per-size hidden-layer widths. The big network trades evaluation speed
// for accuracy with an eight-times-wider feature transformer; L2/L3 stay
// the same across both sizes.
const (
	TransformedFeatureDimensionsBig = 1024
	L2Big                           = 15
	L3Big                           = 32

	TransformedFeatureDimensionsSmall = 128
	L2Small                           = 15
	L3Small                           = 32

	PSQTBuckets = 8
	LayerStacks = 8
)

// PSQInputDimensions and ThreatInputDimensions mirror the two feature
// sets' output widths, so the architecture layer never has to import
// the feature packages' constants directly by name at each use site.
const (
	PSQInputDimensions   = features.Dimensions
	ThreatInputDimensions = features.ThreatDimensions
)

// stackBuffers holds the scratch space one bucket's forward pass writes
// into, sized once at construction and reused on every Propagate call.
type stackBuffers struct {
	fc0    [32]int32
	acSqr0 [64]uint8 // holds both the squared and plain clipped-ReLU halves
	ac0    [32]uint8
	fc1    [32]int32
	ac1    [32]uint8
	fc2    [32]int32
}

// LayerStack is one piece-count bucket's slice of the network: a sparse
// affine layer, a clipped-ReLU pair, and two dense affine layers
// narrowing down to a single score.
type LayerStack struct {
	TransformedFeatureDimensions int
	FC0Outputs                   int
	FC1Outputs                   int

	fc0    *layers.AffineTransformSparseInput
	acSqr0 *layers.SqrClippedReLU
	ac0    *layers.ClippedReLU
	fc1    *layers.AffineTransform
	ac1    *layers.ClippedReLU
	fc2    *layers.AffineTransform

	scratch stackBuffers
}

func newLayerStack(transformedDims, l2, l3 int) *LayerStack {
	fc0Out := l2 + 1
	return &LayerStack{
		TransformedFeatureDimensions: transformedDims,
		FC0Outputs:                   fc0Out,
		FC1Outputs:                   l3,
		// The sparse layer's input width is the transformer's half
		// width, not doubled: pairwise multiplication already folded
		// the two perspectives together upstream.
		fc0:    layers.NewAffineTransformSparseInput(transformedDims, fc0Out),
		acSqr0: layers.NewSqrClippedReLU(fc0Out),
		ac0:    layers.NewClippedReLU(fc0Out),
		fc1:    layers.NewAffineTransform(fc0Out*2, l3),
		ac1:    layers.NewClippedReLU(l3),
		fc2:    layers.NewAffineTransform(l3, 1),
	}
}

// NewBigNetworkArchitecture builds the layer stack used by the big
// network's eight piece-count buckets.
func NewBigNetworkArchitecture() *LayerStack {
	return newLayerStack(TransformedFeatureDimensionsBig, L2Big, L3Big)
}

// NewSmallNetworkArchitecture builds the layer stack used by the small
// network's eight piece-count buckets.
func NewSmallNetworkArchitecture() *LayerStack {
	return newLayerStack(TransformedFeatureDimensionsSmall, L2Small, L3Small)
}

// GetHashValue chains this stack's layers into the running architecture
// hash embedded in the network file; the constant and call order are
// part of the file format and must not change.
func (s *LayerStack) GetHashValue() uint32 {
	hashValue := uint32(0xEC42E90D)
	hashValue ^= uint32(s.TransformedFeatureDimensions * 2)

	hashValue = s.fc0.GetHashValue(hashValue)
	hashValue = s.ac0.GetHashValue(hashValue) // AcSqr0 does not contribute its own term
	hashValue = s.fc1.GetHashValue(hashValue)
	hashValue = s.ac1.GetHashValue(hashValue)
	hashValue = s.fc2.GetHashValue(hashValue)

	return hashValue
}

// ReadParameters reads the stack's affine layers in file order. The
// clipped-ReLU layers carry no parameters of their own.
func (s *LayerStack) ReadParameters(r io.Reader) error {
	if err := s.fc0.ReadParameters(r); err != nil {
		return err
	}
	if err := s.fc1.ReadParameters(r); err != nil {
		return err
	}
	if err := s.fc2.ReadParameters(r); err != nil {
		return err
	}
	return nil
}

// Propagate runs transformedFeatures through the stack and returns the
// positional evaluation term (still in the network's internal scale;
// the caller divides by OutputScale).
func (s *LayerStack) Propagate(transformedFeatures []uint8) int32 {
	fc0Out := s.scratch.fc0[:wire.PadTo(s.FC0Outputs, wire.Alignment)]
	acSqr0Out := s.scratch.acSqr0[:wire.PadTo(s.FC0Outputs*2, wire.Alignment)]
	ac0Out := s.scratch.ac0[:wire.PadTo(s.FC0Outputs, wire.Alignment)]
	fc1Out := s.scratch.fc1[:wire.PadTo(s.FC1Outputs, wire.Alignment)]
	ac1Out := s.scratch.ac1[:wire.PadTo(s.FC1Outputs, wire.Alignment)]
	fc2Out := s.scratch.fc2[:wire.PadTo(1, wire.Alignment)]

	s.fc0.Propagate(transformedFeatures, fc0Out)
	s.acSqr0.Propagate(fc0Out, acSqr0Out[:s.FC0Outputs])
	SIMDClippedReLU(fc0Out, ac0Out, WeightScaleBits)

	// The squared and plain clipped-ReLU halves feed FC1 concatenated.
	copy(acSqr0Out[s.FC0Outputs:], ac0Out[:s.FC0Outputs])

	s.fc1.Propagate(acSqr0Out, fc1Out)
	SIMDClippedReLU(fc1Out, ac1Out, WeightScaleBits)
	s.fc2.Propagate(ac1Out, fc2Out)

	// A skip connection from FC0's last output straight to the score,
	// rescaled from the [0,127] clipped-ReLU domain to OutputScale.
	skip := fc0Out[s.FC0Outputs-1] * (600 * OutputScale) / (127 * (1 << WeightScaleBits))
	return fc2Out[0] + skip
}

// BigNetworkHash returns the architecture hash the big network's file
// must embed.
func BigNetworkHash() uint32 {
	return NewBigNetworkArchitecture().GetHashValue()
}

// SmallNetworkHash returns the architecture hash the small network's
// file must embed.
func SmallNetworkHash() uint32 {
	return NewSmallNetworkArchitecture().GetHashValue()
}
