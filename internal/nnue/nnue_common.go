// Wire-format constants for the evaluation network file: the version
// tag every network must advertise and the fixed-point scale the
// network stack's output is expressed in. Byte-level decoding itself
// lives in the wire package, shared with the layers package.

package nnue

// Version is the file-format tag every network parameter file starts
// with; loading refuses anything else.
const Version uint32 = 0x7AF32F20

// OutputScale and WeightScaleBits convert the network's internal
// fixed-point units back to centipawns.
const (
	OutputScale     = 16
	WeightScaleBits = 6
)
