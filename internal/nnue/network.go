// NNUE Network loading and evaluation.
// Ported from Stockfish src/nnue/network.h and network.cpp

package nnue

import (
	"fmt"
	"io"
	"os"

	"github.com/lucaspeterson/chesscore/internal/board"
	"github.com/lucaspeterson/chesscore/internal/nnue/wire"
)

// Network represents a complete NNUE network (big or small).
// Ported from network.h:57-118
type Network struct {
	// Feature transformer
	FeatureTransformer *FeatureTransformer

	// Layer stacks (one per bucket)
	LayerStacks [LayerStacks]*LayerStack

	// Network type
	IsBig bool

	// File info
	CurrentFile    string
	NetDescription string

	// Initialization status
	Initialized bool

	// Expected hash
	Hash uint32
}

// NewBigNetwork creates a new big network
func NewBigNetwork() *Network {
	net := &Network{
		FeatureTransformer: NewBigFeatureTransformer(),
		IsBig:              true,
	}

	// Create layer stacks
	for i := 0; i < LayerStacks; i++ {
		net.LayerStacks[i] = NewBigNetworkArchitecture()
	}

	// Calculate expected hash
	net.Hash = net.calculateHash()

	return net
}

// NewSmallNetwork creates a new small network
func NewSmallNetwork() *Network {
	net := &Network{
		FeatureTransformer: NewSmallFeatureTransformer(),
		IsBig:              false,
	}

	// Create layer stacks
	for i := 0; i < LayerStacks; i++ {
		net.LayerStacks[i] = NewSmallNetworkArchitecture()
	}

	// Calculate expected hash
	net.Hash = net.calculateHash()

	return net
}

// calculateHash calculates the expected hash for this network.
// Ported from network.h:114
func (n *Network) calculateHash() uint32 {
	return n.FeatureTransformer.GetHashValue() ^ n.LayerStacks[0].GetHashValue()
}

// Load loads network parameters from a file.
// Ported from network.cpp:111-137
func (n *Network) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return n.LoadFromReader(f)
}

// LoadFromReader loads network parameters from a reader.
func (n *Network) LoadFromReader(r io.Reader) error {
	n.Initialized = true

	// Read and validate header
	hashValue, description, err := n.readHeader(r)
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	if hashValue != n.Hash {
		return fmt.Errorf("hash mismatch: expected %08x, got %08x", n.Hash, hashValue)
	}

	n.NetDescription = description

	// Read parameters
	if err := n.readParameters(r); err != nil {
		return fmt.Errorf("failed to read parameters: %w", err)
	}

	return nil
}

// readHeader reads and validates the network file header.
// Ported from network.cpp:344-358
func (n *Network) readHeader(r io.Reader) (uint32, string, error) {
	// Read version
	version, err := wire.ReadUint32(r)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read version: %w", err)
	}
	if version != Version {
		return 0, "", fmt.Errorf("version mismatch: expected %08x, got %08x", Version, version)
	}

	// Read hash
	hashValue, err := wire.ReadUint32(r)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read hash: %w", err)
	}

	// Read description size
	descSize, err := wire.ReadUint32(r)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read description size: %w", err)
	}

	// Read description
	descBytes := make([]byte, descSize)
	if _, err := io.ReadFull(r, descBytes); err != nil {
		return 0, "", fmt.Errorf("failed to read description: %w", err)
	}

	return hashValue, string(descBytes), nil
}

// readParameters reads all network parameters.
// Ported from network.cpp:374-390
func (n *Network) readParameters(r io.Reader) error {
	// Read feature transformer (with hash check)
	transformerHash, err := wire.ReadUint32(r)
	if err != nil {
		return fmt.Errorf("failed to read transformer hash: %w", err)
	}
	expectedTransformerHash := n.FeatureTransformer.GetHashValue()
	if transformerHash != expectedTransformerHash {
		return fmt.Errorf("transformer hash mismatch: expected %08x, got %08x",
			expectedTransformerHash, transformerHash)
	}

	if err := n.FeatureTransformer.ReadParameters(r); err != nil {
		return fmt.Errorf("failed to read transformer parameters: %w", err)
	}

	// Read layer stacks
	for i := 0; i < LayerStacks; i++ {
		// Read layer stack hash
		stackHash, err := wire.ReadUint32(r)
		if err != nil {
			return fmt.Errorf("failed to read layer stack %d hash: %w", i, err)
		}
		expectedStackHash := n.LayerStacks[i].GetHashValue()
		if stackHash != expectedStackHash {
			return fmt.Errorf("layer stack %d hash mismatch: expected %08x, got %08x",
				i, expectedStackHash, stackHash)
		}

		if err := n.LayerStacks[i].ReadParameters(r); err != nil {
			return fmt.Errorf("failed to read layer stack %d: %w", i, err)
		}
	}

	return nil
}

// Evaluate evaluates a position using the network.
// Ported from network.cpp:172-189
func (n *Network) Evaluate(
	accumulation [2][]int16,
	psqtAccumulation [2][]int32,
	sideToMove int,
	pieceCount int,
) (psqt int32, positional int32) {
	// Select bucket based on piece count
	bucket := (pieceCount - 1) / 4
	if bucket < 0 {
		bucket = 0
	} else if bucket >= LayerStacks {
		bucket = LayerStacks - 1
	}

	// Determine perspectives
	perspectives := [2]int{sideToMove, 1 - sideToMove}

	// Transform features
	halfDims := n.FeatureTransformer.HalfDimensions
	transformedFeatures := make([]uint8, halfDims)

	psqt = n.FeatureTransformer.Transform(
		accumulation,
		psqtAccumulation,
		perspectives,
		bucket,
		transformedFeatures,
	)

	// Propagate through layer stack
	positional = n.LayerStacks[bucket].Propagate(transformedFeatures)

	// Scale outputs
	return psqt / int32(OutputScale), positional / int32(OutputScale)
}

// Networks holds both big and small networks.
// Ported from network.h:132-139
type Networks struct {
	Big   *Network
	Small *Network
}

// NewNetworks creates both networks
func NewNetworks() *Networks {
	return &Networks{
		Big:   NewBigNetwork(),
		Small: NewSmallNetwork(),
	}
}

// LoadNetworks loads both networks from files
func LoadNetworks(bigFile, smallFile string) (*Networks, error) {
	nets := NewNetworks()

	if err := nets.Big.Load(bigFile); err != nil {
		return nil, fmt.Errorf("failed to load big network: %w", err)
	}

	if err := nets.Small.Load(smallFile); err != nil {
		return nil, fmt.Errorf("failed to load small network: %w", err)
	}

	return nets, nil
}

// Evaluator provides a high-level interface for NNUE evaluation, owning a
// pair of accumulator stacks (one per network) and their Finny caches.
type Evaluator struct {
	Networks *Networks

	BigStack   *AccumulatorStack
	SmallStack *AccumulatorStack

	BigCache   *AccumulatorCache
	SmallCache *AccumulatorCache
}

// NewEvaluator creates a new evaluator from network files.
func NewEvaluator(bigFile, smallFile string) (*Evaluator, error) {
	networks, err := LoadNetworks(bigFile, smallFile)
	if err != nil {
		return nil, err
	}
	return newEvaluator(networks), nil
}

// NewEvaluatorFromNetworks builds an evaluator around already-loaded
// networks, useful for tests that construct networks in memory.
func NewEvaluatorFromNetworks(networks *Networks) *Evaluator {
	return newEvaluator(networks)
}

func newEvaluator(networks *Networks) *Evaluator {
	return &Evaluator{
		Networks:   networks,
		BigStack:   NewAccumulatorStack(networks.Big.FeatureTransformer.HalfDimensions),
		SmallStack: NewAccumulatorStack(networks.Small.FeatureTransformer.HalfDimensions),
		BigCache:   NewAccumulatorCache(networks.Big.FeatureTransformer.HalfDimensions, networks.Big.FeatureTransformer.Biases),
		SmallCache: NewAccumulatorCache(networks.Small.FeatureTransformer.HalfDimensions, networks.Small.FeatureTransformer.Biases),
	}
}

// Push records the piece-level delta of a just-made move on both networks'
// accumulator stacks. It is O(1): no accumulator is actually recomputed
// until Evaluate is next called for the resulting position.
func (e *Evaluator) Push(dirty board.DirtyPiece) {
	e.BigStack.Push(dirty)
	e.SmallStack.Push(dirty)
}

// Pop discards both stacks' top ply after a move is unmade.
func (e *Evaluator) Pop() {
	e.BigStack.Pop()
	e.SmallStack.Pop()
}

// Reset resets both accumulator stacks to their initial state.
func (e *Evaluator) Reset() {
	e.BigStack.Reset()
	e.SmallStack.Reset()
}

// Evaluate scores pos using the small network by default, or the big
// network when useBig is set (callers typically pick the big network near
// the root and when the small network's score is close to the classical
// lazy-eval threshold, mirroring Stockfish's smallNetThreshold gate).
// Ported from network.cpp's NNUE::evaluate data flow: ensure both
// perspectives' accumulators are valid, transform features, propagate.
func (e *Evaluator) Evaluate(pos *board.Position, useBig bool) int32 {
	stack, net, cache := e.SmallStack, e.Networks.Small, e.SmallCache
	if useBig {
		stack, net, cache = e.BigStack, e.Networks.Big, e.BigCache
	}

	stack.EnsureComputed(int(board.White), net.FeatureTransformer, cache, pos)
	stack.EnsureComputed(int(board.Black), net.FeatureTransformer, cache, pos)

	acc := stack.Current()
	sideToMove := int(pos.SideToMove)
	pieceCount := popcount64(uint64(pos.AllOccupied))

	psqt, positional := net.Evaluate(acc.Accumulation, acc.PSQTAccumulation, sideToMove, pieceCount)
	return psqt + positional
}

// popcount64 counts the set bits of x.
func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
