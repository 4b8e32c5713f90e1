// NNUE Accumulator for incremental updates.
// Ported from Stockfish src/nnue/nnue_accumulator.h and .cpp

package nnue

import (
	"github.com/lucaspeterson/chesscore/internal/board"
	"github.com/lucaspeterson/chesscore/internal/nnue/features"
)

// Accumulator holds the result of affine transformation of input features
// for one board position, one network (big or small), both perspectives.
// Ported from nnue_accumulator.h:47-52
type Accumulator struct {
	// Accumulated values for each color [COLOR_NB][HalfDimensions]
	Accumulation [2][]int16

	// PSQT accumulated values for each color [COLOR_NB][PSQTBuckets]
	PSQTAccumulation [2][]int32

	// Whether each color's accumulator is computed
	Computed [2]bool

	// King squares when accumulator was computed (for detecting king moves)
	KingSq [2]int

	// Whether each perspective needs a full refresh because its own king
	// moved on the ply leading into this accumulator.
	NeedsRefresh [2]bool
}

// SQ_NONE represents no square (for king tracking)
const SQ_NONE = 64

// NewAccumulator creates a new accumulator with the given half dimensions
func NewAccumulator(halfDims int) *Accumulator {
	return &Accumulator{
		Accumulation: [2][]int16{
			make([]int16, halfDims),
			make([]int16, halfDims),
		},
		PSQTAccumulation: [2][]int32{
			make([]int32, PSQTBuckets),
			make([]int32, PSQTBuckets),
		},
		Computed:     [2]bool{false, false},
		KingSq:       [2]int{SQ_NONE, SQ_NONE},
		NeedsRefresh: [2]bool{true, true},
	}
}

// Reset marks the accumulator as not computed
func (a *Accumulator) Reset() {
	a.Computed[0] = false
	a.Computed[1] = false
	a.KingSq[0] = SQ_NONE
	a.KingSq[1] = SQ_NONE
	a.NeedsRefresh[0] = true
	a.NeedsRefresh[1] = true
}

// MaxStackSize is the maximum ply depth an accumulator stack can hold.
const MaxStackSize = 256

// AccumulatorStack manages one network's accumulators across the ply
// stack. Push is O(1): it does not compute anything, it only records the
// DirtyPiece that produced the new ply so a later EnsureComputed call can
// batch every deferred ply into a single incremental (or cached-refresh)
// update. Ported from nnue_accumulator.h:152-202, restructured around a
// single per-network stack rather than a copy-eagerly-on-push design.
type AccumulatorStack struct {
	HalfDimensions int
	accumulators   []Accumulator
	dirty          []board.DirtyPiece
	Size           int
}

// NewAccumulatorStack creates a new accumulator stack for a network with
// the given half-dimension count.
func NewAccumulatorStack(halfDims int) *AccumulatorStack {
	s := &AccumulatorStack{
		HalfDimensions: halfDims,
		accumulators:   make([]Accumulator, MaxStackSize),
		dirty:          make([]board.DirtyPiece, MaxStackSize),
		Size:           1,
	}
	for i := range s.accumulators {
		s.accumulators[i] = *NewAccumulator(halfDims)
	}
	return s
}

// Reset resets the stack to a single, not-yet-computed root ply.
func (s *AccumulatorStack) Reset() {
	s.Size = 1
	s.accumulators[0].Reset()
}

// Push records the DirtyPiece that leads from the current ply to the next
// one and advances the stack. It does not touch accumulator contents.
func (s *AccumulatorStack) Push(dirty board.DirtyPiece) {
	if s.Size >= MaxStackSize {
		panic("nnue: accumulator stack overflow")
	}
	s.dirty[s.Size] = dirty
	next := &s.accumulators[s.Size]
	next.Computed[0], next.Computed[1] = false, false
	for p := 0; p < 2; p++ {
		next.NeedsRefresh[p] = dirtyMovesOwnKing(&dirty, board.Color(p))
	}
	s.Size++
}

// Pop discards the current ply and returns to the previous one.
func (s *AccumulatorStack) Pop() {
	if s.Size <= 1 {
		panic("nnue: accumulator stack underflow")
	}
	s.Size--
}

// Current returns the accumulator for the ply at the top of the stack.
func (s *AccumulatorStack) Current() *Accumulator {
	return &s.accumulators[s.Size-1]
}

// EnsureComputed guarantees the accumulator at the top of the stack is
// valid for perspective p, choosing between three strategies: if it is
// already computed there is nothing to do; otherwise the stack is walked
// backward for the nearest ancestor that is either already computed or
// flagged NeedsRefresh. A computed ancestor is brought forward
// incrementally (strategy: forward incremental, each consecutive pair of
// pending plies going through DoubleUpdateIncremental's fused pass and a
// final unpaired ply through ForwardUpdateIncremental). Otherwise
// (strategy: Finny-cache-backed refresh straight to the top of the
// stack) the top is refreshed; since the own king square has not moved
// between the flagged ply and the top of the stack, that refresh always
// targets the current position's own board state.
func (s *AccumulatorStack) EnsureComputed(p int, ft *FeatureTransformer, cache *AccumulatorCache, pos *board.Position) {
	top := s.Size - 1
	if s.accumulators[top].Computed[p] {
		return
	}

	base := top
	for base > 0 && !s.accumulators[base].Computed[p] && !s.accumulators[base].NeedsRefresh[p] {
		base--
	}

	if !s.accumulators[base].Computed[p] {
		s.refreshFromCache(top, p, ft, cache, pos)
		return
	}

	kingSq := int(pos.KingSquare[p])
	s.forwardChain(base, top, p, ft, kingSq)
}

// forwardChain applies the ply deltas base+1..top in sequence, fusing any
// pair of consecutive plies via DoubleUpdateIncremental.
func (s *AccumulatorStack) forwardChain(base, top, p int, ft *FeatureTransformer, kingSq int) {
	lvl := base + 1
	for lvl <= top {
		if lvl+1 <= top {
			r1, a1 := FeatureIndices(p, kingSq, &s.dirty[lvl])
			r2, a2 := FeatureIndices(p, kingSq, &s.dirty[lvl+1])
			ft.DoubleUpdateIncremental(&s.accumulators[lvl-1], &s.accumulators[lvl+1], r1, a1, r2, a2, p)
			s.accumulators[lvl].Computed[p] = false // intermediate ply is skipped, not valid on its own
			lvl += 2
			continue
		}
		removed, added := FeatureIndices(p, kingSq, &s.dirty[lvl])
		ft.ForwardUpdateIncremental(&s.accumulators[lvl-1], &s.accumulators[lvl], removed, added, p)
		lvl++
	}
}

// refreshFromCache recomputes the top-of-stack accumulator for
// perspective p via the Finny cache, falling back to a from-scratch
// recomputation when too many pieces differ from the cached snapshot for
// the differential update to be worthwhile.
func (s *AccumulatorStack) refreshFromCache(top, p int, ft *FeatureTransformer, cache *AccumulatorCache, pos *board.Position) {
	ksq := int(pos.KingSquare[p])
	entry := cache.GetEntry(ksq, p)
	acc := &s.accumulators[top]

	currentBB, currentPieces := snapshotPieces(pos)
	changed := cache.UpdateFromCache(entry, acc, currentBB, currentPieces, p, ft.HalfDimensions, ft.Weights, ft.PSQTWeights, features.MakeIndex, ksq)

	if changed > 4 {
		computeFromScratch(pos, p, ft, acc)
	}

	cache.SaveToCache(entry, acc, currentBB, currentPieces, p)
	acc.Computed[p] = true
	acc.KingSq[p] = ksq
	acc.NeedsRefresh[p] = false
}

// computeFromScratch recomputes accumulator perspective p directly from
// pos's piece placement, bypassing the Finny cache entirely.
func computeFromScratch(pos *board.Position, p int, ft *FeatureTransformer, acc *Accumulator) {
	var active features.IndexList
	features.AppendActiveIndices(p, positionAdapter{pos}, &active)
	ft.ComputeAccumulator(active.Values[:active.Size], acc.Accumulation[p], acc.PSQTAccumulation[p])
}

// AccumulatorCache provides per-king-square caches for efficient refresh.
// Ported from nnue_accumulator.h:61-106 (Finny Tables)
type AccumulatorCache struct {
	// Cache entries indexed by [king_square][color]
	Entries [64][2]AccumulatorCacheEntry
}

// AccumulatorCacheEntry stores cached accumulator state for a king position
type AccumulatorCacheEntry struct {
	Accumulation     []int16
	PSQTAccumulation []int32
	Pieces           [64]int // Piece on each square
	PieceBB          uint64  // Bitboard of pieces
}

// NewAccumulatorCache creates a new cache for the given dimensions
func NewAccumulatorCache(halfDims int, biases []int16) *AccumulatorCache {
	cache := &AccumulatorCache{}

	for sq := 0; sq < 64; sq++ {
		for c := 0; c < 2; c++ {
			entry := &cache.Entries[sq][c]
			entry.Accumulation = make([]int16, halfDims)
			entry.PSQTAccumulation = make([]int32, PSQTBuckets)
			copy(entry.Accumulation, biases)
			for i := range entry.Pieces {
				entry.Pieces[i] = 0
			}
			entry.PieceBB = 0
		}
	}

	return cache
}

// Clear resets the cache with the given biases
func (c *AccumulatorCache) Clear(biases []int16) {
	for sq := 0; sq < 64; sq++ {
		for color := 0; color < 2; color++ {
			entry := &c.Entries[sq][color]
			copy(entry.Accumulation, biases)
			for i := range entry.PSQTAccumulation {
				entry.PSQTAccumulation[i] = 0
			}
			for i := range entry.Pieces {
				entry.Pieces[i] = 0
			}
			entry.PieceBB = 0
		}
	}
}

// GetEntry returns the cache entry for a king position and perspective
func (c *AccumulatorCache) GetEntry(kingSq, perspective int) *AccumulatorCacheEntry {
	return &c.Entries[kingSq][perspective]
}

// UpdateFromCache updates an accumulator from a cache entry.
// Returns the number of pieces that changed (for deciding if incremental update is worthwhile).
func (c *AccumulatorCache) UpdateFromCache(
	entry *AccumulatorCacheEntry,
	acc *Accumulator,
	currentPieceBB uint64,
	currentPieces [64]int,
	perspective int,
	halfDims int,
	weights []int16,
	psqtWeights []int32,
	makeIndexFn func(perspective, sq, piece, kingSq int) int,
	kingSq int,
) int {
	changedBB := entry.PieceBB ^ currentPieceBB
	for sq := 0; sq < 64; sq++ {
		if entry.Pieces[sq] != currentPieces[sq] {
			changedBB |= 1 << sq
		}
	}

	changedCount := 0
	bb := changedBB
	for bb != 0 {
		bb &= bb - 1
		changedCount++
	}

	if changedCount > 4 {
		return changedCount
	}

	copy(acc.Accumulation[perspective], entry.Accumulation)
	copy(acc.PSQTAccumulation[perspective], entry.PSQTAccumulation)

	bb = changedBB
	for bb != 0 {
		sq := trailingZeros64(bb)
		bb &= bb - 1

		wasPresent := (entry.PieceBB & (1 << sq)) != 0
		isPresent := (currentPieceBB & (1 << sq)) != 0

		if wasPresent && !isPresent {
			pc := entry.Pieces[sq]
			if pc != 0 {
				idx := makeIndexFn(perspective, sq, pc, kingSq)
				offset := idx * halfDims
				for i := 0; i < halfDims; i++ {
					acc.Accumulation[perspective][i] -= weights[offset+i]
				}
				psqtOffset := idx * PSQTBuckets
				for b := 0; b < PSQTBuckets; b++ {
					acc.PSQTAccumulation[perspective][b] -= psqtWeights[psqtOffset+b]
				}
			}
		} else if !wasPresent && isPresent {
			pc := currentPieces[sq]
			if pc != 0 {
				idx := makeIndexFn(perspective, sq, pc, kingSq)
				offset := idx * halfDims
				for i := 0; i < halfDims; i++ {
					acc.Accumulation[perspective][i] += weights[offset+i]
				}
				psqtOffset := idx * PSQTBuckets
				for b := 0; b < PSQTBuckets; b++ {
					acc.PSQTAccumulation[perspective][b] += psqtWeights[psqtOffset+b]
				}
			}
		} else if wasPresent && isPresent {
			oldPc := entry.Pieces[sq]
			newPc := currentPieces[sq]
			if oldPc != newPc {
				if oldPc != 0 {
					idx := makeIndexFn(perspective, sq, oldPc, kingSq)
					offset := idx * halfDims
					for i := 0; i < halfDims; i++ {
						acc.Accumulation[perspective][i] -= weights[offset+i]
					}
					psqtOffset := idx * PSQTBuckets
					for b := 0; b < PSQTBuckets; b++ {
						acc.PSQTAccumulation[perspective][b] -= psqtWeights[psqtOffset+b]
					}
				}
				if newPc != 0 {
					idx := makeIndexFn(perspective, sq, newPc, kingSq)
					offset := idx * halfDims
					for i := 0; i < halfDims; i++ {
						acc.Accumulation[perspective][i] += weights[offset+i]
					}
					psqtOffset := idx * PSQTBuckets
					for b := 0; b < PSQTBuckets; b++ {
						acc.PSQTAccumulation[perspective][b] += psqtWeights[psqtOffset+b]
					}
				}
			}
		}
	}

	acc.Computed[perspective] = true
	return changedCount
}

// SaveToCache saves the current accumulator state to the cache entry
func (c *AccumulatorCache) SaveToCache(
	entry *AccumulatorCacheEntry,
	acc *Accumulator,
	currentPieceBB uint64,
	currentPieces [64]int,
	perspective int,
) {
	copy(entry.Accumulation, acc.Accumulation[perspective])
	copy(entry.PSQTAccumulation, acc.PSQTAccumulation[perspective])
	entry.PieceBB = currentPieceBB
	copy(entry.Pieces[:], currentPieces[:])
}

// trailingZeros64 returns the number of trailing zeros in a 64-bit integer
func trailingZeros64(x uint64) int {
	if x == 0 {
		return 64
	}
	n := 0
	if x&0xFFFFFFFF == 0 {
		n += 32
		x >>= 32
	}
	if x&0xFFFF == 0 {
		n += 16
		x >>= 16
	}
	if x&0xFF == 0 {
		n += 8
		x >>= 8
	}
	if x&0xF == 0 {
		n += 4
		x >>= 4
	}
	if x&0x3 == 0 {
		n += 2
		x >>= 2
	}
	if x&0x1 == 0 {
		n += 1
	}
	return n
}
