// Package engine demonstrates the core data flow spec.md describes:
// before evaluating a leaf position, probe the transposition table; on a
// miss, advance the accumulator stack by one ply using the position's
// dirty-piece delta, read the accumulator to feed the network, and
// publish the result through the writer the probe returned. On
// backtracking, pop the accumulator stack. The outer search tree
// (alpha-beta, move ordering, time management) that would normally
// drive this loop is out of scope; Searcher exists only to wire the two
// core subsystems together the way that search driver would.
package engine

import (
	"github.com/lucaspeterson/chesscore/internal/board"
	"github.com/lucaspeterson/chesscore/internal/nnue"
	"github.com/lucaspeterson/chesscore/internal/tt"
)

// SmallNetThreshold mirrors Stockfish's smallNetThreshold gate: scores
// within this margin of zero are rechecked with the big network, since
// the small network alone is unreliable near the draw boundary.
const SmallNetThreshold = 236

// Searcher owns one position's transposition table handle and NNUE
// evaluator, and exposes the probe/accumulate/evaluate/write sequence a
// real search driver would call once per visited node.
type Searcher struct {
	Table     *tt.Table
	Evaluator *nnue.Evaluator
}

// NewSearcher wires a transposition table and NNUE evaluator together.
func NewSearcher(table *tt.Table, evaluator *nnue.Evaluator) *Searcher {
	return &Searcher{Table: table, Evaluator: evaluator}
}

// EvaluateNode is the per-node hot path: probe the table; on a hit with
// sufficient depth, trust the cached value; on a miss, evaluate via NNUE
// and publish the result. depth/generation bookkeeping mirrors what a
// real negamax loop would pass in (see the teacher's now-retired
// Worker.negamax TT interaction for the probe/store shape this adapts).
func (s *Searcher) EvaluateNode(pos *board.Position, depth int8, move board.Move, isPV bool) (value int16, fromCache bool) {
	found, data, writer := s.Table.Probe(pos.Hash)
	if found && data.Depth >= depth {
		return data.Value, true
	}

	useBig := true
	score := s.Evaluator.Evaluate(pos, false)
	if absInt32(int32(score)) < SmallNetThreshold {
		score = s.Evaluator.Evaluate(pos, useBig)
	}

	value = int16(score)
	writer.Write(value, value, depth, tt.BoundExact, move, isPV)
	return value, false
}

// MakeMove applies m to pos, advances both NNUE accumulator stacks with
// the resulting dirty-piece delta, and returns the undo information the
// caller must pass to UnmakeMove to backtrack.
func (s *Searcher) MakeMove(pos *board.Position, m board.Move) board.UndoInfo {
	undo, dirty := pos.MakeMove(m)
	s.Evaluator.Push(dirty)
	return undo
}

// UnmakeMove reverses MakeMove: pops both accumulator stacks and
// restores pos from undo.
func (s *Searcher) UnmakeMove(pos *board.Position, undo board.UndoInfo) {
	s.Evaluator.Pop()
	pos.UnmakeMove(undo)
}

func absInt32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
