/*
Package nnue implements an efficiently updatable neural network (NNUE)
evaluation function for chess positions.

The network pairs each side's king with every piece on the board
(HalfKAv2_hm) and, for the larger of its two network sizes, also
tracks piece-to-piece threat relationships. Two networks of different
size are evaluated by a shared architecture: a sparse first affine
layer, two clipped-ReLU branches, and two dense affine layers per
piece-count bucket.

# Accumulators

Evaluating a position does not run the feature transformer from
scratch on every move. An AccumulatorStack tracks one accumulator per
ply and resolves each perspective lazily: a plain move chains forward
from the previous ply's accumulator, two plies fuse into one weight
update via DoubleUpdateIncremental, and a king move forces a refresh
from an AccumulatorCache bucket instead of walking back further.

# Usage

	evaluator, err := nnue.NewEvaluator("big.nnue", "small.nnue")
	if err != nil {
		log.Fatal(err)
	}
	score := evaluator.Evaluate(pos, false)
*/
package nnue
