// Package features turns board state into the sparse feature indices
// an evaluation network's input layer expects.
//
// The feature set implemented here mirrors each side's king to the
// e-through-h files (a "half king" view: the board is never mirrored
// vertically, only horizontally) and pairs it with every piece's
// square and identity, giving one active input index per piece on the
// board, per perspective.
package features

// Board geometry.
const (
	squareA1 = 0
	squareH1 = 7

	numSquares = 64
	numColors  = 2
)

// kingType is the piece type code for a king, packed into a piece code
// as color*8+type; it is the last valid type, so pieceSquareIndex uses
// it as an upper bound check.
const kingType = 6

// NO_PIECE is the piece code for an empty square.
const NO_PIECE = 0

// psBase assigns each (color, piece type) pair a disjoint band of
// numSquares indices within one perspective's feature space; both
// kings share one band since only one king per side can be on the
// board at a time and its square is folded into the king bucket
// instead.
var psBase = [numColors][7]int{
	{0, 0 * numSquares, 2 * numSquares, 4 * numSquares, 6 * numSquares, 8 * numSquares, 10 * numSquares},
	{0, 1 * numSquares, 3 * numSquares, 5 * numSquares, 7 * numSquares, 9 * numSquares, 10 * numSquares},
}

// psPerPerspective is the width of one king bucket: one band per piece
// type/color pair (10 of them) plus the shared king band.
const psPerPerspective = 11 * numSquares

// pieceSquareIndex maps a piece code to its psBase entry from a given
// perspective. Own and enemy pieces swap bands when viewed from Black,
// matching how the feature is meant to be symmetric under color flip.
func pieceSquareIndex(perspective, pieceCode int) int {
	if pieceCode == NO_PIECE {
		return 0
	}
	color := (pieceCode >> 3) & 1
	pt := pieceCode & 7
	if pt > kingType {
		return 0
	}
	if perspective == 1 {
		color = 1 - color
	}
	return psBase[color][pt]
}

// kingBucket returns the king-square bucket used to select which slab
// of the feature space a perspective's pieces are indexed into. Kings
// on file e-h keep their own square's data; kings on a-d see the
// horizontally mirrored bucket, so the network only ever has to learn
// one half of the board's king placements.
//
// Buckets increase toward the back rank and toward the center files,
// giving adjacent king squares adjacent (and often shared) buckets.
func kingBucket(sq int) int {
	rank, file := sq/8, sq%8
	return (7-rank)*4 + fileBucket(file)
}

func fileBucket(file int) int {
	if file < 4 {
		return file
	}
	return 7 - file
}

// orientAnchor returns squareH1 when sq's king is on files a-d and
// squareA1 when it is on files e-h; XOR-ing a square against this value
// flips its file only when the anchor is squareH1.
func orientAnchor(sq int) int {
	if sq%8 < 4 {
		return squareH1
	}
	return squareA1
}

// kingBucketOffsets and orientAnchors are precomputed per king square so
// MakeIndex stays a handful of table lookups and XORs.
var (
	kingBucketOffsets [numSquares]int
	orientAnchors     [numSquares]int
)

func init() {
	for sq := 0; sq < numSquares; sq++ {
		kingBucketOffsets[sq] = kingBucket(sq) * psPerPerspective
		orientAnchors[sq] = orientAnchor(sq)
	}
}

// Name identifies this feature set in a network file's description.
const Name = "HalfKAv2_hm(Friend)"

// HashValue is this feature set's contribution to the file-format hash;
// it must match the value the loaded network file was trained against.
const HashValue uint32 = 0x7f234cb8

// Dimensions is the total input width: one king bucket's worth of
// piece-square slots for each of the squareA1/squareH1 mirror halves.
const Dimensions = numSquares * (11 * numSquares) / 2 // 22528

// MaxActiveDimensions bounds how many features can be active for one
// perspective at once (32 pieces, one index each).
const MaxActiveDimensions = 32

// MakeIndex computes the feature index of piece pc on sq, as seen by
// perspective, given that perspective's king is on ksq.
func MakeIndex(perspective, sq, pc, ksq int) int {
	flip := 56 * perspective
	orientedSq := sq ^ orientAnchors[ksq] ^ flip
	return orientedSq + pieceSquareIndex(perspective, pc) + kingBucketOffsets[ksq^flip]
}

// IndexList holds the (bounded) set of feature indices active for one
// perspective in one position.
type IndexList struct {
	Values [MaxActiveDimensions]int
	Size   int
}

// Push appends idx, silently dropping it if the list is already full
// (a legal board has at most 32 pieces, so the limit is never exceeded).
func (l *IndexList) Push(idx int) {
	if l.Size < MaxActiveDimensions {
		l.Values[l.Size] = idx
		l.Size++
	}
}

// Clear empties the list for reuse.
func (l *IndexList) Clear() {
	l.Size = 0
}

// Position is the board state AppendActiveIndices needs: a king square
// per side, an occupancy bitboard, and a piece code per occupied
// square.
type Position interface {
	KingSquare(color int) int
	PieceOn(sq int) int
	Pieces() uint64
}

// AppendActiveIndices fills active with the feature index of every
// piece on the board, as seen by perspective.
func AppendActiveIndices(perspective int, pos Position, active *IndexList) {
	ksq := pos.KingSquare(perspective)
	bb := pos.Pieces()
	for bb != 0 {
		sq := popLSB(&bb)
		if pc := pos.PieceOn(sq); pc != NO_PIECE {
			active.Push(MakeIndex(perspective, sq, pc, ksq))
		}
	}
}

func popLSB(bb *uint64) int {
	sq := trailingZeros64(*bb)
	*bb &= *bb - 1
	return sq
}

func trailingZeros64(bb uint64) int {
	if bb == 0 {
		return 64
	}
	n := 0
	for bb&1 == 0 {
		n++
		bb >>= 1
	}
	return n
}
