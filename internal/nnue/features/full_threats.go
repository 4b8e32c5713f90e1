// FullThreats augments HalfKAv2_hm with threat relationships (which
// piece attacks which) for the big network only. The small network
// never sees these features.
//
// Wiring note: producing the actual delta of threats gained/lost by a
// move requires attack generation, which this module does not
// implement (see the board package's non-goals). The wire-format
// constants below are load-bearing regardless, since they participate
// in the feature-transformer hash and the combined PSQT weight layout;
// the index-list scaffolding (ThreatIndexList, DirtyThreats) is kept for
// whoever wires up attack generation next; this package has no function
// that enumerates active or changed threat features.
package features

// ThreatName identifies this feature set in a network file's
// description, alongside Name for the big network.
const ThreatName = "Full_Threats(Friend)"

// ThreatHashValue is FullThreats' contribution to the file-format hash.
const ThreatHashValue uint32 = 0x8f234cb8

// ThreatDimensions is the total threat-feature input width.
const ThreatDimensions = 79856

// ThreatMaxActiveDimensions bounds how many threat features can be
// active for one perspective at once.
const ThreatMaxActiveDimensions = 128

// threatTargetsByAttacker gives, for each attacking piece type
// (pawn..king, 0-indexed), how many (attacked colour, attacked type)
// targets it has: twice its number of non-negative slots in
// threatKindIndex, one per colour of the attacked piece.
var threatTargetsByAttacker = [6]int{6, 12, 10, 10, 12, 8}

// threatKindIndex maps an (attacker type, attacked type) pair to its
// slot within that attacker's threat band, or -1 if the pair has no
// threat feature (e.g. a pawn attacking a bishop, or a king attacking a
// queen or a king).
var threatKindIndex = [6][6]int{
	{0, 1, -1, 2, -1, -1}, // pawn attacks: pawn, knight, rook only
	{0, 1, 2, 3, 4, 5},    // knight attacks all six types
	{0, 1, 2, 3, -1, 4},   // bishop attacks all but queen
	{0, 1, 2, 3, -1, 4},   // rook: same shape as bishop
	{0, 1, 2, 3, 4, 5},    // queen attacks all six types
	{0, 1, 2, 3, -1, -1},  // king: no king/queen targets counted
}

// threatOrientAnchor mirrors a square horizontally for threat features
// exactly like orientAnchor does for HalfKAv2_hm, but with the two
// halves swapped: files a-d keep their own data here, e-h mirror.
func threatOrientAnchor(sq int) int {
	if sq%8 < 4 {
		return squareA1
	}
	return squareH1
}

// ThreatEntry is one gained or lost threat relationship between two
// pieces.
type ThreatEntry struct {
	AttackerPiece int
	AttackerSq    int
	AttackedPiece int
	AttackedSq    int
	Gained        bool
}

// DirtyThreats collects the threat relationships that changed for one
// side across a move.
type DirtyThreats struct {
	Perspective int
	KingSq      int
	PrevKingSq  int
	Changes     []ThreatEntry
}

// ThreatRequiresRefresh reports whether the king crossed the e-file
// boundary, which invalidates every mirrored threat index for
// perspective and forces a full recompute rather than an incremental
// patch.
func ThreatRequiresRefresh(dt *DirtyThreats, perspective int) bool {
	return perspective == dt.Perspective && (dt.KingSq&0b100) != (dt.PrevKingSq&0b100)
}

// ThreatIndexList holds the bounded set of active threat-feature
// indices for one perspective.
type ThreatIndexList struct {
	Values [ThreatMaxActiveDimensions]int
	Size   int
}

// Push appends idx, silently dropping it once the list is full.
func (l *ThreatIndexList) Push(idx int) {
	if l.Size < ThreatMaxActiveDimensions {
		l.Values[l.Size] = idx
		l.Size++
	}
}

// Clear empties the list for reuse.
func (l *ThreatIndexList) Clear() {
	l.Size = 0
}
