package board

// DirtyPieceEntry is a single piece-level change produced by MakeMove: a
// piece appearing, disappearing, or sliding from one square to another.
// From is NoSquare when the piece was added (promotion), To is NoSquare
// when the piece was removed (capture).
type DirtyPieceEntry struct {
	Piece Piece
	From  Square
	To    Square
}

// ThreatDelta carries the attacker-victim feature indices gained and lost
// by a move, consumed only by the big network's FullThreats feature set.
// board.Position does not compute these itself — deriving them requires the
// attack generation this module intentionally leaves external — callers
// that drive the threat-aware accumulator path populate it directly.
type ThreatDelta struct {
	Added   []uint32
	Removed []uint32
}

// DirtyPiece is the delta a single MakeMove call hands to internal/nnue's
// accumulator update: at most one captured piece, one moved piece, and one
// extra rook move for castling, plus an optional threat-feature delta.
type DirtyPiece struct {
	Entries [3]DirtyPieceEntry
	Count   int
	Threats ThreatDelta
}

func (dp *DirtyPiece) add(piece Piece, from, to Square) {
	dp.Entries[dp.Count] = DirtyPieceEntry{Piece: piece, From: from, To: to}
	dp.Count++
}

// abs returns the absolute value of x.
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// MakeMove applies m to the position, returning undo information and the
// piece-level delta the NNUE accumulator stack needs to update
// incrementally. It does not check legality: m is assumed to already be a
// legal move produced by an external move generator.
func (p *Position) MakeMove(m Move) (UndoInfo, DirtyPiece) {
	undo := UndoInfo{
		CapturedPiece:  NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		PawnKey:        p.PawnKey,
		KingSquare:     p.KingSquare,
		Pieces:         p.Pieces,
		Occupied:       p.Occupied,
		AllOccupied:    p.AllOccupied,
		Valid:          false,
	}

	var dirty DirtyPiece

	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()
	piece := p.PieceAt(from)

	if piece == NoPiece || piece.Color() != us {
		return undo, dirty
	}

	undo.Valid = true
	pt := piece.Type()

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]

	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	if m.IsEnPassant() {
		var capturedSq Square
		if us == White {
			capturedSq = to - 8
		} else {
			capturedSq = to + 8
		}
		captured := p.removePiece(capturedSq)
		undo.CapturedPiece = captured
		dirty.add(captured, capturedSq, NoSquare)
		p.Hash ^= zobristPiece[them][Pawn][capturedSq]
		p.PawnKey ^= zobristPiece[them][Pawn][capturedSq]
	} else if captured := p.PieceAt(to); captured != NoPiece {
		p.removePiece(to)
		undo.CapturedPiece = captured
		dirty.add(captured, to, NoSquare)
		p.Hash ^= zobristPiece[them][captured.Type()][to]
		if captured.Type() == Pawn {
			p.PawnKey ^= zobristPiece[them][Pawn][to]
		}
	}

	p.movePiece(from, to)
	dirty.add(piece, from, to)
	p.Hash ^= zobristPiece[us][pt][from]
	p.Hash ^= zobristPiece[us][pt][to]

	if pt == Pawn {
		p.PawnKey ^= zobristPiece[us][Pawn][from]
		p.PawnKey ^= zobristPiece[us][Pawn][to]
	}

	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][Pawn] &^= SquareBB(to)
		p.Pieces[us][promoPt] |= SquareBB(to)
		p.Hash ^= zobristPiece[us][Pawn][to]
		p.Hash ^= zobristPiece[us][promoPt][to]
		p.PawnKey ^= zobristPiece[us][Pawn][to]
		// Supersede the plain move entry above: the pawn that "arrived"
		// at `to` is immediately replaced by the promoted piece.
		dirty.Entries[dirty.Count-1] = DirtyPieceEntry{Piece: piece, From: from, To: NoSquare}
		dirty.add(NewPiece(promoPt, us), NoSquare, to)
	}

	if m.IsCastling() {
		var rookFrom, rookTo Square
		if to > from {
			rookFrom = NewSquare(7, from.Rank())
			rookTo = NewSquare(5, from.Rank())
		} else {
			rookFrom = NewSquare(0, from.Rank())
			rookTo = NewSquare(3, from.Rank())
		}
		rook := p.PieceAt(rookFrom)
		p.movePiece(rookFrom, rookTo)
		dirty.add(rook, rookFrom, rookTo)
		p.Hash ^= zobristPiece[us][Rook][rookFrom]
		p.Hash ^= zobristPiece[us][Rook][rookTo]
	}

	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}

	if from == A1 || to == A1 {
		p.CastlingRights &^= WhiteQueenSideCastle
	}
	if from == H1 || to == H1 {
		p.CastlingRights &^= WhiteKingSideCastle
	}
	if from == A8 || to == A8 {
		p.CastlingRights &^= BlackQueenSideCastle
	}
	if from == H8 || to == H8 {
		p.CastlingRights &^= BlackKingSideCastle
	}

	p.Hash ^= zobristCastling[p.CastlingRights]

	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		p.Hash ^= zobristEnPassant[epSquare.File()]
	}

	if pt == Pawn || undo.CapturedPiece != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them

	return undo, dirty
}

// UnmakeMove undoes a move using the stored undo information.
func (p *Position) UnmakeMove(undo UndoInfo) {
	us := p.SideToMove.Other()

	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.KingSquare = undo.KingSquare
	p.Pieces = undo.Pieces
	p.Occupied = undo.Occupied
	p.AllOccupied = undo.AllOccupied
	p.SideToMove = us

	if us == Black {
		p.FullMoveNumber--
	}
}
