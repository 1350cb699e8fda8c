package game

// Move is a single throw: "R", "P" or "S".
type Move string

const (
	MoveRock     Move = "R"
	MovePaper    Move = "P"
	MoveScissors Move = "S"
)

var allMoves = [3]Move{MoveRock, MovePaper, MoveScissors}

func (m Move) Valid() bool {
	return m == MoveRock || m == MovePaper || m == MoveScissors
}

// Beats returns the move that wins against m.
func (m Move) Beats() Move {
	switch m {
	case MoveRock:
		return MovePaper
	case MovePaper:
		return MoveScissors
	default:
		return MoveRock
	}
}

// Compare applies the canonical throw relation: 1 if a beats b, -1 if b
// beats a, 0 on a draw.
func Compare(a, b Move) int {
	if a == b {
		return 0
	}
	if a.Beats() == b {
		return -1
	}
	return 1
}
