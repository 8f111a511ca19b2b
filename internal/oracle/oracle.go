// Package oracle decides move legality and board outcome. It is a pure
// function of (position, move text): nothing is cached between calls.
package oracle

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/domain"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type Status uint8

const (
	InProgress Status = iota
	Checkmate
	Stalemate
	// DrawByRule covers draws the board forces without an offer:
	// insufficient material and the seventy-five move rule.
	DrawByRule
)

func (s Status) String() string {
	switch s {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case DrawByRule:
		return "draw_by_rule"
	default:
		return "in_progress"
	}
}

// Result is the position after an accepted move.
type Result struct {
	FEN    string
	SAN    string
	UCI    string
	Status Status
	// Winner is set for Checkmate only.
	Winner domain.Color
	// Method is the library's lower-case termination name, e.g. "insufficientmaterial".
	Method string
}

type Oracle interface {
	Apply(fen, move string) (Result, error)
}

// Chess implements Oracle with corentings/chess.
type Chess struct{}

func New() *Chess { return &Chess{} }

// Apply decodes move as SAN, falling back to UCI, and plays it on fen.
// Rejections are chesserr IllegalMove errors; a corrupt fen is an internal error.
func (Chess) Apply(fen, move string) (Result, error) {
	text := strings.TrimSpace(move)
	if text == "" {
		return Result{}, chesserr.IllegalMove("empty move")
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return Result{}, fmt.Errorf("decode stored position %q: %w", fen, err)
	}
	game := nchess.NewGame(opt)
	if game.Outcome() != nchess.NoOutcome {
		return Result{}, chesserr.IllegalMove("position is already decided")
	}

	san := nchess.AlgebraicNotation{}
	uci := nchess.UCINotation{}
	pos := game.Position()
	mv, err := san.Decode(pos, text)
	if err != nil {
		mv, err = uci.Decode(pos, strings.ToLower(text))
		if err != nil {
			return Result{}, chesserr.IllegalMove(fmt.Sprintf("cannot read %q as a move in this position", text))
		}
	}
	if err := game.Move(mv, nil); err != nil {
		return Result{}, chesserr.IllegalMove(fmt.Sprintf("move %q is not legal: %v", text, err))
	}

	res := Result{
		FEN: game.FEN(),
		SAN: san.Encode(pos, mv),
		UCI: strings.ToLower(uci.Encode(pos, mv)),
	}
	mover := colorOf(pos.Turn())
	switch game.Outcome() {
	case nchess.NoOutcome:
		res.Status = InProgress
	case nchess.WhiteWon, nchess.BlackWon:
		res.Status = Checkmate
		res.Winner = mover
		res.Method = methodName(game.Method())
	case nchess.Draw:
		res.Method = methodName(game.Method())
		if game.Method() == nchess.Stalemate {
			res.Status = Stalemate
		} else {
			res.Status = DrawByRule
		}
	}
	return res, nil
}

func colorOf(c nchess.Color) domain.Color {
	if c == nchess.White {
		return domain.White
	}
	return domain.Black
}

func methodName(m nchess.Method) string { return strings.ToLower(m.String()) }
