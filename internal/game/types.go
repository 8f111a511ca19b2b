package game

import (
	"github.com/park285/onchain-chess/internal/domain"
	"github.com/park285/onchain-chess/internal/store"
)

// Status is the lifecycle state of a game. Everything but ACTIVE is terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCheckmate Status = "CHECKMATE"
	StatusStalemate Status = "STALEMATE"
	StatusResigned  Status = "RESIGNED"
	StatusDraw      Status = "DRAW"
	StatusTimeout   Status = "TIMEOUT"
)

// transitions is the single source of legal status changes.
var transitions = map[Status][]Status{
	StatusActive: {StatusCheckmate, StatusStalemate, StatusResigned, StatusDraw, StatusTimeout},
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// Clock holds the block height at which each side's current thinking
// period began.
type Clock struct {
	White uint64 `json:"white"`
	Black uint64 `json:"black"`
}

func (c Clock) Baseline(color domain.Color) uint64 {
	if color == domain.Black {
		return c.Black
	}
	return c.White
}

func (c *Clock) Reset(color domain.Color, height uint64) {
	if color == domain.Black {
		c.Black = height
		return
	}
	c.White = height
}

type Game struct {
	ID          uint64       `json:"id"`
	ChallengeID uint64       `json:"challenge_id"`
	White       string       `json:"white"`
	Black       string       `json:"black"`
	FEN         string       `json:"fen"`
	Status      Status       `json:"status"`
	Turn        domain.Color `json:"turn"`
	Clock       Clock        `json:"clock"`
	// BlockLimit is the per-move block budget; zero disables the clock.
	BlockLimit uint64       `json:"block_limit,omitempty"`
	DrawOffer  domain.Color `json:"draw_offer,omitempty"`
	Moves      uint32       `json:"moves"`
	Winner     domain.Color `json:"winner,omitempty"`
	Method     string       `json:"method,omitempty"`
	LastMove   string       `json:"last_move,omitempty"`
	StartedAt  uint64       `json:"start_height"`
	EndedAt    uint64       `json:"end_height,omitempty"`
}

func (g *Game) ColorOf(addr string) (domain.Color, bool) {
	switch addr {
	case g.White:
		return domain.White, true
	case g.Black:
		return domain.Black, true
	default:
		return domain.NoColor, false
	}
}

func (g *Game) Player(c domain.Color) string {
	if c == domain.Black {
		return g.Black
	}
	return g.White
}

// Elapsed is how many blocks color has been thinking at height. A side's
// clock only runs while it is that side's turn.
func (g *Game) Elapsed(color domain.Color, height uint64) uint64 {
	if g.Turn != color {
		return 0
	}
	base := g.Clock.Baseline(color)
	if height <= base {
		return 0
	}
	return height - base
}

// Lapsed reports whether color's running clock exceeded the block limit.
func (g *Game) Lapsed(color domain.Color, height uint64) bool {
	return g.BlockLimit > 0 && g.Elapsed(color, height) > g.BlockLimit
}

func (g *Game) Over() bool { return g.Status.Terminal() }

func stateKey(g *Game) string {
	if g.Over() {
		return "over"
	}
	return "active"
}

// MovesList names the per-game list of committed SAN moves. It is kept
// outside the record so a turn reads and writes a fixed-size record.
const MovesList = "moves"

// Table is the persisted layout of games.
var Table = &store.Table[Game]{
	Name:  "game",
	ID:    func(g *Game) uint64 { return g.ID },
	SetID: func(g *Game, id uint64) { g.ID = id },
	Indexes: []store.Index[Game]{
		{Name: "white", Key: func(g *Game) string { return g.White }},
		{Name: "black", Key: func(g *Game) string { return g.Black }},
		{Name: "state", Key: stateKey},
		{Name: "white_state", Key: func(g *Game) string { return g.White + "|" + stateKey(g) }},
		{Name: "black_state", Key: func(g *Game) string { return g.Black + "|" + stateKey(g) }},
	},
}

// ActionKind enumerates what a participant can do on their game.
type ActionKind uint8

const (
	ActionMove ActionKind = iota + 1
	ActionOfferDraw
	ActionAcceptDraw
	ActionResign
)

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionOfferDraw:
		return "offer_draw"
	case ActionAcceptDraw:
		return "accept_draw"
	case ActionResign:
		return "resign"
	default:
		return "unknown"
	}
}

// clocked reports whether the action is subject to the clock check.
func (k ActionKind) clocked() bool { return k != ActionAcceptDraw }

type Action struct {
	Kind ActionKind
	// Move is the move text for ActionMove and ActionOfferDraw.
	Move string
}

func Move(text string) Action      { return Action{Kind: ActionMove, Move: text} }
func OfferDraw(text string) Action { return Action{Kind: ActionOfferDraw, Move: text} }
func AcceptDraw() Action           { return Action{Kind: ActionAcceptDraw} }
func Resign() Action               { return Action{Kind: ActionResign} }
