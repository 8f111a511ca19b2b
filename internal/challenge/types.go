package challenge

import (
	"strings"

	"github.com/park285/onchain-chess/internal/domain"
	"github.com/park285/onchain-chess/internal/store"
)

// Status of a challenge. OPEN is the only non-terminal state.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusAccepted Status = "ACCEPTED"
	StatusCanceled Status = "CANCELED"
)

var transitions = map[Status][]Status{
	StatusOpen: {StatusAccepted, StatusCanceled},
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus accepts the upper- or lower-case status name.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen, true
	case StatusAccepted:
		return StatusAccepted, true
	case StatusCanceled:
		return StatusCanceled, true
	default:
		return "", false
	}
}

// AnyOpponent is the opponent index value of a challenge anyone may accept.
const AnyOpponent = "*"

type Challenge struct {
	ID       uint64             `json:"id"`
	Creator  string             `json:"creator"`
	Opponent string             `json:"opponent,omitempty"`
	Color    domain.ColorChoice `json:"color"`
	// BlockLimit per move; zero means untimed.
	BlockLimit    uint64 `json:"block_limit,omitempty"`
	Status        Status `json:"status"`
	CreatedHeight uint64 `json:"created_height"`
	ClosedHeight  uint64 `json:"closed_height,omitempty"`
	GameID        uint64 `json:"game_id,omitempty"`
}

func opponentKey(c *Challenge) string {
	if c.Opponent == "" {
		return AnyOpponent
	}
	return c.Opponent
}

var Table = &store.Table[Challenge]{
	Name:  "challenge",
	ID:    func(c *Challenge) uint64 { return c.ID },
	SetID: func(c *Challenge, id uint64) { c.ID = id },
	Indexes: []store.Index[Challenge]{
		{Name: "creator", Key: func(c *Challenge) string { return c.Creator }},
		{Name: "opponent", Key: opponentKey},
		{Name: "status", Key: func(c *Challenge) string { return string(c.Status) }},
		{Name: "creator_status", Key: func(c *Challenge) string { return c.Creator + "|" + string(c.Status) }},
		{Name: "opponent_status", Key: func(c *Challenge) string { return opponentKey(c) + "|" + string(c.Status) }},
	},
}
