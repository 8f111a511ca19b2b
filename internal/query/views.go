package query

import (
	"github.com/park285/onchain-chess/internal/challenge"
	"github.com/park285/onchain-chess/internal/game"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

func challengeView(c *challenge.Challenge) chessdto.ChallengeView {
	return chessdto.ChallengeView{
		ID:            c.ID,
		Creator:       c.Creator,
		Opponent:      c.Opponent,
		Color:         string(c.Color),
		BlockLimit:    c.BlockLimit,
		Status:        string(c.Status),
		CreatedHeight: c.CreatedHeight,
		ClosedHeight:  c.ClosedHeight,
		GameID:        c.GameID,
	}
}

func gameSummary(g *game.Game) chessdto.GameSummary {
	s := chessdto.GameSummary{
		ID:          g.ID,
		White:       g.White,
		Black:       g.Black,
		Status:      string(g.Status),
		Winner:      string(g.Winner),
		BlockLimit:  g.BlockLimit,
		StartHeight: g.StartedAt,
		Moves:       g.Moves,
	}
	if !g.Over() {
		s.TurnColor = string(g.Turn)
	}
	return s
}

func gameView(g *game.Game, moves []string) chessdto.GameView {
	return chessdto.GameView{
		GameSummary: gameSummary(g),
		ChallengeID: g.ChallengeID,
		FEN:         g.FEN,
		WhiteClock:  g.Clock.White,
		BlackClock:  g.Clock.Black,
		DrawOffer:   string(g.DrawOffer),
		Method:      g.Method,
		LastMove:    g.LastMove,
		EndHeight:   g.EndedAt,
		History:     moves,
	}
}
