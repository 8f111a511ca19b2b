package archive

import (
	"fmt"
	"strings"

	"github.com/park285/onchain-chess/internal/domain"
	"github.com/park285/onchain-chess/internal/game"
	"github.com/park285/onchain-chess/internal/oracle"
)

type Header struct {
	Event string
	Site  string
}

// ResultToken is "white", "black", "draw" or "" for an unfinished game.
func ResultToken(g *game.Game) string {
	if g == nil || !g.Over() {
		return ""
	}
	switch g.Winner {
	case domain.White:
		return "white"
	case domain.Black:
		return "black"
	default:
		return "draw"
	}
}

func mapResultToPGN(result string) string {
	switch result {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders g as PGN. Games always start from the standard position,
// but the final FEN is kept as a tag so the record is checkable on its own.
func BuildPGN(g *game.Game, moves []string, h Header) string {
	if g == nil {
		return ""
	}
	res := mapResultToPGN(ResultToken(g))
	var b strings.Builder
	tag := func(name, value string) {
		fmt.Fprintf(&b, "[%s \"%s\"]\n", name, sanitizePGN(value))
	}
	tag("Event", h.Event)
	tag("Site", h.Site)
	tag("Round", fmt.Sprintf("%d", g.ID))
	tag("White", g.White)
	tag("Black", g.Black)
	tag("Result", res)
	tag("StartHeight", fmt.Sprintf("%d", g.StartedAt))
	if g.EndedAt > 0 {
		tag("EndHeight", fmt.Sprintf("%d", g.EndedAt))
	}
	if g.BlockLimit > 0 {
		tag("TimeControl", fmt.Sprintf("%d blocks/move", g.BlockLimit))
	}
	if m := strings.TrimSpace(g.Method); m != "" {
		tag("Termination", strings.ToLower(m))
	}
	if g.FEN != "" && g.FEN != oracle.StartFEN {
		tag("FinalFEN", g.FEN)
	}
	b.WriteString("\n")

	for i := 0; i < len(moves); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(moves[i]))
		if i+1 < len(moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(moves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(res)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
