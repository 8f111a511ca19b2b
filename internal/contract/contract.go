// Package contract is the message-level entry point: it decodes execute and
// query messages, dispatches them to the registry, engine and query service,
// and reports committed effects as event attributes.
package contract

import (
	"context"
	"strconv"

	"github.com/park285/onchain-chess/internal/chain"
	"github.com/park285/onchain-chess/internal/challenge"
	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/game"
	"github.com/park285/onchain-chess/internal/oracle"
	"github.com/park285/onchain-chess/internal/query"
	"github.com/park285/onchain-chess/internal/store"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

type Contract struct {
	challenges *challenge.Registry
	games      *game.Engine
	queries    *query.Service
}

func New(st *store.Store, o oracle.Oracle, limits query.Limits) *Contract {
	return &Contract{
		challenges: challenge.NewRegistry(st),
		games:      game.NewEngine(st, o),
		queries:    query.NewService(st, limits),
	}
}

// Queries exposes the read side for collaborators such as the archiver.
func (c *Contract) Queries() *query.Service { return c.queries }

// Execute runs one state-changing message as env.Sender.
func (c *Contract) Execute(ctx context.Context, env chain.Env, msg chessdto.ExecuteMsg) (*chessdto.Response, error) {
	if err := exactlyOne(msg.CreateChallenge != nil, msg.AcceptChallenge != nil, msg.CancelChallenge != nil, msg.DeclareTimeout != nil, msg.Turn != nil); err != nil {
		return nil, err
	}
	resp := &chessdto.Response{}
	switch {
	case msg.CreateChallenge != nil:
		m := msg.CreateChallenge
		id, err := c.challenges.Create(ctx, env, challenge.CreateParams{Opponent: m.Opponent, Color: m.Color, BlockLimit: m.BlockLimit})
		if err != nil {
			return nil, err
		}
		resp.Add("action", "create_challenge").Add("challenge_id", u64(id))

	case msg.AcceptChallenge != nil:
		g, err := c.challenges.Accept(ctx, env, msg.AcceptChallenge.ChallengeID)
		if err != nil {
			return nil, err
		}
		resp.Add("action", "accept_challenge").
			Add("challenge_id", u64(msg.AcceptChallenge.ChallengeID)).
			Add("game_id", u64(g.ID)).
			Add("white", g.White).
			Add("black", g.Black)

	case msg.CancelChallenge != nil:
		if err := c.challenges.Cancel(ctx, env, msg.CancelChallenge.ChallengeID); err != nil {
			return nil, err
		}
		resp.Add("action", "cancel_challenge").Add("challenge_id", u64(msg.CancelChallenge.ChallengeID))

	case msg.DeclareTimeout != nil:
		g, err := c.games.DeclareTimeout(ctx, env, msg.DeclareTimeout.GameID)
		if err != nil {
			return nil, err
		}
		resp.Add("action", "declare_timeout").Add("game_id", u64(g.ID))
		addResult(resp, g)

	case msg.Turn != nil:
		act, err := decodeAction(msg.Turn.Action)
		if err != nil {
			return nil, err
		}
		out, err := c.games.Turn(ctx, env, msg.Turn.GameID, act)
		if err != nil {
			return nil, err
		}
		resp.Add("action", act.Kind.String()).Add("game_id", u64(out.Game.ID))
		if out.SAN != "" {
			resp.Add("move", out.SAN).Add("move_uci", out.UCI)
		}
		if out.TimedOut {
			resp.Add("timed_out", "true")
		}
		addResult(resp, out.Game)
	}
	return resp, nil
}

// Query answers one read-only message. The result is a view or a page.
func (c *Contract) Query(ctx context.Context, msg chessdto.QueryMsg) (any, error) {
	if err := exactlyOne(msg.GetChallenge != nil, msg.GetChallenges != nil, msg.GetGame != nil, msg.GetGames != nil, msg.GetPlayerGames != nil); err != nil {
		return nil, err
	}
	switch {
	case msg.GetChallenge != nil:
		return c.queries.GetChallenge(ctx, msg.GetChallenge.ID)
	case msg.GetChallenges != nil:
		q := msg.GetChallenges
		return c.queries.GetChallenges(ctx, query.ChallengeFilter{Status: q.Status, Player: q.Player}, q.After, q.Limit)
	case msg.GetGame != nil:
		return c.queries.GetGame(ctx, msg.GetGame.ID)
	case msg.GetGames != nil:
		q := msg.GetGames
		return c.queries.GetGames(ctx, query.GameFilter{Player: q.Player, GameOver: q.GameOver}, q.After, q.Limit)
	default:
		q := msg.GetPlayerGames
		return c.queries.GetPlayerGames(ctx, q.Address, q.GameOver, q.After, q.Limit)
	}
}

func decodeAction(a chessdto.Action) (game.Action, error) {
	if err := exactlyOne(a.Move != nil, a.OfferDraw != nil, a.AcceptDraw != nil, a.Resign != nil); err != nil {
		return game.Action{}, err
	}
	switch {
	case a.Move != nil:
		return game.Move(a.Move.Move), nil
	case a.OfferDraw != nil:
		return game.OfferDraw(a.OfferDraw.Move), nil
	case a.AcceptDraw != nil:
		return game.AcceptDraw(), nil
	default:
		return game.Resign(), nil
	}
}

func addResult(resp *chessdto.Response, g *game.Game) {
	resp.Add("status", string(g.Status))
	if g.Over() {
		resp.Add("game_over", "true")
		if g.Winner != "" {
			resp.Add("winner", g.Player(g.Winner))
		}
	}
}

func exactlyOne(set ...bool) error {
	n := 0
	for _, s := range set {
		if s {
			n++
		}
	}
	if n != 1 {
		return chesserr.Validation("invalid_message", "expected exactly one variant, got %d", n)
	}
	return nil
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
