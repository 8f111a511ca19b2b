package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/onchain-chess/internal/chain"
	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/domain"
	"github.com/park285/onchain-chess/internal/obslog"
	"github.com/park285/onchain-chess/internal/oracle"
	"github.com/park285/onchain-chess/internal/store"
)

type Engine struct {
	store  *store.Store
	oracle oracle.Oracle
}

func NewEngine(st *store.Store, o oracle.Oracle) *Engine {
	return &Engine{store: st, oracle: o}
}

// Outcome describes a committed turn.
type Outcome struct {
	Game   *Game
	Action ActionKind
	// TimedOut is set when the clock preempted the requested action.
	TimedOut bool
	// SAN and UCI of the move played, when one was.
	SAN string
	UCI string
}

// Start files a new game inside tx: white to move from the initial
// position, both clocks baselined at the current height.
func Start(tx *store.Tx, env chain.Env, challengeID uint64, white, black string, blockLimit uint64) (*Game, error) {
	g := &Game{
		ChallengeID: challengeID,
		White:       white,
		Black:       black,
		FEN:         oracle.StartFEN,
		Status:      StatusActive,
		Turn:        domain.White,
		Clock:       Clock{White: env.Height, Black: env.Height},
		BlockLimit:  blockLimit,
		StartedAt:   env.Height,
	}
	if _, err := store.Put(tx, Table, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Turn applies one participant action. Either every field and index update
// commits or none does; a Timeout result is a successful commit.
func (e *Engine) Turn(ctx context.Context, env chain.Env, gameID uint64, act Action) (*Outcome, error) {
	if act.Kind < ActionMove || act.Kind > ActionResign {
		return nil, chesserr.Validation("invalid_action", "unknown action")
	}
	out := &Outcome{Action: act.Kind}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		g, err := store.Get(ctx, tx, Table, gameID)
		if err != nil {
			return err
		}
		if g.Over() {
			return chesserr.State("game_already_finished", "game %d ended with %s", g.ID, g.Status)
		}
		color, ok := g.ColorOf(env.Sender)
		if !ok {
			return chesserr.Authorization("not_a_participant", "%s is not playing game %d", env.Sender, g.ID)
		}

		if act.Kind.clocked() && g.Lapsed(color, env.Height) {
			if err := g.finish(StatusTimeout, color.Opposite(), "timeout", env.Height); err != nil {
				return err
			}
			out.TimedOut = true
			out.Game = g
			_, err := store.Put(tx, Table, g)
			return err
		}

		switch act.Kind {
		case ActionMove, ActionOfferDraw:
			res, err := e.play(g, color, act, env.Height)
			if err != nil {
				return err
			}
			out.SAN, out.UCI = res.SAN, res.UCI
			store.Append(tx, Table, g.ID, MovesList, res.SAN)
		case ActionAcceptDraw:
			if g.DrawOffer == domain.NoColor {
				return chesserr.State("no_draw_offer", "no draw offer is pending")
			}
			if g.DrawOffer == color {
				return chesserr.State("own_draw_offer", "a player cannot accept their own draw offer")
			}
			if err := g.finish(StatusDraw, domain.NoColor, "agreement", env.Height); err != nil {
				return err
			}
		case ActionResign:
			if err := g.finish(StatusResigned, color.Opposite(), "resignation", env.Height); err != nil {
				return err
			}
		}
		out.Game = g
		_, err = store.Put(tx, Table, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	logTurn(env, out)
	return out, nil
}

// play runs a Move or OfferDraw against the oracle and folds the result
// into g.
func (e *Engine) play(g *Game, color domain.Color, act Action, height uint64) (oracle.Result, error) {
	if g.Turn != color {
		return oracle.Result{}, chesserr.Authorization("not_your_turn", "it is %s to move", g.Turn)
	}
	res, err := e.oracle.Apply(g.FEN, act.Move)
	if err != nil {
		return oracle.Result{}, err
	}
	g.FEN = res.FEN
	g.Turn = color.Opposite()
	g.Moves++
	g.LastMove = res.SAN
	g.Clock.Reset(color, height)
	g.Clock.Reset(g.Turn, height)
	g.DrawOffer = domain.NoColor

	switch res.Status {
	case oracle.Checkmate:
		return res, g.finish(StatusCheckmate, color, "checkmate", height)
	case oracle.Stalemate:
		return res, g.finish(StatusStalemate, domain.NoColor, "stalemate", height)
	case oracle.DrawByRule:
		return res, g.finish(StatusDraw, domain.NoColor, res.Method, height)
	}
	if act.Kind == ActionOfferDraw {
		g.DrawOffer = color
	}
	return res, nil
}

// LoadMoves returns the committed SAN moves of a game, oldest first. Only
// views and the archive read it; turns never do.
func LoadMoves(ctx context.Context, st *store.Store, gameID uint64) ([]string, error) {
	return store.List(ctx, st, Table, gameID, MovesList)
}

// DeclareTimeout lets a participant claim a game whose side to move has
// overrun its block limit. The lapsed side itself loses through its own
// next clocked turn instead.
func (e *Engine) DeclareTimeout(ctx context.Context, env chain.Env, gameID uint64) (*Game, error) {
	var out *Game
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		g, err := store.Get(ctx, tx, Table, gameID)
		if err != nil {
			return err
		}
		if g.Over() {
			return chesserr.State("game_already_finished", "game %d ended with %s", g.ID, g.Status)
		}
		color, ok := g.ColorOf(env.Sender)
		if !ok {
			return chesserr.Authorization("not_a_participant", "%s is not playing game %d", env.Sender, g.ID)
		}
		if g.BlockLimit == 0 {
			return chesserr.Clock("no_block_limit", "game %d has no block limit", g.ID)
		}
		if g.Turn == color {
			return chesserr.Authorization("own_clock", "the side to move cannot claim its own timeout")
		}
		if !g.Lapsed(g.Turn, env.Height) {
			return chesserr.Clock("clock_running", "%s has used %d of %d blocks", g.Turn, g.Elapsed(g.Turn, env.Height), g.BlockLimit)
		}
		if err := g.finish(StatusTimeout, color, "timeout", env.Height); err != nil {
			return err
		}
		out = g
		_, err = store.Put(tx, Table, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("chess_game_over",
		zap.Uint64("game_id", out.ID),
		zap.String("status", string(out.Status)),
		zap.String("winner", string(out.Winner)),
		zap.Uint64("height", env.Height),
	)
	return out, nil
}

func (g *Game) finish(to Status, winner domain.Color, method string, height uint64) error {
	if !g.Status.CanTransition(to) {
		return chesserr.State("game_already_finished", "game %d cannot move from %s to %s", g.ID, g.Status, to)
	}
	g.Status = to
	g.Winner = winner
	g.Method = method
	g.EndedAt = height
	g.DrawOffer = domain.NoColor
	return nil
}

func logTurn(env chain.Env, out *Outcome) {
	g := out.Game
	obslog.L().Info("chess_game_turn",
		zap.Uint64("game_id", g.ID),
		zap.String("sender", env.Sender),
		zap.String("action", out.Action.String()),
		zap.String("san", out.SAN),
		zap.String("uci", out.UCI),
		zap.Bool("timed_out", out.TimedOut),
		zap.Uint32("moves", g.Moves),
	)
	if g.Over() {
		obslog.L().Info("chess_game_over",
			zap.Uint64("game_id", g.ID),
			zap.String("status", string(g.Status)),
			zap.String("winner", string(g.Winner)),
			zap.String("method", g.Method),
			zap.Uint64("height", env.Height),
		)
	}
}
