package challenge

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/onchain-chess/internal/chain"
	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/domain"
	"github.com/park285/onchain-chess/internal/game"
	"github.com/park285/onchain-chess/internal/obslog"
	"github.com/park285/onchain-chess/internal/store"
)

type Registry struct {
	store *store.Store
}

func NewRegistry(st *store.Store) *Registry { return &Registry{store: st} }

// CreateParams are the creator-supplied terms of a challenge.
type CreateParams struct {
	// Opponent restricts who may accept; empty means anyone.
	Opponent string
	// Color is the creator's preference: white, black or random (default).
	Color string
	// BlockLimit, when set, must be positive.
	BlockLimit *int64
}

// Create files a new OPEN challenge from env.Sender and returns its id.
func (r *Registry) Create(ctx context.Context, env chain.Env, p CreateParams) (uint64, error) {
	creator := domain.NormalizeAddress(env.Sender)
	if creator == "" {
		return 0, chesserr.Validation("invalid_sender", "sender address is required")
	}
	opponent := domain.NormalizeAddress(p.Opponent)
	if opponent == creator {
		return 0, chesserr.Validation("invalid_opponent", "cannot challenge yourself")
	}
	if opponent == AnyOpponent {
		return 0, chesserr.Validation("invalid_opponent", "%q is not an address", opponent)
	}
	color, ok := domain.ParseColorChoice(p.Color)
	if !ok {
		return 0, chesserr.Validation("invalid_color", "unknown color preference %q", p.Color)
	}
	var limit uint64
	if p.BlockLimit != nil {
		if *p.BlockLimit <= 0 {
			return 0, chesserr.Validation("invalid_block_limit", "block limit must be positive, got %d", *p.BlockLimit)
		}
		limit = uint64(*p.BlockLimit)
	}

	c := &Challenge{
		Creator:       creator,
		Opponent:      opponent,
		Color:         color,
		BlockLimit:    limit,
		Status:        StatusOpen,
		CreatedHeight: env.Height,
	}
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		_, err := store.Put(tx, Table, c)
		return err
	})
	if err != nil {
		return 0, err
	}
	obslog.L().Info("chess_challenge_create",
		zap.Uint64("challenge_id", c.ID),
		zap.String("creator", c.Creator),
		zap.String("opponent", c.Opponent),
		zap.String("color", string(c.Color)),
		zap.Uint64("block_limit", c.BlockLimit),
	)
	return c.ID, nil
}

// Accept closes an OPEN challenge and starts its game in the same commit.
func (r *Registry) Accept(ctx context.Context, env chain.Env, id uint64) (*game.Game, error) {
	acceptor := domain.NormalizeAddress(env.Sender)
	if acceptor == "" {
		return nil, chesserr.Validation("invalid_sender", "sender address is required")
	}
	var started *game.Game
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		c, err := store.Get(ctx, tx, Table, id)
		if err != nil {
			return err
		}
		if !c.Status.CanTransition(StatusAccepted) {
			return chesserr.State("challenge_not_open", "challenge %d is %s", c.ID, c.Status)
		}
		if acceptor == c.Creator {
			return chesserr.Authorization("own_challenge", "cannot accept your own challenge")
		}
		if c.Opponent != "" && acceptor != c.Opponent {
			return chesserr.Authorization("not_your_challenge", "challenge %d is reserved for another player", c.ID)
		}

		white, black := assignColors(c, acceptor, env)
		g, err := game.Start(tx, env, c.ID, white, black, c.BlockLimit)
		if err != nil {
			return err
		}
		c.Status = StatusAccepted
		c.ClosedHeight = env.Height
		c.GameID = g.ID
		if _, err := store.Put(tx, Table, c); err != nil {
			return err
		}
		started = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("chess_challenge_accept",
		zap.Uint64("challenge_id", id),
		zap.Uint64("game_id", started.ID),
		zap.String("white", started.White),
		zap.String("black", started.Black),
	)
	return started, nil
}

// Cancel withdraws an OPEN challenge. Only its creator may do so.
func (r *Registry) Cancel(ctx context.Context, env chain.Env, id uint64) error {
	caller := domain.NormalizeAddress(env.Sender)
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		c, err := store.Get(ctx, tx, Table, id)
		if err != nil {
			return err
		}
		if caller != c.Creator {
			return chesserr.Authorization("not_your_challenge", "only the creator can cancel challenge %d", c.ID)
		}
		if !c.Status.CanTransition(StatusCanceled) {
			return chesserr.State("challenge_not_open", "challenge %d is %s", c.ID, c.Status)
		}
		c.Status = StatusCanceled
		c.ClosedHeight = env.Height
		_, err = store.Put(tx, Table, c)
		return err
	})
	if err != nil {
		return err
	}
	obslog.L().Info("chess_challenge_cancel", zap.Uint64("challenge_id", id), zap.String("creator", caller))
	return nil
}

// assignColors resolves the creator's preference. Random uses the chain
// entropy of the accepting call: fair against a casual creator, not against
// a block producer.
func assignColors(c *Challenge, acceptor string, env chain.Env) (white, black string) {
	switch c.Color {
	case domain.ColorWhite:
		return c.Creator, acceptor
	case domain.ColorBlack:
		return acceptor, c.Creator
	}
	if env.Entropy()%2 == 0 {
		return c.Creator, acceptor
	}
	return acceptor, c.Creator
}
