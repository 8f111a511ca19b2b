// Package node hosts the contract as a single-validator devnet: it orders
// calls, stamps them with block height and transaction index, and exposes
// them over HTTP with a websocket event feed.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/onchain-chess/internal/chain"
	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/contract"
	"github.com/park285/onchain-chess/internal/domain"
	"github.com/park285/onchain-chess/internal/game"
	"github.com/park285/onchain-chess/internal/msgcat"
	"github.com/park285/onchain-chess/internal/obslog"
	"github.com/park285/onchain-chess/internal/store"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

const metaHeight = "height"

var txNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("onchain-chess/tx"))

// Archiver receives every game that a committed call finished, with its
// SAN moves.
type Archiver interface {
	SaveResult(ctx context.Context, g *game.Game, moves []string) error
}

type Options struct {
	ChainID       string
	GenesisHeight uint64
	Archive       Archiver
	Messages      *msgcat.Catalog
	Hub           *Hub
}

// Chain serializes calls into blocks. All calls in one block share a
// height and get increasing transaction indexes.
type Chain struct {
	mu      sync.Mutex
	height  uint64
	txIndex uint32

	store    *store.Store
	contract *contract.Contract
	chainID  string
	archive  Archiver
	msgs     *msgcat.Catalog
	hub      *Hub
}

// NewChain resumes from the last persisted height, or from genesis.
func NewChain(ctx context.Context, st *store.Store, c *contract.Contract, opts Options) (*Chain, error) {
	h, err := st.Meta(ctx, metaHeight)
	if err != nil {
		return nil, fmt.Errorf("read height: %w", err)
	}
	if h < opts.GenesisHeight {
		h = opts.GenesisHeight
		if err := st.SetMeta(ctx, metaHeight, h); err != nil {
			return nil, fmt.Errorf("write height: %w", err)
		}
	}
	return &Chain{
		height:   h,
		store:    st,
		contract: c,
		chainID:  opts.ChainID,
		archive:  opts.Archive,
		msgs:     opts.Messages,
		hub:      opts.Hub,
	}, nil
}

func (ch *Chain) Height() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.height
}

func (ch *Chain) Status() chessdto.NodeStatus {
	return chessdto.NodeStatus{Height: ch.Height(), ChainID: ch.chainID}
}

// Advance closes the current block.
func (ch *Chain) Advance(ctx context.Context) (uint64, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	next := ch.height + 1
	if err := ch.store.SetMeta(ctx, metaHeight, next); err != nil {
		return ch.height, err
	}
	ch.height = next
	ch.txIndex = 0
	return next, nil
}

// Run produces a block every interval until ctx is done.
func (ch *Chain) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := ch.Advance(ctx); err != nil && ctx.Err() == nil {
				obslog.L().Warn("chess_block_advance_failed", zap.Error(err))
			}
		}
	}
}

// Execute runs msg as sender in the current block. A rejected call still
// consumes its transaction index and is reported through TxResult.Error.
func (ch *Chain) Execute(ctx context.Context, sender string, msg chessdto.ExecuteMsg) chessdto.TxResult {
	body, _ := json.Marshal(msg)

	ch.mu.Lock()
	env := chain.Env{Height: ch.height, TxIndex: ch.txIndex, Sender: domain.NormalizeAddress(sender)}
	ch.txIndex++
	resp, err := ch.contract.Execute(ctx, env, msg)
	ch.mu.Unlock()

	res := chessdto.TxResult{
		TxHash:  txHash(ch.chainID, env, body),
		Height:  env.Height,
		TxIndex: env.TxIndex,
		Sender:  env.Sender,
	}
	if err != nil {
		res.Error = ch.domainError(err)
		obslog.L().Info("chess_tx_rejected",
			zap.String("tx", res.TxHash),
			zap.String("sender", env.Sender),
			zap.String("code", res.Error.Code),
			zap.Error(err),
		)
	} else {
		res.Attributes = resp.Attributes
		if over, _ := resp.Get("game_over"); over == "true" {
			ch.archiveGame(ctx, resp)
		}
	}
	if ch.hub != nil {
		ch.hub.Publish(res)
	}
	return res
}

func (ch *Chain) Query(ctx context.Context, msg chessdto.QueryMsg) (any, error) {
	return ch.contract.Query(ctx, msg)
}

// DomainError renders err for the wire.
func (ch *Chain) DomainError(err error) *chessdto.DomainError { return ch.domainError(err) }

func (ch *Chain) domainError(err error) *chessdto.DomainError {
	de, ok := chesserr.As(err)
	if !ok {
		obslog.L().Error("chess_internal_error", zap.Error(err))
		return &chessdto.DomainError{
			Kind:    string(chesserr.KindInternal),
			Code:    "internal",
			Message: ch.msgs.RenderOr("errors.internal", nil, "internal error"),
		}
	}
	data := map[string]any{"Code": de.Code, "Message": de.Message}
	return &chessdto.DomainError{
		Kind:      string(de.Kind),
		Code:      de.Code,
		Message:   ch.msgs.RenderOr("errors."+de.Code, data, de.Message),
		Retryable: de.Retryable,
	}
}

// archiveGame is best effort: the call has already committed.
func (ch *Chain) archiveGame(ctx context.Context, resp *chessdto.Response) {
	if ch.archive == nil {
		return
	}
	raw, _ := resp.Get("game_id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return
	}
	g, err := store.Get(ctx, ch.store, game.Table, id)
	if err == nil {
		var moves []string
		if moves, err = game.LoadMoves(ctx, ch.store, id); err == nil {
			err = ch.archive.SaveResult(ctx, g, moves)
		}
	}
	if err != nil {
		obslog.L().Warn("chess_archive_failed", zap.Uint64("game_id", id), zap.Error(err))
	}
}

func txHash(chainID string, env chain.Env, body []byte) string {
	name := fmt.Sprintf("%s/%d/%d/%s/", chainID, env.Height, env.TxIndex, env.Sender)
	return uuid.NewSHA1(txNamespace, append([]byte(name), body...)).String()
}
