// Package query serves read-only projections of challenges and games.
package query

import (
	"context"
	"sort"

	"github.com/park285/onchain-chess/internal/challenge"
	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/domain"
	"github.com/park285/onchain-chess/internal/game"
	"github.com/park285/onchain-chess/internal/store"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

// Limits bound the size of a page.
type Limits struct {
	Default int
	Max     int
}

var DefaultLimits = Limits{Default: 10, Max: 100}

type Service struct {
	store  *store.Store
	limits Limits
}

func NewService(st *store.Store, limits Limits) *Service {
	if limits.Default <= 0 {
		limits.Default = DefaultLimits.Default
	}
	if limits.Max < limits.Default {
		limits.Max = limits.Default
	}
	return &Service{store: st, limits: limits}
}

type ChallengeFilter struct {
	Status string
	Player string
}

type GameFilter struct {
	Player   string
	GameOver *bool
}

func (s *Service) GetChallenge(ctx context.Context, id uint64) (*chessdto.ChallengeView, error) {
	c, err := store.Get(ctx, s.store, challenge.Table, id)
	if err != nil {
		return nil, err
	}
	v := challengeView(c)
	return &v, nil
}

func (s *Service) GetGame(ctx context.Context, id uint64) (*chessdto.GameView, error) {
	g, err := store.Get(ctx, s.store, game.Table, id)
	if err != nil {
		return nil, err
	}
	moves, err := game.LoadMoves(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	v := gameView(g, moves)
	return &v, nil
}

// GetChallenges pages challenges. A player filter matches both the
// creator and the named opponent.
func (s *Service) GetChallenges(ctx context.Context, f ChallengeFilter, after uint64, limit int) (*chessdto.Page[chessdto.ChallengeView], error) {
	n, err := s.pageSize(limit)
	if err != nil {
		return nil, err
	}
	player := domain.NormalizeAddress(f.Player)
	if player == challenge.AnyOpponent {
		return nil, chesserr.Validation("invalid_player", "%q is not an address", player)
	}
	var status challenge.Status
	if f.Status != "" {
		st, ok := challenge.ParseStatus(f.Status)
		if !ok {
			return nil, chesserr.Validation("invalid_status", "unknown challenge status %q", f.Status)
		}
		status = st
	}

	var scans []scan
	switch {
	case player != "" && status != "":
		scans = []scan{{"creator_status", player + "|" + string(status)}, {"opponent_status", player + "|" + string(status)}}
	case player != "":
		scans = []scan{{"creator", player}, {"opponent", player}}
	case status != "":
		scans = []scan{{"status", string(status)}}
	default:
		scans = []scan{{store.AllIndex, ""}}
	}
	ids, err := merged(ctx, s.store, challenge.Table, scans, after, n)
	if err != nil {
		return nil, err
	}
	recs, err := store.Load(ctx, s.store, challenge.Table, ids)
	if err != nil {
		return nil, err
	}
	page := &chessdto.Page[chessdto.ChallengeView]{Items: make([]chessdto.ChallengeView, 0, len(recs))}
	for _, c := range recs {
		page.Items = append(page.Items, challengeView(c))
	}
	page.Next = nextCursor(ids, n)
	return page, nil
}

// GetGames pages game summaries, optionally for one player and/or by
// whether the game is over.
func (s *Service) GetGames(ctx context.Context, f GameFilter, after uint64, limit int) (*chessdto.Page[chessdto.GameSummary], error) {
	n, err := s.pageSize(limit)
	if err != nil {
		return nil, err
	}
	player := domain.NormalizeAddress(f.Player)
	state := ""
	if f.GameOver != nil {
		state = "active"
		if *f.GameOver {
			state = "over"
		}
	}

	var scans []scan
	switch {
	case player != "" && state != "":
		scans = []scan{{"white_state", player + "|" + state}, {"black_state", player + "|" + state}}
	case player != "":
		scans = []scan{{"white", player}, {"black", player}}
	case state != "":
		scans = []scan{{"state", state}}
	default:
		scans = []scan{{store.AllIndex, ""}}
	}
	ids, err := merged(ctx, s.store, game.Table, scans, after, n)
	if err != nil {
		return nil, err
	}
	recs, err := store.Load(ctx, s.store, game.Table, ids)
	if err != nil {
		return nil, err
	}
	page := &chessdto.Page[chessdto.GameSummary]{Items: make([]chessdto.GameSummary, 0, len(recs))}
	for _, g := range recs {
		page.Items = append(page.Items, gameSummary(g))
	}
	page.Next = nextCursor(ids, n)
	return page, nil
}

// GetPlayerGames is GetGames with a mandatory player.
func (s *Service) GetPlayerGames(ctx context.Context, address string, gameOver *bool, after uint64, limit int) (*chessdto.Page[chessdto.GameSummary], error) {
	if domain.NormalizeAddress(address) == "" {
		return nil, chesserr.Validation("invalid_address", "address is required")
	}
	return s.GetGames(ctx, GameFilter{Player: address, GameOver: gameOver}, after, limit)
}

func (s *Service) pageSize(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, chesserr.Validation("invalid_limit", "limit must not be negative")
	case limit == 0:
		return s.limits.Default, nil
	case limit > s.limits.Max:
		return s.limits.Max, nil
	default:
		return limit, nil
	}
}

type scan struct {
	index string
	value string
}

// merged unions several index scans into one ascending page. Taking limit
// ids from every scan is enough: the first limit ids of the union are
// among the first limit ids of some scan.
func merged[T any](ctx context.Context, st *store.Store, t *store.Table[T], scans []scan, after uint64, limit int) ([]uint64, error) {
	if len(scans) == 1 {
		return store.Range(ctx, st, t, scans[0].index, scans[0].value, after, limit)
	}
	seen := make(map[uint64]struct{})
	var all []uint64
	for _, sc := range scans {
		ids, err := store.Range(ctx, st, t, sc.index, sc.value, after, limit)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			all = append(all, id)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func nextCursor(ids []uint64, limit int) uint64 {
	if len(ids) < limit || len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1]
}
