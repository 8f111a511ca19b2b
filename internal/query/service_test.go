package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/park285/onchain-chess/internal/chain"
	"github.com/park285/onchain-chess/internal/challenge"
	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/game"
	"github.com/park285/onchain-chess/internal/oracle"
	"github.com/park285/onchain-chess/internal/store"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

type fixture struct {
	st  *store.Store
	reg *challenge.Registry
	eng *game.Engine
	svc *Service
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	st, err := store.Open(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), "test")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return &fixture{
		st:  st,
		reg: challenge.NewRegistry(st),
		eng: game.NewEngine(st, oracle.New()),
		svc: NewService(st, limits),
	}
}

func (f *fixture) challenge(t *testing.T, creator, opponent, color string) uint64 {
	t.Helper()
	id, err := f.reg.Create(context.Background(), chain.Env{Sender: creator, Height: 1}, challenge.CreateParams{Opponent: opponent, Color: color})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func (f *fixture) play(t *testing.T, creator, acceptor string) *game.Game {
	t.Helper()
	id := f.challenge(t, creator, "", "white")
	g, err := f.reg.Accept(context.Background(), chain.Env{Sender: acceptor, Height: 2}, id)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return g
}

func challengeIDs(p *chessdto.Page[chessdto.ChallengeView]) []uint64 {
	out := []uint64{}
	for _, c := range p.Items {
		out = append(out, c.ID)
	}
	return out
}

func gameIDs(p *chessdto.Page[chessdto.GameSummary]) []uint64 {
	out := []uint64{}
	for _, g := range p.Items {
		out = append(out, g.ID)
	}
	return out
}

func TestClosedChallengesLeaveOpenListing(t *testing.T) {
	f := newFixture(t, DefaultLimits)
	ctx := context.Background()
	a := f.challenge(t, "alice", "", "")
	b := f.challenge(t, "alice", "bob", "")
	c := f.challenge(t, "carol", "", "")

	first, err := f.svc.GetChallenges(ctx, ChallengeFilter{Status: "open"}, 0, 0)
	if err != nil {
		t.Fatalf("GetChallenges: %v", err)
	}
	if diff := cmp.Diff([]uint64{a, b, c}, challengeIDs(first)); diff != "" {
		t.Fatalf("open (-want +got):\n%s", diff)
	}

	if _, err := f.reg.Accept(ctx, chain.Env{Sender: "bob", Height: 3}, b); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := f.reg.Cancel(ctx, chain.Env{Sender: "alice", Height: 3}, a); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	again, _ := f.svc.GetChallenges(ctx, ChallengeFilter{Status: "OPEN"}, 0, 0)
	if diff := cmp.Diff([]uint64{c}, challengeIDs(again)); diff != "" {
		t.Fatalf("open after closing (-want +got):\n%s", diff)
	}
	tail, _ := f.svc.GetChallenges(ctx, ChallengeFilter{Status: "OPEN"}, a, 0)
	if diff := cmp.Diff([]uint64{c}, challengeIDs(tail)); diff != "" {
		t.Fatalf("open after cursor (-want +got):\n%s", diff)
	}
}

func TestChallengesByPlayerMergesCreatorAndOpponent(t *testing.T) {
	f := newFixture(t, DefaultLimits)
	ctx := context.Background()
	f.challenge(t, "alice", "", "")
	toBob := f.challenge(t, "carol", "bob", "")
	f.challenge(t, "dave", "", "")
	byBob := f.challenge(t, "bob", "", "")

	page, err := f.svc.GetChallenges(ctx, ChallengeFilter{Player: "bob"}, 0, 0)
	if err != nil {
		t.Fatalf("GetChallenges: %v", err)
	}
	if diff := cmp.Diff([]uint64{toBob, byBob}, challengeIDs(page)); diff != "" {
		t.Fatalf("bob's challenges (-want +got):\n%s", diff)
	}

	_ = f.reg.Cancel(ctx, chain.Env{Sender: "bob", Height: 4}, byBob)
	open, _ := f.svc.GetChallenges(ctx, ChallengeFilter{Player: "bob", Status: "open"}, 0, 0)
	if diff := cmp.Diff([]uint64{toBob}, challengeIDs(open)); diff != "" {
		t.Fatalf("bob's open challenges (-want +got):\n%s", diff)
	}
}

func TestGetGamesChainedPagesReturnEachOnce(t *testing.T) {
	f := newFixture(t, Limits{Default: 3, Max: 4})
	ctx := context.Background()
	var want []uint64
	for i := 0; i < 10; i++ {
		want = append(want, f.play(t, "alice", "bob").ID)
	}

	var got []uint64
	after := uint64(0)
	for pages := 0; pages < 20; pages++ {
		page, err := f.svc.GetGames(ctx, GameFilter{}, after, 50)
		if err != nil {
			t.Fatalf("GetGames: %v", err)
		}
		if len(page.Items) > 4 {
			t.Fatalf("page of %d exceeds max", len(page.Items))
		}
		for _, id := range gameIDs(page) {
			if id <= after {
				t.Fatalf("id %d not after cursor %d", id, after)
			}
		}
		got = append(got, gameIDs(page)...)
		if page.Next == 0 {
			break
		}
		after = page.Next
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chained pages (-want +got):\n%s", diff)
	}
}

func TestPlayerGamesMergeColors(t *testing.T) {
	f := newFixture(t, DefaultLimits)
	ctx := context.Background()
	g1 := f.play(t, "alice", "bob")
	f.play(t, "carol", "dave")
	g3 := f.play(t, "bob", "alice")

	page, err := f.svc.GetPlayerGames(ctx, "alice", nil, 0, 0)
	if err != nil {
		t.Fatalf("GetPlayerGames: %v", err)
	}
	if diff := cmp.Diff([]uint64{g1.ID, g3.ID}, gameIDs(page)); diff != "" {
		t.Fatalf("alice's games (-want +got):\n%s", diff)
	}
	if page.Items[0].White != "alice" || page.Items[1].Black != "alice" {
		t.Fatalf("colors: %+v", page.Items)
	}

	one, _ := f.svc.GetPlayerGames(ctx, "alice", nil, 0, 1)
	if diff := cmp.Diff([]uint64{g1.ID}, gameIDs(one)); diff != "" || one.Next != g1.ID {
		t.Fatalf("first page %v next=%d", gameIDs(one), one.Next)
	}
	two, _ := f.svc.GetPlayerGames(ctx, "alice", nil, one.Next, 1)
	if diff := cmp.Diff([]uint64{g3.ID}, gameIDs(two)); diff != "" {
		t.Fatalf("second page (-want +got):\n%s", diff)
	}

	if _, err := f.svc.GetPlayerGames(ctx, " ", nil, 0, 0); !errors.Is(err, chesserr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGameOverFilterAndSummary(t *testing.T) {
	f := newFixture(t, DefaultLimits)
	ctx := context.Background()
	done := f.play(t, "alice", "bob")
	live := f.play(t, "alice", "carol")
	if _, err := f.eng.Turn(ctx, chain.Env{Sender: "bob", Height: 3}, done.ID, game.Resign()); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	over := true
	page, _ := f.svc.GetGames(ctx, GameFilter{GameOver: &over}, 0, 0)
	if diff := cmp.Diff([]chessdto.GameSummary{{
		ID: done.ID, White: "alice", Black: "bob", Status: "RESIGNED", Winner: "white", StartHeight: 2,
	}}, page.Items); diff != "" {
		t.Fatalf("finished games (-want +got):\n%s", diff)
	}

	active := false
	page, _ = f.svc.GetPlayerGames(ctx, "alice", &active, 0, 0)
	if diff := cmp.Diff([]uint64{live.ID}, gameIDs(page)); diff != "" {
		t.Fatalf("alice active (-want +got):\n%s", diff)
	}
	if page.Items[0].TurnColor != "white" {
		t.Fatalf("turn color=%q", page.Items[0].TurnColor)
	}
}

func TestDetailAndLimits(t *testing.T) {
	f := newFixture(t, DefaultLimits)
	ctx := context.Background()
	g := f.play(t, "alice", "bob")

	v, err := f.svc.GetGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if v.FEN != oracle.StartFEN || v.ChallengeID != g.ChallengeID || v.WhiteClock != 2 {
		t.Fatalf("view %+v", v)
	}
	c, err := f.svc.GetChallenge(ctx, g.ChallengeID)
	if err != nil || c.Status != "ACCEPTED" || c.GameID != g.ID {
		t.Fatalf("challenge view %+v, %v", c, err)
	}

	if _, err := f.svc.GetGame(ctx, 99); !errors.Is(err, chesserr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.GetGames(ctx, GameFilter{}, 0, -1); !errors.Is(err, chesserr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.GetChallenges(ctx, ChallengeFilter{Status: "pending"}, 0, 0); !errors.Is(err, chesserr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPlaceholderOpponentIsNotAPlayer(t *testing.T) {
	f := newFixture(t, DefaultLimits)
	ctx := context.Background()
	f.challenge(t, "alice", "", "")
	f.challenge(t, "carol", "", "")

	_, err := f.svc.GetChallenges(ctx, ChallengeFilter{Player: " * "}, 0, 0)
	if !errors.Is(err, &chesserr.Error{Kind: chesserr.KindValidation, Code: "invalid_player"}) {
		t.Fatalf("expected invalid_player, got %v", err)
	}
	_, err = f.svc.GetChallenges(ctx, ChallengeFilter{Player: "*", Status: "open"}, 0, 0)
	if !errors.Is(err, &chesserr.Error{Kind: chesserr.KindValidation, Code: "invalid_player"}) {
		t.Fatalf("expected invalid_player with status, got %v", err)
	}
}

func TestGameViewListsMoves(t *testing.T) {
	f := newFixture(t, DefaultLimits)
	ctx := context.Background()
	g := f.play(t, "alice", "bob")
	for i, mv := range []string{"e4", "e5", "Nf3"} {
		sender := []string{"alice", "bob"}[i%2]
		if _, err := f.eng.Turn(ctx, chain.Env{Sender: sender, Height: uint64(3 + i)}, g.ID, game.Move(mv)); err != nil {
			t.Fatalf("Turn %s: %v", mv, err)
		}
	}
	v, err := f.svc.GetGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if diff := cmp.Diff([]string{"e4", "e5", "Nf3"}, v.History); diff != "" {
		t.Fatalf("history (-want +got):\n%s", diff)
	}
	if v.LastMove != "Nf3" || v.Moves != 3 {
		t.Fatalf("view %+v", v)
	}
}
