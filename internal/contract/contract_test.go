package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/park285/onchain-chess/internal/chain"
	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/oracle"
	"github.com/park285/onchain-chess/internal/query"
	"github.com/park285/onchain-chess/internal/store"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

func newTestContract(t *testing.T) *Contract {
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
	return New(st, oracle.New(), query.DefaultLimits)
}

// execJSON decodes raw the way the node does, so the wire shape is covered.
func execJSON(t *testing.T, c *Contract, sender string, height uint64, raw string) *chessdto.Response {
	t.Helper()
	var msg chessdto.ExecuteMsg
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	resp, err := c.Execute(context.Background(), chain.Env{Sender: sender, Height: height}, msg)
	if err != nil {
		t.Fatalf("Execute %s as %s: %v", raw, sender, err)
	}
	return resp
}

func attr(t *testing.T, r *chessdto.Response, key string) string {
	t.Helper()
	v, ok := r.Get(key)
	if !ok {
		t.Fatalf("missing attribute %q in %+v", key, r.Attributes)
	}
	return v
}

func TestEndToEndResign(t *testing.T) {
	c := newTestContract(t)
	ctx := context.Background()

	created := execJSON(t, c, "A", 10, `{"create_challenge":{"opponent":"B","color":"white"}}`)
	if attr(t, created, "challenge_id") != "1" {
		t.Fatalf("challenge id %s", attr(t, created, "challenge_id"))
	}
	accepted := execJSON(t, c, "B", 11, `{"accept_challenge":{"challenge_id":1}}`)
	if attr(t, accepted, "white") != "A" || attr(t, accepted, "black") != "B" {
		t.Fatalf("colors %+v", accepted.Attributes)
	}

	res, err := c.Query(ctx, chessdto.QueryMsg{GetGame: &chessdto.IDQuery{ID: 1}})
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	g := res.(*chessdto.GameView)
	if g.Status != "ACTIVE" || g.FEN != oracle.StartFEN || g.TurnColor != "white" {
		t.Fatalf("fresh game %+v", g)
	}

	mv := execJSON(t, c, "A", 12, `{"turn":{"game_id":1,"action":{"move":{"move":"e4"}}}}`)
	if attr(t, mv, "move") != "e4" || attr(t, mv, "move_uci") != "e2e4" {
		t.Fatalf("move attr %+v", mv.Attributes)
	}
	res, _ = c.Query(ctx, chessdto.QueryMsg{GetGame: &chessdto.IDQuery{ID: 1}})
	if res.(*chessdto.GameView).TurnColor != "black" {
		t.Fatalf("turn after e4: %+v", res)
	}
	execJSON(t, c, "B", 13, `{"turn":{"game_id":1,"action":{"move":{"move":"e5"}}}}`)
	res, _ = c.Query(ctx, chessdto.QueryMsg{GetGame: &chessdto.IDQuery{ID: 1}})
	if res.(*chessdto.GameView).TurnColor != "white" {
		t.Fatalf("turn after e5: %+v", res)
	}

	resign := execJSON(t, c, "A", 14, `{"turn":{"game_id":1,"action":{"resign":{}}}}`)
	want := []chessdto.Attribute{
		{Key: "action", Value: "resign"},
		{Key: "game_id", Value: "1"},
		{Key: "status", Value: "RESIGNED"},
		{Key: "game_over", Value: "true"},
		{Key: "winner", Value: "B"},
	}
	if diff := cmp.Diff(want, resign.Attributes); diff != "" {
		t.Fatalf("resign attributes (-want +got):\n%s", diff)
	}
	res, _ = c.Query(ctx, chessdto.QueryMsg{GetGame: &chessdto.IDQuery{ID: 1}})
	final := res.(*chessdto.GameView)
	if final.Status != "RESIGNED" || final.Winner != "black" || final.Moves != 2 {
		t.Fatalf("final %+v", final)
	}
}

func TestExecuteRejectsAmbiguousMessages(t *testing.T) {
	c := newTestContract(t)
	ctx := context.Background()
	env := chain.Env{Sender: "A", Height: 1}

	_, err := c.Execute(ctx, env, chessdto.ExecuteMsg{})
	if !errors.Is(err, &chesserr.Error{Kind: chesserr.KindValidation, Code: "invalid_message"}) {
		t.Fatalf("empty message: %v", err)
	}
	_, err = c.Execute(ctx, env, chessdto.ExecuteMsg{
		Turn: &chessdto.Turn{GameID: 1, Action: chessdto.Action{Resign: &struct{}{}, AcceptDraw: &struct{}{}}},
	})
	if !errors.Is(err, chesserr.ErrValidation) {
		t.Fatalf("two actions: %v", err)
	}
	_, err = c.Query(ctx, chessdto.QueryMsg{})
	if !errors.Is(err, chesserr.ErrValidation) {
		t.Fatalf("empty query: %v", err)
	}
}

func TestSecondAcceptCreatesNoGame(t *testing.T) {
	c := newTestContract(t)
	ctx := context.Background()
	execJSON(t, c, "A", 1, `{"create_challenge":{}}`)
	execJSON(t, c, "B", 2, `{"accept_challenge":{"challenge_id":1}}`)

	var msg chessdto.ExecuteMsg
	_ = json.Unmarshal([]byte(`{"accept_challenge":{"challenge_id":1}}`), &msg)
	if _, err := c.Execute(ctx, chain.Env{Sender: "C", Height: 3}, msg); !errors.Is(err, chesserr.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
	res, err := c.Query(ctx, chessdto.QueryMsg{GetGames: &chessdto.GamesQuery{}})
	if err != nil {
		t.Fatalf("GetGames: %v", err)
	}
	if n := len(res.(*chessdto.Page[chessdto.GameSummary]).Items); n != 1 {
		t.Fatalf("games=%d", n)
	}
}

func TestTimeoutAttributes(t *testing.T) {
	c := newTestContract(t)
	execJSON(t, c, "A", 1, `{"create_challenge":{"opponent":"B","color":"black","block_limit":3}}`)
	execJSON(t, c, "B", 1, `{"accept_challenge":{"challenge_id":1}}`)

	resp := execJSON(t, c, "B", 9, `{"turn":{"game_id":1,"action":{"offer_draw":{"move":"d4"}}}}`)
	if attr(t, resp, "timed_out") != "true" || attr(t, resp, "status") != "TIMEOUT" || attr(t, resp, "winner") != "A" {
		t.Fatalf("attributes %+v", resp.Attributes)
	}
}

func TestDeclareTimeoutMessage(t *testing.T) {
	c := newTestContract(t)
	execJSON(t, c, "A", 1, `{"create_challenge":{"opponent":"B","color":"white","block_limit":2}}`)
	execJSON(t, c, "B", 1, `{"accept_challenge":{"challenge_id":1}}`)

	resp := execJSON(t, c, "B", 4, `{"declare_timeout":{"game_id":1}}`)
	if attr(t, resp, "status") != "TIMEOUT" || attr(t, resp, "winner") != "B" {
		t.Fatalf("attributes %+v", resp.Attributes)
	}
}
