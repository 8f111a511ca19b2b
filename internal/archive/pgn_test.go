package archive

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/park285/onchain-chess/internal/domain"
	"github.com/park285/onchain-chess/internal/game"
)

var foolsMate = []string{"f3", "e5", "g4", "Qh4#"}

func finishedGame() *game.Game {
	return &game.Game{
		ID:        7,
		White:     "alice",
		Black:     `bo"b`,
		FEN:       "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		Status:    game.StatusCheckmate,
		Winner:    domain.Black,
		Method:    "checkmate",
		StartedAt: 10,
		EndedAt:   14,
	}
}

func TestBuildPGN(t *testing.T) {
	got := BuildPGN(finishedGame(), foolsMate, Header{Event: "test", Site: "devnet"})
	want := strings.Join([]string{
		`[Event "test"]`,
		`[Site "devnet"]`,
		`[Round "7"]`,
		`[White "alice"]`,
		`[Black "bo'b"]`,
		`[Result "0-1"]`,
		`[StartHeight "10"]`,
		`[EndHeight "14"]`,
		`[Termination "checkmate"]`,
		`[FinalFEN "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"]`,
		``,
		`1. f3 e5 2. g4 Qh4# 0-1`,
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pgn (-want +got):\n%s", diff)
	}
}

func TestResultToken(t *testing.T) {
	g := finishedGame()
	if ResultToken(g) != "black" {
		t.Fatalf("got %q", ResultToken(g))
	}
	g.Status, g.Winner = game.StatusStalemate, domain.NoColor
	if ResultToken(g) != "draw" {
		t.Fatalf("got %q", ResultToken(g))
	}
	g.Status = game.StatusActive
	if ResultToken(g) != "" || !strings.HasSuffix(BuildPGN(g, nil, Header{}), " *") {
		t.Fatalf("active game rendered as finished")
	}
}

// Runs against a real database only when one is provided.
func TestSaveResultPostgres(t *testing.T) {
	url := os.Getenv("CHESSD_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHESSD_TEST_DATABASE_URL not set")
	}
	repo, err := NewRepository(url, "test")
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	g := finishedGame()
	g.ID = 1<<40 + 7
	ctx := context.Background()
	if err := repo.SaveResult(ctx, g, foolsMate); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	// second save is an upsert
	if err := repo.SaveResult(ctx, g, foolsMate); err != nil {
		t.Fatalf("SaveResult again: %v", err)
	}
	var pgn string
	if err := repo.db.QueryRowContext(ctx, `SELECT pgn FROM chess_games WHERE game_id=$1`, int64(g.ID)).Scan(&pgn); err != nil {
		t.Fatalf("select: %v", err)
	}
	if !strings.HasSuffix(pgn, "0-1") {
		t.Fatalf("pgn %q", pgn)
	}
	_, _ = repo.db.ExecContext(ctx, `DELETE FROM chess_games WHERE game_id=$1`, int64(g.ID))
}
