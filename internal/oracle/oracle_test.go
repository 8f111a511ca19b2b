package oracle

import (
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/internal/domain"
)

func TestApplyMatchesContinuousGame(t *testing.T) {
	seq := []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Ba4", "Nf6", "O-O", "Be7"}
	o := New()

	ref := nchess.NewGame()
	fen := StartFEN
	for _, mv := range seq {
		if err := ref.PushNotationMove(mv, nchess.AlgebraicNotation{}, nil); err != nil {
			t.Fatalf("reference push %s: %v", mv, err)
		}
		res, err := o.Apply(fen, mv)
		if err != nil {
			t.Fatalf("Apply %s: %v", mv, err)
		}
		if res.Status != InProgress {
			t.Fatalf("status after %s = %s", mv, res.Status)
		}
		fen = res.FEN
		if fen != ref.FEN() {
			t.Fatalf("drift after %s:\n got %s\nwant %s", mv, fen, ref.FEN())
		}
	}
}

func TestApplyAcceptsUCI(t *testing.T) {
	res, err := New().Apply(StartFEN, "e2e4")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.SAN != "e4" || res.UCI != "e2e4" {
		t.Fatalf("san=%q uci=%q", res.SAN, res.UCI)
	}
	if !strings.Contains(res.FEN, " b KQkq ") {
		t.Fatalf("black should be to move: %s", res.FEN)
	}
}

func TestApplyRejectsIllegal(t *testing.T) {
	for _, mv := range []string{"e5", "Ke2", "zz9", "   "} {
		_, err := New().Apply(StartFEN, mv)
		if !errors.Is(err, chesserr.ErrRule) {
			t.Fatalf("%q: expected illegal move, got %v", mv, err)
		}
	}
}

func TestApplyCorruptPositionIsInternal(t *testing.T) {
	_, err := New().Apply("not a fen", "e4")
	if err == nil {
		t.Fatalf("expected error")
	}
	if chesserr.KindOf(err) != chesserr.KindInternal {
		t.Fatalf("kind=%s", chesserr.KindOf(err))
	}
}

func TestApplyDetectsCheckmate(t *testing.T) {
	o := New()
	fen := StartFEN
	var res Result
	var err error
	for _, mv := range []string{"f3", "e5", "g4", "Qh4"} {
		res, err = o.Apply(fen, mv)
		if err != nil {
			t.Fatalf("Apply %s: %v", mv, err)
		}
		fen = res.FEN
	}
	if res.Status != Checkmate || res.Winner != domain.Black {
		t.Fatalf("status=%s winner=%s", res.Status, res.Winner)
	}
}

func TestApplyDetectsStalemate(t *testing.T) {
	res, err := New().Apply("7k/4Q3/6K1/8/8/8/8/8 w - - 0 1", "Qf7")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Status != Stalemate {
		t.Fatalf("status=%s", res.Status)
	}
	if res.Winner != domain.NoColor {
		t.Fatalf("stalemate has no winner, got %s", res.Winner)
	}
}

func TestApplyDetectsInsufficientMaterial(t *testing.T) {
	res, err := New().Apply("8/8/8/8/8/2k5/1r6/K1B5 w - - 0 1", "c1b2")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Status != DrawByRule {
		t.Fatalf("status=%s method=%s", res.Status, res.Method)
	}
}
