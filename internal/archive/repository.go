// Package archive copies finished games into Postgres as flat rows with a
// PGN rendering, for analysis outside the chain state.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/onchain-chess/internal/game"
)

const schema = `CREATE TABLE IF NOT EXISTS chess_games (
	game_id       BIGINT PRIMARY KEY,
	challenge_id  BIGINT NOT NULL,
	chain_id      TEXT NOT NULL,
	white         TEXT NOT NULL,
	black         TEXT NOT NULL,
	status        TEXT NOT NULL,
	result        TEXT NOT NULL,
	method        TEXT NOT NULL DEFAULT '',
	block_limit   BIGINT NOT NULL DEFAULT 0,
	moves_san     JSONB NOT NULL,
	final_fen     TEXT NOT NULL,
	pgn           TEXT NOT NULL,
	start_height  BIGINT NOT NULL,
	end_height    BIGINT NOT NULL,
	archived_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Repository struct {
	db      *sql.DB
	chainID string
}

func NewRepository(databaseURL, chainID string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create chess_games: %w", err)
	}
	return &Repository{db: db, chainID: chainID}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game with its SAN moves. Active games are
// ignored.
func (r *Repository) SaveResult(ctx context.Context, g *game.Game, moves []string) error {
	if r == nil || r.db == nil || g == nil || !g.Over() {
		return nil
	}
	result := ResultToken(g)
	movesRaw, err := json.Marshal(sanList(moves))
	if err != nil {
		return err
	}
	pgn := BuildPGN(g, moves, Header{Event: "On-chain challenge", Site: r.chainID})

	q := `INSERT INTO chess_games (
		game_id, challenge_id, chain_id, white, black,
		status, result, method, block_limit, moves_san,
		final_fen, pgn, start_height, end_height
	  ) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	  ) ON CONFLICT (game_id) DO UPDATE SET
		status=EXCLUDED.status,
		result=EXCLUDED.result,
		method=EXCLUDED.method,
		moves_san=EXCLUDED.moves_san,
		final_fen=EXCLUDED.final_fen,
		pgn=EXCLUDED.pgn,
		end_height=EXCLUDED.end_height,
		archived_at=now()`

	_, err = r.db.ExecContext(ctx, q,
		int64(g.ID), int64(g.ChallengeID), r.chainID,
		g.White, g.Black,
		string(g.Status), result, strings.TrimSpace(g.Method), int64(g.BlockLimit), string(movesRaw),
		g.FEN, pgn, int64(g.StartedAt), int64(g.EndedAt),
	)
	return err
}

func sanList(h []string) []string {
	if h == nil {
		return []string{}
	}
	return h
}
