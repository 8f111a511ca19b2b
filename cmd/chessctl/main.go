// Command chessctl drives a chessd node from the shell.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/park285/onchain-chess/internal/msgcat"
	"github.com/park285/onchain-chess/internal/nodeclient"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

var errUsage = errors.New("usage")

type globals struct {
	node    string
	events  string
	sender  string
	timeout time.Duration
	out     io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stdout, helpText())
		return 0
	}
	g := &globals{out: stdout}
	err := dispatch(ctx, g, args[0], args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, helpText())
		return 2
	case errors.Is(err, pflag.ErrHelp):
		return 0
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

func helpText() string {
	return strings.Join([]string{
		"chessctl <command> [flags] [args]",
		"",
		"  create [--opponent ADDR] [--color white|black|random] [--block-limit N]",
		"  accept CHALLENGE_ID | cancel CHALLENGE_ID",
		"  move GAME_ID MOVE | offer-draw GAME_ID MOVE",
		"  accept-draw GAME_ID | resign GAME_ID | timeout GAME_ID",
		"  challenge ID | challenges [--status S] [--player ADDR]",
		"  game ID | games [--player ADDR] [--over true|false]",
		"  player-games ADDR [--over true|false]",
		"  status | watch [--game ID]",
		"",
		"Common flags: --node URL, --events URL, --from ADDR, --timeout D.",
		"Listings take --after ID and --limit N.",
		"",
	}, "\n")
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func (g *globals) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&g.node, "node", envOr("CHESSD_URL", "http://127.0.0.1:8545"), "node API base URL")
	fs.StringVar(&g.events, "events", envOr("CHESSD_EVENTS_URL", "ws://127.0.0.1:8546/events"), "node event feed URL")
	fs.StringVarP(&g.sender, "from", "f", os.Getenv("CHESS_SENDER"), "sender address of execute calls")
	fs.DurationVar(&g.timeout, "timeout", 10*time.Second, "per-request timeout")
	return fs
}

func (g *globals) client() *nodeclient.Client {
	return nodeclient.NewClient(g.node,
		nodeclient.WithTimeout(g.timeout),
		nodeclient.WithEventsURL(g.events),
		nodeclient.WithReconnect(5),
	)
}

type listFlags struct {
	after uint64
	limit int
	over  string
}

func (l *listFlags) bind(fs *pflag.FlagSet, withOver bool) {
	fs.Uint64Var(&l.after, "after", 0, "return ids after this cursor")
	fs.IntVar(&l.limit, "limit", 0, "page size, 0 for the node default")
	if withOver {
		fs.StringVar(&l.over, "over", "", "true for finished games, false for active ones")
	}
}

func (l *listFlags) gameOver() (*bool, error) {
	if strings.TrimSpace(l.over) == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(l.over)
	if err != nil {
		return nil, fmt.Errorf("%w: --over must be true or false", errUsage)
	}
	return &v, nil
}

func dispatch(ctx context.Context, g *globals, cmd string, args []string) error {
	fs := g.flagSet(cmd)
	var (
		opponent, color, status, player string
		blockLimit                      int64
		gameFilter                      uint64
		list                            listFlags
	)
	switch cmd {
	case "create":
		fs.StringVar(&opponent, "opponent", "", "only this address may accept")
		fs.StringVar(&color, "color", "", "creator's color: white, black or random")
		fs.Int64Var(&blockLimit, "block-limit", 0, "blocks each side may take per move")
	case "challenges":
		fs.StringVar(&status, "status", "", "OPEN, ACCEPTED or CANCELED")
		fs.StringVar(&player, "player", "", "creator or named opponent")
		list.bind(fs, false)
	case "games":
		fs.StringVar(&player, "player", "", "either side")
		list.bind(fs, true)
	case "player-games":
		list.bind(fs, true)
	case "watch":
		fs.Uint64Var(&gameFilter, "game", 0, "only events of this game")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	pos := fs.Args()

	rctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	switch cmd {
	case "create":
		msg := &chessdto.CreateChallenge{Opponent: opponent, Color: color}
		if fs.Changed("block-limit") {
			msg.BlockLimit = &blockLimit
		}
		return g.execute(rctx, chessdto.ExecuteMsg{CreateChallenge: msg})
	case "accept", "cancel":
		id, err := idArg(pos, 0, "CHALLENGE_ID")
		if err != nil {
			return err
		}
		ref := &chessdto.ChallengeRef{ChallengeID: id}
		if cmd == "accept" {
			return g.execute(rctx, chessdto.ExecuteMsg{AcceptChallenge: ref})
		}
		return g.execute(rctx, chessdto.ExecuteMsg{CancelChallenge: ref})
	case "move", "offer-draw", "accept-draw", "resign":
		id, err := idArg(pos, 0, "GAME_ID")
		if err != nil {
			return err
		}
		var act chessdto.Action
		switch cmd {
		case "move", "offer-draw":
			if len(pos) < 2 {
				return fmt.Errorf("%w: %s needs GAME_ID MOVE", errUsage, cmd)
			}
			mv := &chessdto.MoveText{Move: pos[1]}
			if cmd == "move" {
				act.Move = mv
			} else {
				act.OfferDraw = mv
			}
		case "accept-draw":
			act.AcceptDraw = &struct{}{}
		default:
			act.Resign = &struct{}{}
		}
		return g.execute(rctx, chessdto.ExecuteMsg{Turn: &chessdto.Turn{GameID: id, Action: act}})
	case "timeout":
		id, err := idArg(pos, 0, "GAME_ID")
		if err != nil {
			return err
		}
		return g.execute(rctx, chessdto.ExecuteMsg{DeclareTimeout: &chessdto.GameRef{GameID: id}})
	case "challenge", "game":
		id, err := idArg(pos, 0, "ID")
		if err != nil {
			return err
		}
		q := &chessdto.IDQuery{ID: id}
		if cmd == "challenge" {
			return g.query(rctx, chessdto.QueryMsg{GetChallenge: q})
		}
		return g.query(rctx, chessdto.QueryMsg{GetGame: q})
	case "challenges":
		return g.query(rctx, chessdto.QueryMsg{GetChallenges: &chessdto.ChallengesQuery{
			Status: status, Player: player, After: list.after, Limit: list.limit,
		}})
	case "games", "player-games":
		over, err := list.gameOver()
		if err != nil {
			return err
		}
		if cmd == "games" {
			return g.query(rctx, chessdto.QueryMsg{GetGames: &chessdto.GamesQuery{
				Player: player, GameOver: over, After: list.after, Limit: list.limit,
			}})
		}
		if len(pos) < 1 {
			return fmt.Errorf("%w: player-games needs ADDR", errUsage)
		}
		return g.query(rctx, chessdto.QueryMsg{GetPlayerGames: &chessdto.PlayerGamesQuery{
			Address: pos[0], GameOver: over, After: list.after, Limit: list.limit,
		}})
	case "status":
		st, err := g.client().Status(rctx)
		if err != nil {
			return err
		}
		return printJSON(g.out, st)
	case "watch":
		return g.watch(ctx, gameFilter)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func idArg(pos []string, i int, name string) (uint64, error) {
	if len(pos) <= i {
		return 0, fmt.Errorf("%w: missing %s", errUsage, name)
	}
	id, err := strconv.ParseUint(pos[i], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", errUsage, name, pos[i])
	}
	return id, nil
}

func (g *globals) execute(ctx context.Context, msg chessdto.ExecuteMsg) error {
	if strings.TrimSpace(g.sender) == "" {
		return fmt.Errorf("%w: --from (or CHESS_SENDER) is required", errUsage)
	}
	res, err := g.client().Execute(ctx, g.sender, msg)
	if err != nil {
		return err
	}
	if err := printJSON(g.out, res); err != nil {
		return err
	}
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (g *globals) query(ctx context.Context, msg chessdto.QueryMsg) error {
	var raw json.RawMessage
	if err := g.client().Query(ctx, msg, &raw); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(g.out)
	return err
}

// watch prints one line per transaction until interrupted.
func (g *globals) watch(ctx context.Context, gameID uint64) error {
	msgs, err := msgcat.New(os.Getenv("CHESS_MESSAGES_DIR"))
	if err != nil {
		return err
	}
	want := ""
	if gameID != 0 {
		want = strconv.FormatUint(gameID, 10)
	}
	return g.client().Subscribe(ctx, func(res chessdto.TxResult) {
		if line, ok := eventLine(msgs, res, want); ok {
			fmt.Fprintln(g.out, line)
		}
	})
}

func eventLine(msgs *msgcat.Catalog, res chessdto.TxResult, gameID string) (string, bool) {
	data := map[string]any{"sender": res.Sender}
	for _, a := range res.Attributes {
		data[a.Key] = a.Value
	}
	if gameID != "" && data["game_id"] != gameID {
		return "", false
	}
	prefix := fmt.Sprintf("[%d:%d] ", res.Height, res.TxIndex)
	if res.Error != nil {
		return prefix + res.Sender + " rejected: " + res.Error.Message, true
	}
	action, _ := data["action"].(string)
	line := msgs.RenderOr("events."+action, data, "")
	if line == "" {
		line = res.Sender + " " + action + " " + attrString(res.Attributes)
	}
	if st, _ := data["game_over"].(string); st == "true" {
		line += fmt.Sprintf(" (%s", data["status"])
		if w, ok := data["winner"].(string); ok {
			line += ", winner " + w
		}
		line += ")"
	}
	return prefix + line, true
}

func attrString(attrs []chessdto.Attribute) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Key+"="+a.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
