package node

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/onchain-chess/internal/obslog"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

// Hub fans every TxResult out to websocket subscribers. A subscriber that
// falls a full buffer behind is disconnected rather than slowing the chain.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan chessdto.TxResult]struct{}
	buffer int

	pingInterval time.Duration
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:         make(map[chan chessdto.TxResult]struct{}),
		buffer:       buffer,
		pingInterval: 30 * time.Second,
	}
}

func (h *Hub) Publish(r chessdto.TxResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- r:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() chan chessdto.TxResult {
	ch := make(chan chessdto.TxResult, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan chessdto.TxResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// ServeHTTP upgrades to a websocket and streams TxResult frames as JSON.
// Frames sent by the client are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("chess_events_accept_failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ch := h.subscribe()
	defer h.unsubscribe(ch)
	ctx := conn.CloseRead(r.Context())

	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "slow consumer")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, conn, res)
			cancel()
			if err != nil {
				return
			}
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// NewEventsServer serves hub on /events.
func NewEventsServer(addr string, hub *Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/events", hub)
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
