package nodeclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/onchain-chess/pkg/chessdto"
)

// Subscribe streams TxResults from the node's event feed into fn until ctx
// is done. A dropped feed is redialed up to the WithReconnect budget; fn may
// miss results published while disconnected.
func (c *Client) Subscribe(ctx context.Context, fn func(chessdto.TxResult)) error {
	if c.eventsURL == "" {
		return errors.New("events url not configured")
	}
	failures := 0
	for {
		err := c.stream(ctx, fn, func() { failures = 0 })
		if ctx.Err() != nil {
			return nil
		}
		failures++
		if failures > c.reconnectMax {
			return err
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(failures)); sleepErr != nil {
			return nil
		}
	}
}

func (c *Client) stream(ctx context.Context, fn func(chessdto.TxResult), connected func()) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, c.eventsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.CloseNow()
	connected()

	for {
		var res chessdto.TxResult
		if err := wsjson.Read(ctx, conn, &res); err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return nil
			}
			return fmt.Errorf("read events: %w", err)
		}
		fn(res)
	}
}
