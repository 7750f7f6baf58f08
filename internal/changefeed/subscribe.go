package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// WebSocketURL converts an http(s) base URL into the change feed endpoint.
func WebSocketURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/") + "/api/v1/changes"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// Subscribe connects to the change feed at wsURL and calls fn for every event
// until ctx is canceled or the connection drops. A canceled ctx returns nil.
func Subscribe(ctx context.Context, wsURL, token string, fn func(Event)) error {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("failed to dial change feed: %w", err)
	}
	defer conn.CloseNow()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("change feed read failed: %w", err)
		}

		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("failed to decode change event: %w", err)
		}
		fn(e)
	}
}
