// Package feed consumes the websocket stream of a conversation and appends
// incoming messages to the rendered list.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/micumarket/composer/shared/api"
	"github.com/micumarket/composer/shared/domain"
	"github.com/micumarket/composer/shared/logger"
)

// Sink receives messages sent by the other party.
type Sink interface {
	AppendReceived(m domain.ConfirmedMessage)
	ScrollToLatest()
}

// Consumer owns one feed connection. It stops on Close or when the server
// drops the connection; Done is closed either way.
type Consumer struct {
	conn *websocket.Conn
	sink Sink

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the feed of a conversation. baseURL is the http(s)
// backend address; the websocket scheme is derived from it.
func Dial(ctx context.Context, baseURL, conversationId string, sink Sink) (*Consumer, error) {
	url := fmt.Sprintf("%s/conversations/%s/feed", httpToWs(baseURL), conversationId)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed %s: %w", url, err)
	}

	c := &Consumer{conn: conn, sink: sink, done: make(chan struct{})}
	go c.run()
	return c, nil
}

func (c *Consumer) run() {
	defer close(c.done)
	defer c.conn.Close()

	for {
		var wire api.Message
		if err := c.conn.ReadJSON(&wire); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Warn("feed connection lost", "err", err)
			}
			return
		}

		msg, err := wire.ToDomain()
		if err != nil {
			logger.Log.Warn("unparsable created_at in feed message, substituting local time",
				"created_at", wire.CreatedAt, "err", err)
			msg.CreatedAt = time.Now()
		}
		c.sink.AppendReceived(msg)
		c.sink.ScrollToLatest()
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
	})
	<-c.done
}

// Done is closed once the read loop has exited.
func (c *Consumer) Done() <-chan struct{} { return c.done }

func httpToWs(baseURL string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(trimmed, "https://"):
		return "wss://" + strings.TrimPrefix(trimmed, "https://")
	case strings.HasPrefix(trimmed, "http://"):
		return "ws://" + strings.TrimPrefix(trimmed, "http://")
	default:
		return trimmed
	}
}
