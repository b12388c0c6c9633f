// Package matrix connects persona sessions to Matrix rooms: every sender in
// every joined room gets their own conversation with the persona.
package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Config holds the Matrix connection parameters.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// EventHandler is called for each incoming m.room.message event not sent by
// the client itself.
type EventHandler func(ctx context.Context, evt *event.Event)

// Client is a thin mautrix wrapper with a reconnecting sync loop.
type Client struct {
	mxc    *mautrix.Client
	cfg    Config
	stopCh chan struct{}
}

// NewClient creates a Matrix client but does not start syncing yet.
func NewClient(cfg Config) (*Client, error) {
	mxc, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}
	return &Client{mxc: mxc, cfg: cfg, stopCh: make(chan struct{})}, nil
}

// Start joins rooms and runs the sync loop in the background, backing off
// exponentially on sync errors.
func (c *Client) Start(ctx context.Context, rooms []string, handler EventHandler) error {
	slog.Warn("matrix: E2EE is not enabled; messages are in plaintext")

	syncer, ok := c.mxc.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("matrix: unexpected syncer type %T", c.mxc.Syncer)
	}
	syncer.OnEventType(event.EventMessage, func(_ context.Context, evt *event.Event) {
		if evt.Sender == id.UserID(c.cfg.UserID) {
			return
		}
		handler(ctx, evt)
	})

	for _, room := range rooms {
		if _, err := c.mxc.JoinRoomByID(ctx, id.RoomID(room)); err != nil {
			// Already-joined rooms report an error too.
			slog.Info("matrix: join room", "room", room, "err", err)
		}
	}

	go func() {
		const backoffMax = 5 * time.Minute
		backoff := 2 * time.Second
		for {
			err := c.mxc.Sync()
			select {
			case <-c.stopCh:
				return
			default:
			}
			if err == nil {
				backoff = 2 * time.Second
				continue
			}
			slog.Error("matrix: sync error, reconnecting", "err", err, "backoff", backoff)
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, backoffMax)
		}
	}()
	return nil
}

// Stop halts the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.mxc.StopSync()
}

// SendReply posts text in roomID as a reply to eventID.
func (c *Client) SendReply(ctx context.Context, roomID, eventID, text string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{EventID: id.EventID(eventID)},
		},
	}
	_, err := c.mxc.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content)
	return err
}

// SendNotice posts text as an m.notice.
func (c *Client) SendNotice(ctx context.Context, roomID, text string) error {
	_, err := c.mxc.SendNotice(ctx, id.RoomID(roomID), text)
	return err
}

// UserID returns the client's Matrix user ID.
func (c *Client) UserID() string { return c.cfg.UserID }
