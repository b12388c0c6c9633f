package matrix

import (
	"context"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/timemachine/internal/timemachine/observability"
	"github.com/bdobrica/timemachine/internal/timemachine/session"
	"github.com/bdobrica/timemachine/internal/timemachine/usage"
)

// Chat commands handled by the gateway instead of the persona.
const (
	CmdIntro = "!intro"
	CmdReset = "!reset"
	CmdUsage = "!usage"
)

// Message is an incoming text message.
type Message struct {
	RoomID  string
	Sender  string
	EventID string
	Body    string
}

// MessageFromEvent extracts a text message from evt. Non-text messages
// (images, notices, edits with empty bodies) report false.
func MessageFromEvent(evt *event.Event) (Message, bool) {
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return Message{}, false
	}
	body := strings.TrimSpace(content.Body)
	if body == "" {
		return Message{}, false
	}
	return Message{
		RoomID:  evt.RoomID.String(),
		Sender:  evt.Sender.String(),
		EventID: evt.ID.String(),
		Body:    body,
	}, true
}

// Sender posts replies back into rooms. *Client satisfies it.
type Sender interface {
	SendReply(ctx context.Context, roomID, eventID, text string) error
	SendNotice(ctx context.Context, roomID, text string) error
}

// Gateway routes room messages to per-sender sessions. The Matrix user ID
// of the sender is the budget tenant.
type Gateway struct {
	registry *session.Registry
	sender   Sender
}

// NewGateway returns a Gateway.
func NewGateway(registry *session.Registry, sender Sender) *Gateway {
	return &Gateway{registry: registry, sender: sender}
}

// HandleEvent is an EventHandler.
func (g *Gateway) HandleEvent(ctx context.Context, evt *event.Event) {
	msg, ok := MessageFromEvent(evt)
	if !ok {
		return
	}
	if err := g.Handle(ctx, msg); err != nil {
		observability.WithTrace(ctx).Warn("matrix: reply failed", "room", msg.RoomID, "err", err)
	}
}

// Handle answers one message: a chat command or a persona turn.
func (g *Gateway) Handle(ctx context.Context, msg Message) error {
	fields := strings.Fields(msg.Body)
	if len(fields) == 0 {
		return nil
	}
	key := session.Key(msg.RoomID, msg.Sender)

	switch strings.ToLower(fields[0]) {
	case CmdReset:
		g.registry.Forget(key)
		return g.sender.SendNotice(ctx, msg.RoomID, "Conversation cleared.")
	case CmdIntro:
		s := g.registry.Get(ctx, msg.Sender, key)
		return g.sender.SendReply(ctx, msg.RoomID, msg.EventID, s.Introduce(ctx))
	case CmdUsage:
		s := g.registry.Get(ctx, msg.Sender, key)
		return g.sender.SendNotice(ctx, msg.RoomID, UsageLine(s.Budget()))
	}

	s := g.registry.Get(ctx, msg.Sender, key)
	res := s.Respond(ctx, msg.Body)
	if err := g.sender.SendReply(ctx, msg.RoomID, msg.EventID, res.Text); err != nil {
		return err
	}
	if res.Failed {
		return nil
	}
	return g.sender.SendNotice(ctx, msg.RoomID, MetaLine(res))
}

// MetaLine renders a turn's cost metadata as a one-line notice.
func MetaLine(res session.Result) string {
	line := fmt.Sprintf("%d chars · $%.4f · %s · audio %s",
		res.Meta.TextLength, res.Meta.EstimatedCost, res.Meta.Source, res.Audio)
	if res.Meta.Alert != usage.AlertNone {
		line += " · budget " + res.Meta.Alert.String()
	}
	return line
}

// UsageLine renders a tracker's state. A nil tracker reports no budget.
func UsageLine(t *usage.Tracker) string {
	if t == nil {
		return "No budget configured."
	}
	b := t.Budget()
	return fmt.Sprintf("Used %d of %d characters today (%s), $%.4f remaining.",
		t.Used(), b.MaxDailyChars, t.AlertLevel(), t.RemainingCost())
}
