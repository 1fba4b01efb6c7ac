package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds a single message body.
const maxBodyBytes = 8 << 10

// Router classifies messages by destination and fans them out.
type Router struct {
	registry *Registry
	groups   *GroupStore
	history  *HistoryStore
	rooms    *Rooms
	log      *zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewRouter creates a router over the shared stores.
func NewRouter(registry *Registry, groups *GroupStore, history *HistoryStore, rooms *Rooms, logger *zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		groups:   groups,
		history:  history,
		rooms:    rooms,
		log:      logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type target struct {
	key  string // history channel key
	peer string // set for direct channels
}

// resolve maps a channel reference, as the client names it, to a channel.
// Private groups resolve only for members.
func (r *Router) resolve(self, ref string) (target, error) {
	if ref == BroadcastChannel {
		return target{key: BroadcastChannel}, nil
	}
	if g, ok := r.groups.Get(ref); ok {
		if g.Visibility == VisibilityPrivate && !g.IsMember(self) {
			return target{}, ErrNotAMember
		}
		return target{key: g.Name}, nil
	}
	if IsDirectChannel(ref) {
		return target{}, badRequest("unknown channel " + ref)
	}
	// Without a tag the reference can only have meant a group.
	if !strings.Contains(ref, identitySeparator) {
		return target{}, ErrGroupNotFound
	}
	if ref == self {
		return target{}, badRequest("cannot message yourself")
	}
	return target{key: DirectChannelKey(self, ref), peer: ref}, nil
}

// Send appends a new message to its channel and delivers it to every other
// current subscriber. Direct messages to an offline peer are stored and
// reported with ErrRecipientOffline alongside the stored message.
func (r *Router) Send(sender *Client, from Identity, to string, kind MessageType, body string) (Message, error) {
	if err := validateBody(kind, body); err != nil {
		return Message{}, err
	}
	if kind == "" {
		kind = MessageText
	}

	t, err := r.resolve(from.Key, to)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:     r.newID(),
		From:   from.Key,
		To:     to,
		Type:   kind,
		Body:   body,
		SentAt: r.now(),
	}

	room := r.rooms.Get(t.key)
	if t.peer == "" {
		room.Sequence(func() {
			msg.Channel = t.key
			r.history.Append(t.key, msg)
			n := room.Broadcast(&Event{Kind: EventMessage, Channel: t.key, Message: msg}, sender)
			r.log.Debug().Str("from", from.Key).Str("channel", t.key).Int("recipients", n).Msg("message routed")
		})
		return msg, nil
	}

	delivered := false
	room.Sequence(func() {
		msg.Channel = r.history.AppendDirect(from.Key, t.peer, msg)
		if peer, ok := r.registry.Lookup(t.peer); ok {
			delivered = peer.Send(&Event{Kind: EventMessage, Channel: from.Key, Message: msg})
		}
	})
	r.log.Debug().Str("from", from.Key).Str("to", t.peer).Bool("delivered", delivered).Msg("direct message routed")
	if !delivered {
		return msg, ErrRecipientOffline
	}
	return msg, nil
}

// Edit replaces the body of a message the editor sent and re-delivers it,
// flagged as edited, to the channel's subscribers and the editor.
func (r *Router) Edit(editor *Client, from Identity, ref, id, body string) (Message, error) {
	if err := validateBody(MessageText, body); err != nil {
		return Message{}, err
	}
	t, err := r.resolve(from.Key, ref)
	if err != nil {
		return Message{}, err
	}

	var edited Message
	room := r.rooms.Get(t.key)
	room.Sequence(func() {
		orig, ok := r.history.Get(t.key, id)
		if !ok {
			err = ErrMessageNotFound
			return
		}
		if orig.From != from.Key {
			err = ErrNotSender
			return
		}
		edited, err = r.history.Edit(t.key, id, body)
		if err != nil {
			return
		}

		if t.peer == "" {
			room.Broadcast(&Event{Kind: EventMessage, Channel: t.key, Message: edited}, editor)
			editor.Send(&Event{Kind: EventMessage, Channel: t.key, Message: edited})
			return
		}
		if peer, ok := r.registry.Lookup(t.peer); ok {
			peer.Send(&Event{Kind: EventMessage, Channel: from.Key, Message: edited})
		}
		editor.Send(&Event{Kind: EventMessage, Channel: t.peer, Message: edited})
	})
	if err != nil {
		return Message{}, err
	}
	r.log.Debug().Str("from", from.Key).Str("channel", t.key).Str("message_id", id).Msg("message edited")
	return edited, nil
}

// History returns the messages of the channel ref resolves to for self.
func (r *Router) History(self, ref string) ([]Message, error) {
	t, err := r.resolve(self, ref)
	if err != nil {
		return nil, err
	}
	msgs := r.history.Read(t.key)
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// Typing relays a typing indicator to the channel's other subscribers.
// Nothing is stored; indicators for offline peers are dropped.
func (r *Router) Typing(c *Client, from Identity, ref string, typing bool) error {
	t, err := r.resolve(from.Key, ref)
	if err != nil {
		return err
	}
	kind := EventStopTyping
	if typing {
		kind = EventTyping
	}

	if t.peer == "" {
		r.rooms.Get(t.key).Broadcast(&Event{Kind: kind, Channel: t.key, User: from.Key}, c)
		return nil
	}
	if peer, ok := r.registry.Lookup(t.peer); ok {
		peer.Send(&Event{Kind: kind, Channel: from.Key, User: from.Key})
	}
	return nil
}

func validateBody(kind MessageType, body string) error {
	switch kind {
	case "", MessageText, MessageSticker:
	default:
		return badRequest("message type must be text or sticker")
	}
	if strings.TrimSpace(body) == "" {
		return badRequest("message body is empty")
	}
	if len(body) > maxBodyBytes {
		return badRequest("message body is too long")
	}
	return nil
}
