package core

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	applog "github.com/vovakirdan/wirechat-relay/internal/log"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const takeoverReason = "someone else logged in with your identity"

// TokenIssuer signs a session token for a joined identity.
type TokenIssuer interface {
	IssueToken(id Identity) (string, error)
}

// Hub owns the shared stores and drives each connection through its session
// lifecycle: unauthenticated, active, terminated.
type Hub struct {
	registry *Registry
	groups   *GroupStore
	history  *HistoryStore
	rooms    *Rooms
	router   *Router
	tokens   TokenIssuer
	log      *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	clients    map[*Client]struct{}
	wg         sync.WaitGroup
}

// NewHub creates a hub. tokens may be nil, in which case join acks carry no token.
func NewHub(records store.IdentityStore, verifier CredentialVerifier, tokens TokenIssuer, logger *zerolog.Logger) *Hub {
	logger = applog.OrNop(logger)

	registry := NewRegistry(records, verifier)
	groups := NewGroupStore()
	history := NewHistoryStore()
	rooms := NewRooms()

	return &Hub{
		registry:   registry,
		groups:     groups,
		history:    history,
		rooms:      rooms,
		router:     NewRouter(registry, groups, history, rooms, logger),
		tokens:     tokens,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run processes connection registration until ctx is cancelled. Each
// registered client gets its own goroutine for commands, so handlers run
// concurrently across connections and in order within one connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.Close("server shutting down")
			}
			h.wg.Wait()
			h.log.Info().Int("clients", len(h.clients)).Msg("hub stopped")
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.serve(ctx, c)
			}()
			h.log.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client registered")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			delete(h.clients, c)
			c.Close("disconnected")
			h.leave(c)
		}
	}
}

// RegisterClient hands a new connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close("server stopped")
	}
}

// UnregisterClient reports that the connection is gone.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) serve(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case cmd := <-c.Commands:
			if cmd != nil {
				h.Handle(ctx, c, cmd)
			}
		}
	}
}

// Handle executes one command on behalf of c. Failures are reported to c as
// error events and never affect other connections.
func (h *Hub) Handle(ctx context.Context, c *Client, cmd *Command) {
	if cmd.Kind == CommandJoin {
		h.join(ctx, c, cmd.Join)
		return
	}

	// Connections evicted by a takeover no longer resolve.
	id, ok := h.registry.Resolve(c)
	if !ok {
		c.Send(errorEvent(ErrUnauthorized))
		return
	}

	var err error
	switch cmd.Kind {
	case CommandSendMessage:
		_, err = h.router.Send(c, id, cmd.Channel, cmd.Type, cmd.Body)
	case CommandCreateGroup:
		err = h.createGroup(id, cmd.Group)
	case CommandJoinGroup:
		err = h.joinGroup(c, id, cmd.Group.Name)
	case CommandRequestHistory:
		err = h.requestHistory(c, id, cmd.Channel)
	case CommandEditMessage:
		_, err = h.router.Edit(c, id, cmd.Channel, cmd.MessageID, cmd.Body)
	case CommandTyping, CommandStopTyping:
		err = h.router.Typing(c, id, cmd.Channel, cmd.Kind == CommandTyping)
	default:
		err = badRequest("unknown command")
	}
	if err != nil {
		c.Send(errorEvent(h.toCoreError(err, id.Key)))
	}
}

func (h *Hub) join(ctx context.Context, c *Client, req JoinRequest) {
	if c.Authenticated() {
		c.Send(&Event{Kind: EventJoined, Join: &JoinResult{}, Error: ErrAlreadyAuthenticated})
		return
	}

	id, evicted, err := h.registry.Register(ctx, c, req)
	if err != nil {
		ce := h.toCoreError(err, "")
		h.log.Info().Str("client_id", c.ID).Str("display_name", req.DisplayName).Str("code", ce.Code).Msg("join rejected")
		c.Send(&Event{Kind: EventJoined, Join: &JoinResult{}, Error: ce})
		return
	}
	if evicted != nil {
		h.evict(evicted, id)
	}

	var token string
	if h.tokens != nil {
		if token, err = h.tokens.IssueToken(id); err != nil {
			h.log.Warn().Err(err).Str("identity", id.Key).Msg("failed to issue session token")
		}
	}
	c.Send(&Event{Kind: EventJoined, Join: &JoinResult{Success: true, Identity: id, Token: token}})
	h.log.Info().Str("client_id", c.ID).Str("identity", id.Key).Msg("identity joined")

	if h.terminated(c) {
		return
	}
	h.replay(c, id)
	h.broadcastPresence()
	h.terminated(c)
}

// terminated cleans up a client that was closed while its join was in
// flight. Returns true if the client is closed.
func (h *Hub) terminated(c *Client) bool {
	select {
	case <-c.Done():
		h.leave(c)
		return true
	default:
		return false
	}
}

// replay subscribes c to every channel it belongs to and sends their history.
func (h *Hub) replay(c *Client, id Identity) {
	broadcast := h.rooms.Get(BroadcastChannel)
	broadcast.Sequence(func() {
		broadcast.AddClient(c)
		sendHistory(c, BroadcastChannel, h.history.Read(BroadcastChannel), false)
	})

	for _, peer := range h.history.DirectPeers(id.Key) {
		room := h.rooms.Get(DirectChannelKey(id.Key, peer))
		room.Sequence(func() {
			sendHistory(c, peer, h.history.Read(room.Key), false)
		})
	}

	c.Send(&Event{Kind: EventGroups, Groups: h.groups.List()})

	for _, g := range h.groups.MemberOf(id.Key) {
		h.subscribe(c, g.Name)
		c.Send(&Event{Kind: EventGroupMembers, Group: g.Name, Members: g.Members})
	}
}

// subscribe adds c to a group's subscriber set and replays its history
// atomically with respect to new messages on that group.
func (h *Hub) subscribe(c *Client, group string) {
	room := h.rooms.Get(group)
	room.Sequence(func() {
		// An evicted connection must not reappear after RemoveEverywhere.
		select {
		case <-c.Done():
			return
		default:
		}
		if room.AddClient(c) {
			sendHistory(c, group, h.history.Read(group), false)
		}
	})
}

func (h *Hub) evict(old *Client, id Identity) {
	old.Send(&Event{Kind: EventForcedDisconnect, Reason: takeoverReason})
	h.rooms.RemoveEverywhere(old)
	old.Close("taken over")
	h.log.Warn().Str("identity", id.Key).Str("evicted_client_id", old.ID).Msg("identity taken over by new connection")
}

// leave unbinds c and announces the new presence list. Idempotent.
func (h *Hub) leave(c *Client) {
	id, bound := h.registry.Unregister(c)
	h.rooms.RemoveEverywhere(c)
	if !bound {
		return
	}
	h.log.Info().Str("client_id", c.ID).Str("identity", id.Key).Msg("identity left")
	h.broadcastPresence()
}

func (h *Hub) broadcastPresence() {
	h.rooms.Get(BroadcastChannel).Broadcast(&Event{Kind: EventClients, Clients: h.registry.Active()}, nil)
}

func (h *Hub) createGroup(id Identity, spec GroupSpec) error {
	g, err := h.groups.Create(spec.Name, spec.Visibility, spec.Members, id.Key)
	if err != nil {
		return err
	}

	room := h.rooms.Get(g.Name)
	room.Sequence(func() {
		for _, member := range g.Members {
			if conn, ok := h.registry.Lookup(member); ok {
				room.AddClient(conn)
			}
		}
	})

	h.rooms.Get(BroadcastChannel).Broadcast(&Event{Kind: EventGroups, Groups: h.groups.List()}, nil)
	room.Broadcast(&Event{Kind: EventGroupMembers, Group: g.Name, Members: g.Members}, nil)
	h.log.Info().Str("group", g.Name).Str("visibility", string(g.Visibility)).Str("creator", id.Key).
		Int("members", len(g.Members)).Int("online", room.Len()).Msg("group created")
	return nil
}

func (h *Hub) joinGroup(c *Client, id Identity, name string) error {
	g, err := h.groups.Join(name, id.Key)
	if err != nil {
		return err
	}
	h.subscribe(c, g.Name)
	h.rooms.Get(g.Name).Broadcast(&Event{Kind: EventGroupMembers, Group: g.Name, Members: g.Members}, nil)
	h.log.Debug().Str("group", g.Name).Str("identity", id.Key).Msg("joined group")
	return nil
}

func (h *Hub) requestHistory(c *Client, id Identity, ref string) error {
	msgs, err := h.router.History(id.Key, ref)
	if err != nil {
		return err
	}
	sendHistory(c, ref, msgs, true)
	return nil
}

// ActiveIdentities returns the presence snapshot.
func (h *Hub) ActiveIdentities() []string {
	return h.registry.Active()
}

// Groups returns all groups in creation order.
func (h *Hub) Groups() []Group {
	return h.groups.List()
}

// History returns the channel ref names for the identity, applying the same
// authorization as request_history.
func (h *Hub) History(identityKey, ref string) ([]Message, error) {
	return h.router.History(identityKey, ref)
}

func (h *Hub) toCoreError(err error, identity string) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	h.log.Error().Err(err).Str("identity", identity).Msg("internal error")
	return coreError(ErrCodeInternal, "internal error")
}

func sendHistory(c *Client, channel string, msgs []Message, always bool) {
	if len(msgs) == 0 && !always {
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}
	c.Send(&Event{Kind: EventHistory, Channel: channel, Messages: msgs})
}
