package core

import "sync"

// Room is the subscriber set of one channel: the live clients currently
// receiving its events.
type Room struct {
	Key string

	// seq orders history appends with deliveries on this channel.
	seq sync.Mutex

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(key string) *Room {
	return &Room{
		Key:     key,
		clients: make(map[*Client]struct{}),
	}
}

// Sequence runs fn while holding the room's ordering lock. Appends to the
// channel's history and the fan-out that follows them must run inside it so
// every subscriber observes the channel in append order.
func (r *Room) Sequence(fn func()) {
	r.seq.Lock()
	defer r.seq.Unlock()
	fn()
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	c.trackRoom(r.Key, true)
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	c.trackRoom(r.Key, false)
	return true
}

// Broadcast sends an event to all clients in the room except the given one.
// Returns the number of clients the event was queued for.
func (r *Room) Broadcast(event *Event, except *Client) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sent := 0
	for client := range r.clients {
		if client == except {
			continue
		}
		// Drop if slow consumer.
		if client.Send(event) {
			sent++
		}
	}
	return sent
}

// Len returns the number of subscribed clients.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Rooms indexes subscriber sets by channel key.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRooms creates an empty room index.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*Room)}
}

// Get returns the room for key, creating it on first use.
func (rs *Rooms) Get(key string) *Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.rooms[key]
	if !ok {
		r = NewRoom(key)
		rs.rooms[key] = r
	}
	return r
}

// RemoveEverywhere unsubscribes c from every room it joined.
func (rs *Rooms) RemoveEverywhere(c *Client) {
	for _, key := range c.roomKeys() {
		rs.Get(key).RemoveClient(c)
	}
}
