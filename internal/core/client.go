package core

import "sync"

// DefaultEventBuffer is the per-client outbound queue size.
const DefaultEventBuffer = 64

// Client is one live connection as seen by the core layer.
// It starts unauthenticated and gains an identity on a successful join.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu       sync.Mutex
	identity *Identity
	rooms    map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, eventBuffer int) *Client {
	if eventBuffer <= 0 {
		eventBuffer = DefaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, eventBuffer),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Identity returns the identity bound by a successful join.
func (c *Client) Identity() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return Identity{}, false
	}
	return *c.identity, true
}

// Authenticated reports whether the client completed a join.
func (c *Client) Authenticated() bool {
	_, ok := c.Identity()
	return ok
}

func (c *Client) setIdentity(id Identity) {
	c.mu.Lock()
	c.identity = &id
	c.mu.Unlock()
}

// Send queues an event without blocking. Returns false if the client is
// closed or its queue is full.
func (c *Client) Send(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Close marks the client terminated. The transport observes Done, flushes
// queued events and closes the connection. Safe to call more than once.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once the core has terminated the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CloseReason returns the reason passed to Close.
func (c *Client) CloseReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Client) trackRoom(key string, joined bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if joined {
		c.rooms[key] = struct{}{}
	} else {
		delete(c.rooms, key)
	}
}

func (c *Client) roomKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.rooms))
	for k := range c.rooms {
		keys = append(keys, k)
	}
	return keys
}
