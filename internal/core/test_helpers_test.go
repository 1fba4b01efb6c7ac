package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store/memory"
)

// plainVerifier stores credentials as-is so tests avoid bcrypt cost.
type plainVerifier struct{}

func (plainVerifier) Hash(credential string) (string, error) { return "plain:" + credential, nil }
func (plainVerifier) Verify(stored, provided string) bool  { return stored == "plain:"+provided }

type staticTokens struct{}

func (staticTokens) IssueToken(id Identity) (string, error) { return "token-" + id.Key, nil }

func newTestRegistry() *Registry {
	return NewRegistry(memory.New(), plainVerifier{})
}

func startHub(t *testing.T) *Hub {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(memory.New(), plainVerifier{}, staticTokens{}, nil)
	go hub.Run(ctx)
	return hub
}

// connect registers a fresh connection and joins it, returning the client and
// its identity once the join ack arrives.
func connect(t *testing.T, hub *Hub, connID, clientID, name, credential string) (*Client, Identity) {
	t.Helper()

	c := NewClient(connID, 0)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoin, Join: JoinRequest{ClientID: clientID, DisplayName: name, Credential: credential}}

	ev := mustEvent(t, c.Events, EventJoined)
	if ev.Join == nil || !ev.Join.Success {
		t.Fatalf("join failed for %s: %+v", name, ev.Error)
	}
	return c, ev.Join.Identity
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustEventMatching waits for an event of kind for which match returns true.
func mustEventMatching(t *testing.T, ch <-chan *Event, kind EventKind, match func(*Event) bool) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind && match(ev) {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected matching event kind %v not received", kind)
	return nil
}

func mustError(t *testing.T, ch <-chan *Event, code string) {
	t.Helper()
	ev := mustEvent(t, ch, EventError)
	if ev.Error == nil || ev.Error.Code != code {
		t.Fatalf("expected %s error, got %+v", code, ev.Error)
	}
}

// drain discards everything currently queued.
func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func expectNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()
	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected %v event: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
