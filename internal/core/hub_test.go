package core

import (
	"testing"
	"time"
)

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := startHub(t)

	alice, aliceID := connect(t, hub, "c1", "browser-a", "alice", "pw")
	bob, bobID := connect(t, hub, "c2", "browser-b", "bob", "pw")

	presence := mustEventMatching(t, alice.Events, EventClients, func(ev *Event) bool { return len(ev.Clients) == 2 })
	if presence.Clients[0] != aliceID.Key || presence.Clients[1] != bobID.Key {
		t.Fatalf("unexpected presence: %v", presence.Clients)
	}
	drain(alice.Events)

	alice.Commands <- &Command{Kind: CommandSendMessage, Channel: BroadcastChannel, Body: "hi"}

	ev := mustEvent(t, bob.Events, EventMessage)
	if ev.Message.Body != "hi" || ev.Message.From != aliceID.Key || ev.Channel != BroadcastChannel {
		t.Fatalf("unexpected message event: %+v", ev)
	}
	if ev.Message.Type != MessageText || ev.Message.ID == "" {
		t.Fatalf("message missing defaults: %+v", ev.Message)
	}
	expectNoEvent(t, alice.Events, EventMessage)
}

func TestHubReplaysBroadcastHistoryOnJoin(t *testing.T) {
	hub := startHub(t)

	alice, _ := connect(t, hub, "c1", "browser-a", "alice", "pw")
	alice.Commands <- &Command{Kind: CommandSendMessage, Body: "first"}
	alice.Commands <- &Command{Kind: CommandSendMessage, Body: "second"}

	waitForHistory(t, hub, BroadcastChannel, 2)

	carol := NewClient("c3", 0)
	hub.RegisterClient(carol)
	carol.Commands <- &Command{Kind: CommandJoin, Join: JoinRequest{ClientID: "browser-c", DisplayName: "carol", Credential: "pw"}}

	ev := mustEvent(t, carol.Events, EventHistory)
	if ev.Channel != BroadcastChannel || len(ev.Messages) != 2 {
		t.Fatalf("unexpected replay: %+v", ev)
	}
	if ev.Messages[0].Body != "first" || ev.Messages[1].Body != "second" {
		t.Fatalf("replay out of order: %+v", ev.Messages)
	}
}

func TestHubCommandsRequireJoin(t *testing.T) {
	hub := startHub(t)

	c := NewClient("c1", 0)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandSendMessage, Body: "hi"}
	mustError(t, c.Events, ErrCodeUnauthorized)
}

func TestHubDoubleJoinRejected(t *testing.T) {
	hub := startHub(t)

	alice, _ := connect(t, hub, "c1", "browser-a", "alice", "pw")
	alice.Commands <- &Command{Kind: CommandJoin, Join: JoinRequest{ClientID: "browser-a", DisplayName: "other", Credential: "pw"}}

	ev := mustEvent(t, alice.Events, EventJoined)
	if ev.Join.Success || ev.Error == nil || ev.Error.Code != ErrCodeAlreadyAuthenticated {
		t.Fatalf("expected already_authenticated, got %+v", ev)
	}
}

func TestHubJoinWrongCredential(t *testing.T) {
	hub := startHub(t)

	first, _ := connect(t, hub, "c1", "browser-a", "alice", "pw")

	c := NewClient("c2", 0)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoin, Join: JoinRequest{ClientID: "browser-a", DisplayName: "alice", Credential: "wrong"}}

	ev := mustEvent(t, c.Events, EventJoined)
	if ev.Join.Success || ev.Error == nil || ev.Error.Code != ErrCodeInvalidCredential {
		t.Fatalf("expected invalid_credential, got %+v", ev)
	}
	expectNoEvent(t, first.Events, EventForcedDisconnect)
}

func TestHubJoinAckCarriesToken(t *testing.T) {
	hub := startHub(t)

	c := NewClient("c1", 0)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoin, Join: JoinRequest{ClientID: "browser-a", DisplayName: "alice", Credential: "pw"}}

	ev := mustEvent(t, c.Events, EventJoined)
	if ev.Join.Token != "token-"+ev.Join.Identity.Key {
		t.Fatalf("unexpected token %q", ev.Join.Token)
	}
}

func TestHubTakeover(t *testing.T) {
	hub := startHub(t)

	old, id := connect(t, hub, "c1", "browser-a", "alice", "pw")
	fresh, again := connect(t, hub, "c2", "browser-a", "alice", "pw")
	if again.Key != id.Key {
		t.Fatalf("takeover should keep the identity: %s vs %s", id.Key, again.Key)
	}

	ev := mustEvent(t, old.Events, EventForcedDisconnect)
	if ev.Reason == "" {
		t.Fatalf("forced_disconnect should carry a reason")
	}
	select {
	case <-old.Done():
	default:
		t.Fatalf("evicted connection should be closed")
	}

	// The late disconnect of the evicted connection keeps the new one present.
	hub.UnregisterClient(old)
	connect(t, hub, "c3", "browser-b", "bob", "pw")
	presence := mustEventMatching(t, fresh.Events, EventClients, func(ev *Event) bool { return len(ev.Clients) == 2 })
	if presence.Clients[0] != id.Key {
		t.Fatalf("taken-over identity missing from presence: %v", presence.Clients)
	}
}

func TestHubPresenceOnLeave(t *testing.T) {
	hub := startHub(t)

	alice, aliceID := connect(t, hub, "c1", "browser-a", "alice", "pw")
	bob, _ := connect(t, hub, "c2", "browser-b", "bob", "pw")

	hub.UnregisterClient(bob)
	ev := mustEventMatching(t, alice.Events, EventClients, func(ev *Event) bool { return len(ev.Clients) == 1 })
	if ev.Clients[0] != aliceID.Key {
		t.Fatalf("unexpected presence after leave: %v", ev.Clients)
	}
}

func TestHubPrivateGroup(t *testing.T) {
	hub := startHub(t)

	alice, _ := connect(t, hub, "c1", "browser-a", "alice", "pw")
	bob, bobID := connect(t, hub, "c2", "browser-b", "bob", "pw")
	carol, carolID := connect(t, hub, "c3", "browser-c", "carol", "pw")

	alice.Commands <- &Command{Kind: CommandCreateGroup, Group: GroupSpec{Name: "typo", Visibility: VisibilityPrivate, Members: []string{"bob"}}}
	mustError(t, alice.Events, ErrCodeBadRequest)

	alice.Commands <- &Command{Kind: CommandCreateGroup, Group: GroupSpec{Name: "secret", Visibility: VisibilityPrivate, Members: []string{bobID.Key}}}

	members := mustEvent(t, bob.Events, EventGroupMembers)
	if members.Group != "secret" || len(members.Members) != 2 {
		t.Fatalf("unexpected group_members: %+v", members)
	}
	groups := mustEventMatching(t, carol.Events, EventGroups, func(ev *Event) bool { return len(ev.Groups) == 1 })
	if groups.Groups[0].Visibility != VisibilityPrivate {
		t.Fatalf("unexpected groups snapshot: %+v", groups.Groups)
	}

	carol.Commands <- &Command{Kind: CommandJoinGroup, Group: GroupSpec{Name: "secret"}}
	mustError(t, carol.Events, ErrCodeForbidden)
	if gs := hub.Groups(); len(gs) != 1 || gs[0].IsMember(carolID.Key) || len(gs[0].Members) != 2 {
		t.Fatalf("forbidden join changed membership: %+v", gs)
	}

	carol.Commands <- &Command{Kind: CommandSendMessage, Channel: "secret", Body: "let me in"}
	mustError(t, carol.Events, ErrCodeNotAMember)

	carol.Commands <- &Command{Kind: CommandRequestHistory, Channel: "secret"}
	mustError(t, carol.Events, ErrCodeNotAMember)

	alice.Commands <- &Command{Kind: CommandSendMessage, Channel: "secret", Body: "psst"}
	ev := mustEvent(t, bob.Events, EventMessage)
	if ev.Channel != "secret" || ev.Message.Body != "psst" {
		t.Fatalf("unexpected group message: %+v", ev)
	}
	expectNoEvent(t, carol.Events, EventMessage)
}

func TestHubPublicGroupJoinReplays(t *testing.T) {
	hub := startHub(t)

	alice, _ := connect(t, hub, "c1", "browser-a", "alice", "pw")
	alice.Commands <- &Command{Kind: CommandCreateGroup, Group: GroupSpec{Name: "lobby"}}
	alice.Commands <- &Command{Kind: CommandSendMessage, Channel: "lobby", Body: "welcome"}
	alice.Commands <- &Command{Kind: CommandRequestHistory, Channel: "lobby"}
	mustEventMatching(t, alice.Events, EventHistory, func(ev *Event) bool { return ev.Channel == "lobby" && len(ev.Messages) == 1 })

	bob, bobID := connect(t, hub, "c2", "browser-b", "bob", "pw")
	bob.Commands <- &Command{Kind: CommandJoinGroup, Group: GroupSpec{Name: "lobby"}}

	hist := mustEventMatching(t, bob.Events, EventHistory, func(ev *Event) bool { return ev.Channel == "lobby" })
	if len(hist.Messages) != 1 || hist.Messages[0].Body != "welcome" {
		t.Fatalf("unexpected lobby replay: %+v", hist.Messages)
	}
	members := mustEventMatching(t, alice.Events, EventGroupMembers, func(ev *Event) bool { return len(ev.Members) == 2 })
	if members.Members[1] != bobID.Key {
		t.Fatalf("unexpected members: %v", members.Members)
	}

	bob.Commands <- &Command{Kind: CommandJoinGroup, Group: GroupSpec{Name: "nowhere"}}
	mustError(t, bob.Events, ErrCodeGroupNotFound)

	bob.Commands <- &Command{Kind: CommandCreateGroup, Group: GroupSpec{Name: "lobby"}}
	mustError(t, bob.Events, ErrCodeDuplicateName)
}

func TestHubSubscribeSkipsTerminatedClient(t *testing.T) {
	hub := startHub(t)

	alice, aliceID := connect(t, hub, "c1", "browser-a", "alice", "pw")
	alice.Commands <- &Command{Kind: CommandCreateGroup, Group: GroupSpec{Name: "lobby"}}
	mustEventMatching(t, alice.Events, EventGroups, func(ev *Event) bool { return len(ev.Groups) == 1 })

	stale := NewClient("stale", 0)
	stale.Close("taken over")
	hub.subscribe(stale, "lobby")
	if n := hub.rooms.Get("lobby").Len(); n != 1 {
		t.Fatalf("lobby subscribers = %d, want only %s", n, aliceID.Key)
	}
}

func TestHubDirectMessageToOfflinePeer(t *testing.T) {
	hub := startHub(t)

	alice, aliceID := connect(t, hub, "c1", "browser-a", "alice", "pw")
	bob, bobID := connect(t, hub, "c2", "browser-b", "bob", "pw")
	hub.UnregisterClient(bob)
	mustEventMatching(t, alice.Events, EventClients, func(ev *Event) bool { return len(ev.Clients) == 1 })

	alice.Commands <- &Command{Kind: CommandSendMessage, Channel: bobID.Key, Body: "are you there?"}
	mustError(t, alice.Events, ErrCodeRecipientOffline)

	bobAgain, again := connect(t, hub, "c3", "browser-b", "bob", "pw")
	if again.Key != bobID.Key {
		t.Fatalf("bob should reclaim his identity")
	}
	hist := mustEventMatching(t, bobAgain.Events, EventHistory, func(ev *Event) bool { return ev.Channel == aliceID.Key })
	if len(hist.Messages) != 1 || hist.Messages[0].Body != "are you there?" || hist.Messages[0].From != aliceID.Key {
		t.Fatalf("unexpected direct replay: %+v", hist.Messages)
	}
}

func TestHubDirectMessageLive(t *testing.T) {
	hub := startHub(t)

	alice, aliceID := connect(t, hub, "c1", "browser-a", "alice", "pw")
	bob, bobID := connect(t, hub, "c2", "browser-b", "bob", "pw")
	carol, _ := connect(t, hub, "c3", "browser-c", "carol", "pw")

	alice.Commands <- &Command{Kind: CommandTyping, Channel: bobID.Key}
	typing := mustEvent(t, bob.Events, EventTyping)
	if typing.Channel != aliceID.Key || typing.User != aliceID.Key {
		t.Fatalf("unexpected typing event: %+v", typing)
	}

	alice.Commands <- &Command{Kind: CommandSendMessage, Channel: bobID.Key, Type: MessageSticker, Body: "sticker:wave"}
	ev := mustEvent(t, bob.Events, EventMessage)
	if ev.Channel != aliceID.Key || ev.Message.Type != MessageSticker {
		t.Fatalf("unexpected direct message: %+v", ev)
	}
	expectNoEvent(t, carol.Events, EventMessage)

	alice.Commands <- &Command{Kind: CommandSendMessage, Channel: aliceID.Key, Body: "me"}
	mustError(t, alice.Events, ErrCodeBadRequest)
}

func TestHubEditMessage(t *testing.T) {
	hub := startHub(t)

	alice, _ := connect(t, hub, "c1", "browser-a", "alice", "pw")
	bob, _ := connect(t, hub, "c2", "browser-b", "bob", "pw")

	alice.Commands <- &Command{Kind: CommandSendMessage, Body: "helo"}
	orig := mustEvent(t, bob.Events, EventMessage)

	bob.Commands <- &Command{Kind: CommandEditMessage, MessageID: orig.Message.ID, Body: "hijack"}
	mustError(t, bob.Events, ErrCodeNotSender)

	alice.Commands <- &Command{Kind: CommandEditMessage, MessageID: "missing", Body: "x"}
	mustError(t, alice.Events, ErrCodeMessageNotFound)

	alice.Commands <- &Command{Kind: CommandEditMessage, MessageID: orig.Message.ID, Body: "hello"}
	edited := mustEvent(t, bob.Events, EventMessage)
	if !edited.Message.Edited || edited.Message.Body != "hello" || edited.Message.ID != orig.Message.ID {
		t.Fatalf("unexpected edit: %+v", edited.Message)
	}
	own := mustEvent(t, alice.Events, EventMessage)
	if !own.Message.Edited {
		t.Fatalf("editor should receive the edited message")
	}
}

func TestHubRejectsInvalidBody(t *testing.T) {
	hub := startHub(t)

	alice, _ := connect(t, hub, "c1", "browser-a", "alice", "pw")
	alice.Commands <- &Command{Kind: CommandSendMessage, Body: "   "}
	mustError(t, alice.Events, ErrCodeBadRequest)

	alice.Commands <- &Command{Kind: CommandSendMessage, Type: "video", Body: "x"}
	mustError(t, alice.Events, ErrCodeBadRequest)
}

func waitForHistory(t *testing.T, hub *Hub, ref string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs, err := hub.History("observer#TEST", ref)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(msgs) >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("history of %q never reached %d messages", ref, n)
}
