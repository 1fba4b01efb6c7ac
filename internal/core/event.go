package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventJoined acknowledges a join request, successful or not.
	EventJoined EventKind = iota
	// EventMessage delivers a new or edited message.
	EventMessage
	// EventHistory replays a channel's messages to a single client.
	EventHistory
	// EventClients carries the presence snapshot.
	EventClients
	// EventGroups carries the group list snapshot.
	EventGroups
	// EventGroupMembers carries a group's member list.
	EventGroupMembers
	// EventTyping and EventStopTyping are ephemeral typing indicators.
	EventTyping
	EventStopTyping
	// EventForcedDisconnect precedes termination after a takeover.
	EventForcedDisconnect
	// EventError notifies the requester about a failed operation.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventMessage:
		return "message"
	case EventHistory:
		return "chat_history"
	case EventClients:
		return "clients"
	case EventGroups:
		return "groups"
	case EventGroupMembers:
		return "group_members"
	case EventTyping:
		return "typing"
	case EventStopTyping:
		return "stop_typing"
	case EventForcedDisconnect:
		return "forced_disconnect"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind
	// Channel is the channel reference as seen by the receiving client:
	// empty for broadcast, the group name, or the peer's identity key.
	Channel  string
	User     string
	Message  Message
	Messages []Message   // EventHistory
	Clients  []string    // EventClients
	Groups   []Group     // EventGroups
	Group    string      // EventGroupMembers
	Members  []string    // EventGroupMembers
	Join     *JoinResult // EventJoined
	Reason   string      // EventForcedDisconnect
	Error    *CoreError
}

// JoinResult is the payload of a join acknowledgement.
type JoinResult struct {
	Success  bool
	Identity Identity
	Token    string
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
