package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin authenticates the connection as an identity.
	CommandJoin CommandKind = iota
	// CommandSendMessage routes a message to broadcast, a group, or a peer.
	CommandSendMessage
	// CommandCreateGroup creates a named group.
	CommandCreateGroup
	// CommandJoinGroup adds the client to a group and subscribes it.
	CommandJoinGroup
	// CommandRequestHistory replays one channel to the requester.
	CommandRequestHistory
	// CommandEditMessage replaces the body of a previously sent message.
	CommandEditMessage
	// CommandTyping and CommandStopTyping relay typing indicators.
	CommandTyping
	CommandStopTyping
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	Join JoinRequest
	// Channel is the channel reference: empty for broadcast, a group name,
	// or a peer identity key.
	Channel   string
	Type      MessageType
	Body      string
	MessageID string
	Group     GroupSpec
}

// GroupSpec describes a group to create.
type GroupSpec struct {
	Name       string
	Visibility Visibility
	Members    []string
}
