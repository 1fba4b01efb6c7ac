package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin           = "join"
	InboundTypeSendMessage    = "send_message"
	InboundTypeCreateGroup    = "create_group"
	InboundTypeJoinGroup      = "join_group"
	InboundTypeRequestHistory = "request_history"
	InboundTypeEditMessage    = "edit_message"
	InboundTypeTyping         = "typing"
	InboundTypeStopTyping     = "stop_typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Protocol-level error codes. Domain error codes come from the core package.
const (
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeRateLimited        = "rate_limited"
)

// JoinData is sent by the client to become an identity.
type JoinData struct {
	DisplayName string `json:"display_name"`
	Credential  string `json:"credential"`
	ClientID    string `json:"client_id"`
	Protocol    int    `json:"protocol,omitempty"`
}

// SendMessageData sends a message. Destination is empty for broadcast,
// a group name, or a peer identity key.
type SendMessageData struct {
	Destination string `json:"destination"`
	Body        string `json:"body"`
	Type        string `json:"type,omitempty"`
}

// CreateGroupData creates a named group.
type CreateGroupData struct {
	Name       string   `json:"name"`
	Members    []string `json:"members,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
}

// JoinGroupData requests membership of a group.
type JoinGroupData struct {
	Name string `json:"name"`
}

// ChannelData names a channel for request_history, typing and stop_typing.
type ChannelData struct {
	Channel string `json:"channel"`
}

// EditMessageData replaces the body of a previously sent message.
type EditMessageData struct {
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventJoined acknowledges a join request.
type EventJoined struct {
	Success     bool   `json:"success"`
	Identity    string `json:"identity,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Token       string `json:"token,omitempty"`
	Error       *Error `json:"error,omitempty"`
}

// EventMessage is a new or edited message. Channel is relative to the
// receiver: empty for broadcast, the group name, or the peer identity key.
type EventMessage struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	From    string `json:"from"`
	Type    string `json:"type"`
	Body    string `json:"body"`
	TS      int64  `json:"ts"`
	Edited  bool   `json:"edited,omitempty"`
}

// EventHistory replays one channel's messages.
type EventHistory struct {
	Channel  string         `json:"channel"`
	Messages []EventMessage `json:"messages"`
}

// EventClients is the presence snapshot.
type EventClients struct {
	Clients []string `json:"clients"`
}

// GroupInfo describes a group in a groups snapshot.
type GroupInfo struct {
	Name       string   `json:"name"`
	Visibility string   `json:"visibility"`
	Members    []string `json:"members"`
	CreatedAt  int64    `json:"created_at"`
}

// EventGroups is the group list snapshot.
type EventGroups struct {
	Groups []GroupInfo `json:"groups"`
}

// EventGroupMembers announces a group's member list.
type EventGroupMembers struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// EventTyping is an ephemeral typing indicator.
type EventTyping struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
}

// EventForcedDisconnect precedes the server closing a taken-over connection.
type EventForcedDisconnect struct {
	Reason string `json:"reason"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
