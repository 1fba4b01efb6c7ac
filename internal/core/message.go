package core

import "time"

// MessageType distinguishes plain text from sticker references.
type MessageType string

const (
	MessageText    MessageType = "text"
	MessageSticker MessageType = "sticker"
)

// Message is the domain model for a chat message.
type Message struct {
	ID string
	// From is the sender's identity key.
	From string
	// To is the nominal destination: empty for broadcast, a group name, or
	// the recipient's identity key.
	To string
	// Channel is the history channel the message was appended to.
	Channel string
	Type    MessageType
	Body    string
	SentAt  time.Time
	Edited  bool
}
