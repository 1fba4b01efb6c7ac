package core

import (
	"slices"
	"sync"
)

type channelLog struct {
	messages []Message
	index    map[string]int
}

// HistoryStore keeps per-channel message logs in append order.
// Logs grow without bound for the lifetime of the process.
type HistoryStore struct {
	mu       sync.RWMutex
	channels map[string]*channelLog
	// peers indexes direct channels by participant, in first-message order.
	peers map[string][]string
}

// NewHistoryStore creates an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		channels: make(map[string]*channelLog),
		peers:    make(map[string][]string),
	}
}

// Append adds msg to the end of the channel's log.
func (s *HistoryStore) Append(key string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(key, msg)
}

// AppendDirect appends to the direct channel between from and to and records
// both participants so the channel can be replayed on join.
func (s *HistoryStore) AppendDirect(from, to string, msg Message) string {
	key := DirectChannelKey(from, to)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.channels[key]; !exists {
		s.peers[from] = append(s.peers[from], to)
		if from != to {
			s.peers[to] = append(s.peers[to], from)
		}
	}
	s.appendLocked(key, msg)
	return key
}

func (s *HistoryStore) appendLocked(key string, msg Message) {
	log, ok := s.channels[key]
	if !ok {
		log = &channelLog{index: make(map[string]int)}
		s.channels[key] = log
	}
	msg.Channel = key
	log.index[msg.ID] = len(log.messages)
	log.messages = append(log.messages, msg)
}

// Read returns a copy of the channel's messages in append order.
func (s *HistoryStore) Read(key string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.channels[key]
	if !ok {
		return nil
	}
	return slices.Clone(log.messages)
}

// Get returns one message from a channel.
func (s *HistoryStore) Get(key, id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.channels[key]
	if !ok {
		return Message{}, false
	}
	i, ok := log.index[id]
	if !ok {
		return Message{}, false
	}
	return log.messages[i], true
}

// Edit replaces the body of message id within the channel and marks it edited.
// ID and SentAt are preserved.
func (s *HistoryStore) Edit(key, id, body string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.channels[key]
	if !ok {
		return Message{}, ErrMessageNotFound
	}
	i, ok := log.index[id]
	if !ok {
		return Message{}, ErrMessageNotFound
	}
	log.messages[i].Body = body
	log.messages[i].Edited = true
	return log.messages[i], nil
}

// DirectPeers lists identities key has a direct channel with.
func (s *HistoryStore) DirectPeers(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.peers[key])
}
