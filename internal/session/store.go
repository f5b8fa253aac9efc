package session

import "time"

// Store is the append-only, insertion-ordered message log of one session.
// It is not safe for concurrent use; the controller owning it serializes access.
type Store struct {
	messages []Message
	nextID   int
}

// NewStore creates an empty message store
func NewStore() *Store {
	return &Store{nextID: 1}
}

// Append assigns the next id to a new message and appends it
func (s *Store) Append(role Role, content string, ts time.Time) Message {
	msg := Message{
		ID:        s.nextID,
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}
	s.nextID++
	s.messages = append(s.messages, msg)
	return msg
}

// All returns a snapshot of the messages in insertion order
func (s *Store) All() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages
func (s *Store) Len() int {
	return len(s.messages)
}

// Last returns the most recent message, if any
func (s *Store) Last() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}
