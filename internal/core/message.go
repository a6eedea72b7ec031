package core

import "github.com/vovakirdan/conclave/internal/proto"

// NewMessageQueue builds the intake queue for bus messages. Messages sent
// by ownID are filtered out on pop.
func NewMessageQueue(capacity int, ownID string) *Queue[proto.Message] {
	return NewQueue(capacity, ownID, messageSender)
}

func messageSender(m proto.Message) string {
	return m.SenderID
}
