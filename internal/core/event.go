package core

import (
	"time"

	"github.com/vovakirdan/conclave/internal/proto"
)

// EventKind is a notification the core emits to observers.
type EventKind int

const (
	// EventReceived reports a message read off the bus, own broadcasts included.
	EventReceived EventKind = iota
	// EventSent reports a message this node broadcast.
	EventSent
	// EventDropped reports a message dropped because the intake queue was full.
	EventDropped
)

func (k EventKind) String() string {
	switch k {
	case EventReceived:
		return "received"
	case EventSent:
		return "sent"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event describes something that happened on the bus.
type Event struct {
	Kind    EventKind
	Message proto.Message
	Self    bool
	At      time.Time
}

// NewEvent stamps an event with the current time.
func NewEvent(kind EventKind, msg proto.Message, self bool) *Event {
	return &Event{
		Kind:    kind,
		Message: msg,
		Self:    self,
		At:      time.Now(),
	}
}
