package proto

import "encoding/json"

// Inbound is the envelope for frames coming from a tap observer.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventBusMessage = "message"
	EventBusSent    = "sent"
	EventBusDropped = "dropped"
)

// HelloData is sent by an observer to announce the tap protocol it speaks.
type HelloData struct {
	Protocol int `json:"protocol,omitempty"`
}

// Outbound is the envelope for frames sent to an observer.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage mirrors one message seen on the bus.
type EventMessage struct {
	Node string `json:"node"`
	From string `json:"from"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
	Self bool   `json:"self,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
