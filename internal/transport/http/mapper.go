package http

import (
	"encoding/json"

	"github.com/vovakirdan/conclave/internal/core"
	"github.com/vovakirdan/conclave/internal/proto"
)

// inboundError checks an observer frame. Observers only announce
// themselves; anything else is answered with an error frame.
func inboundError(inbound proto.Inbound) *core.CoreError {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var hello proto.HelloData
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &hello); err != nil {
				return core.BadRequest("malformed hello")
			}
		}
		if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
			return core.UnsupportedVersion("unsupported protocol version")
		}
		return nil
	default:
		return core.BadRequest("unknown message type")
	}
}

func errorFrame(err *core.CoreError) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: err.Code, Msg: err.Message},
	}
}

func outboundFromEvent(nodeID string, event *core.Event) proto.Outbound {
	name := proto.EventBusMessage
	switch event.Kind {
	case core.EventSent:
		name = proto.EventBusSent
	case core.EventDropped:
		name = proto.EventBusDropped
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: name,
		Data: proto.EventMessage{
			Node: nodeID,
			From: event.Message.SenderID,
			Text: event.Message.Content,
			TS:   event.At.Unix(),
			Self: event.Self,
		},
	}
}
