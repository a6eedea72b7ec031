package http

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/conclave/internal/core"
	"github.com/vovakirdan/conclave/internal/proto"
)

func TestProtocolVersionMismatch(t *testing.T) {
	ts := startTestServer(t, Sources{})

	cctx, closeCtx := context.WithTimeout(context.Background(), 3*time.Second)
	defer closeCtx()

	conn := dialTap(t, cctx, ts)

	helloPayload, _ := json.Marshal(proto.HelloData{Protocol: proto.ProtocolVersion + 1})
	if writeErr := wsjson.Write(cctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: helloPayload}); writeErr != nil {
		t.Fatalf("send hello: %v", writeErr)
	}

	var outbound proto.Outbound
	if err := wsjson.Read(cctx, conn, &outbound); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if outbound.Type != proto.OutboundTypeError || outbound.Error == nil || outbound.Error.Code != core.ErrCodeUnsupportedVersion {
		t.Fatalf("expected unsupported_version error, got %+v", outbound)
	}
}

func TestUnknownFrameIsRejected(t *testing.T) {
	ts := startTestServer(t, Sources{})

	cctx, closeCtx := context.WithTimeout(context.Background(), 3*time.Second)
	defer closeCtx()

	conn := dialTap(t, cctx, ts)

	// A matching hello gets no answer, so the next frame read is the rejection.
	helloPayload, _ := json.Marshal(proto.HelloData{Protocol: proto.ProtocolVersion})
	if err := wsjson.Write(cctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: helloPayload}); err != nil {
		t.Fatalf("send hello: %v", err)
	}
	if err := wsjson.Write(cctx, conn, proto.Inbound{Type: "msg"}); err != nil {
		t.Fatalf("send msg: %v", err)
	}

	var outbound proto.Outbound
	if err := wsjson.Read(cctx, conn, &outbound); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if outbound.Error == nil || outbound.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", outbound)
	}
}

func TestInboundError(t *testing.T) {
	tests := []struct {
		name    string
		inbound proto.Inbound
		code    string
	}{
		{"hello without data", proto.Inbound{Type: proto.InboundTypeHello}, ""},
		{"hello current", proto.Inbound{Type: proto.InboundTypeHello, Data: json.RawMessage(`{"protocol":1}`)}, ""},
		{"hello future", proto.Inbound{Type: proto.InboundTypeHello, Data: json.RawMessage(`{"protocol":9}`)}, core.ErrCodeUnsupportedVersion},
		{"hello malformed", proto.Inbound{Type: proto.InboundTypeHello, Data: json.RawMessage(`"x"`)}, core.ErrCodeBadRequest},
		{"unknown", proto.Inbound{Type: "join"}, core.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inboundError(tt.inbound)
			got := ""
			if err != nil {
				got = err.Code
			}
			if got != tt.code {
				t.Fatalf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter(2, time.Hour)
	if !limiter.allow() || !limiter.allow() {
		t.Fatalf("first frames should pass")
	}
	if limiter.allow() {
		t.Fatalf("third frame should be limited")
	}

	var unlimited *rateLimiter
	if !unlimited.allow() {
		t.Fatalf("nil limiter should allow")
	}
}
