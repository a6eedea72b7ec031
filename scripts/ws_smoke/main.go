// ws_smoke connects to a node's admin tap and prints bus events.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/conclave/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:9090/ws", "tap WebSocket address")
	count := flag.Int("count", 1, "exit after this many events (0 = until timeout)")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	helloPayload, err := json.Marshal(proto.HelloData{Protocol: proto.ProtocolVersion})
	if err != nil {
		return fmt.Errorf("marshal hello: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: helloPayload}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	seen := 0
	for {
		var outbound struct {
			Type  string             `json:"type"`
			Event string             `json:"event"`
			Data  proto.EventMessage `json:"data"`
			Error *proto.Error       `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			return fmt.Errorf("tap error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}

		evt := outbound.Data
		fmt.Printf("%s node=%s from=%s self=%t ts=%d text=%q\n",
			outbound.Event, evt.Node, evt.From, evt.Self, evt.TS, evt.Text)

		seen++
		if *count > 0 && seen >= *count {
			return nil
		}
	}
}
