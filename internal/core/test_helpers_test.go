package core

import (
	"testing"
	"time"

	"github.com/vovakirdan/conclave/internal/proto"
)

// mustEvent waits for the next event of kind on ch, skipping others.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", kind)
			}
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("expected event kind %s not received", kind)
			return nil
		}
	}
}

func msgFrom(sender, content string) proto.Message {
	return proto.Message{SenderID: sender, Timestamp: 1, Content: content}
}
