package proto

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "plain", msg: Message{SenderID: "agent-1", Timestamp: 1700000000, Content: "Hello, world!"}},
		{name: "empty content", msg: Message{SenderID: "agent-1", Timestamp: 1700000000}},
		{name: "unicode", msg: Message{SenderID: "agent-2", Timestamp: 42, Content: "Hello 世界! 🌍"}},
		{name: "negative timestamp", msg: Message{SenderID: "x", Timestamp: -5, Content: "past"}},
		{name: "zero value", msg: Message{}},
		{name: "large", msg: Message{SenderID: "big", Timestamp: 1, Content: strings.Repeat("lorem ipsum ", 4000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(Encode(tt.msg))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.msg {
				t.Fatalf("round trip mismatch: got %+v want %+v", got, tt.msg)
			}
		})
	}
}

func TestEncodeIsCanonical(t *testing.T) {
	msg := NewMessage("agent-1", "same bytes")
	if !bytes.Equal(Encode(msg), Encode(msg)) {
		t.Fatalf("encoding is not deterministic")
	}
	decoded, err := Decode(Encode(msg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(Encode(decoded), Encode(msg)) {
		t.Fatalf("re-encoding changed the bytes")
	}
}

func TestDecodeMalformed(t *testing.T) {
	truncated := Encode(Message{SenderID: "agent-1", Timestamp: 99, Content: "cut short"})
	truncated = truncated[:len(truncated)-3]

	wrongType := protowire.AppendTag(nil, fieldSenderID, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 7)

	badUTF8 := protowire.AppendTag(nil, fieldContent, protowire.BytesType)
	badUTF8 = protowire.AppendBytes(badUTF8, []byte{0xff, 0xfe})

	tests := []struct {
		name string
		data []byte
	}{
		{name: "all ones", data: []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{name: "truncated", data: truncated},
		{name: "wrong wire type", data: wrongType},
		{name: "invalid utf-8", data: badUTF8},
		{name: "field zero", data: []byte{0x00, 0x01}},
		{name: "dangling length", data: []byte{0x1a, 0x10, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	data := Encode(Message{SenderID: "agent-1", Timestamp: 7, Content: "hi"})
	data = protowire.AppendTag(data, 42, protowire.BytesType)
	data = protowire.AppendString(data, "future field")

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Content != "hi" || got.SenderID != "agent-1" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestDecodeNeverPanicsOnPrefixes(t *testing.T) {
	data := Encode(Message{SenderID: "agent-1", Timestamp: 1700000000, Content: "Hello 世界"})
	for i := 0; i <= len(data); i++ {
		_, _ = Decode(data[:i])
	}
}

func TestMessageAge(t *testing.T) {
	msg := NewMessage("a", "b")
	if msg.Timestamp <= 0 {
		t.Fatalf("expected positive timestamp, got %d", msg.Timestamp)
	}
	future := Message{Timestamp: msg.Timestamp + 3600}
	if future.Age() != 0 {
		t.Fatalf("future message should have zero age, got %v", future.Age())
	}
}
