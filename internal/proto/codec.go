package proto

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the wire record. 1-3 are the original schema; 4 and 5
// carry the compression flag so receivers don't have to guess.
const (
	fieldSenderID     protowire.Number = 1
	fieldTimestamp    protowire.Number = 2
	fieldContent      protowire.Number = 3
	fieldCompression  protowire.Number = 4
	fieldOriginalSize protowire.Number = 5
)

// ErrDecode reports a datagram that is not a valid encoded message.
var ErrDecode = errors.New("decode message")

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// record is the on-the-wire shape. content holds either raw text or base64
// of the compressed bytes.
type record struct {
	senderID       string
	timestamp      int64
	content        string
	compression    Compression
	hasCompression bool
	originalSize   uint64
}

func (r record) appendTo(b []byte) []byte {
	if r.senderID != "" {
		b = protowire.AppendTag(b, fieldSenderID, protowire.BytesType)
		b = protowire.AppendString(b, r.senderID)
	}
	if r.timestamp != 0 {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.timestamp))
	}
	if r.content != "" {
		b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
		b = protowire.AppendString(b, r.content)
	}
	if r.hasCompression || r.compression != CompressionNone {
		b = protowire.AppendTag(b, fieldCompression, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.compression))
	}
	if r.originalSize != 0 {
		b = protowire.AppendTag(b, fieldOriginalSize, protowire.VarintType)
		b = protowire.AppendVarint(b, r.originalSize)
	}
	return b
}

func parseRecord(data []byte) (record, error) {
	var r record
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return record{}, decodeErr("tag: %v", protowire.ParseError(n))
		}
		if num < protowire.MinValidNumber {
			return record{}, decodeErr("invalid field number %d", num)
		}
		data = data[n:]

		switch num {
		case fieldSenderID, fieldContent:
			if typ != protowire.BytesType {
				return record{}, decodeErr("field %d: unexpected wire type %d", num, typ)
			}
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return record{}, decodeErr("field %d: %v", num, protowire.ParseError(m))
			}
			if !utf8.Valid(v) {
				return record{}, decodeErr("field %d: invalid utf-8", num)
			}
			if num == fieldSenderID {
				r.senderID = string(v)
			} else {
				r.content = string(v)
			}
			n = m
		case fieldTimestamp, fieldCompression, fieldOriginalSize:
			if typ != protowire.VarintType {
				return record{}, decodeErr("field %d: unexpected wire type %d", num, typ)
			}
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return record{}, decodeErr("field %d: %v", num, protowire.ParseError(m))
			}
			switch num {
			case fieldTimestamp:
				r.timestamp = int64(v)
			case fieldCompression:
				if v > uint64(CompressionZlib) {
					return record{}, decodeErr("unknown compression %d", v)
				}
				r.compression = Compression(v)
				r.hasCompression = true
			default:
				r.originalSize = v
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return record{}, decodeErr("field %d: %v", num, protowire.ParseError(n))
			}
		}
		data = data[n:]
	}
	return r, nil
}

// Encode serializes m into the canonical wire form.
func Encode(m Message) []byte {
	return record{
		senderID:  m.SenderID,
		timestamp: m.Timestamp,
		content:   m.Content,
	}.appendTo(nil)
}

// Decode parses a wire record. Malformed input returns an error wrapping
// ErrDecode.
func Decode(data []byte) (Message, error) {
	r, err := parseRecord(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		SenderID:  r.senderID,
		Timestamp: r.timestamp,
		Content:   r.content,
	}, nil
}
