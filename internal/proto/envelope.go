package proto

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// Leading characters of standard base64 over gzip and zlib streams.
const (
	gzipBase64Prefix = "H4sI"
	zlibBase64Prefix = "eJ"
)

// Envelope is the transport-level form of a Message. It never leaves the
// transport.
type Envelope struct {
	SenderID     string
	Timestamp    int64
	Payload      []byte
	Compressed   bool
	OriginalSize int

	// inflated holds Payload already decompressed while sniffing a legacy
	// datagram, so it is not inflated twice.
	inflated []byte
}

// ShouldCompress reports whether text is larger than threshold bytes.
func ShouldCompress(text string, threshold int) bool {
	return len(text) > threshold
}

// ToEnvelope wraps m, compressing the content when it exceeds threshold.
func ToEnvelope(m Message, threshold int) (Envelope, error) {
	env := Envelope{
		SenderID:     m.SenderID,
		Timestamp:    m.Timestamp,
		OriginalSize: len(m.Content),
	}
	if !ShouldCompress(m.Content, threshold) {
		env.Payload = []byte(m.Content)
		return env, nil
	}

	compressed, err := Compress([]byte(m.Content))
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = compressed
	env.Compressed = true
	return env, nil
}

// EnvelopeToWire encodes env as a wire record. Compressed payloads travel as
// base64 text. The compression flag is always written, zero included, so
// raw text that happens to look like base64 gzip is never misread.
func EnvelopeToWire(env Envelope) []byte {
	r := record{
		senderID:       env.SenderID,
		timestamp:      env.Timestamp,
		hasCompression: true,
	}
	if env.Compressed {
		r.content = base64.StdEncoding.EncodeToString(env.Payload)
		r.compression = CompressionGzip
		r.originalSize = uint64(env.OriginalSize)
	} else {
		r.content = string(env.Payload)
	}
	return r.appendTo(nil)
}

// WireToEnvelope decodes a wire record, trusting compressedHint to decide
// whether content is base64 of compressed bytes. A zero originalSize falls
// back to the size carried in the record.
func WireToEnvelope(data []byte, compressedHint bool, originalSize int) (Envelope, error) {
	r, err := parseRecord(data)
	if err != nil {
		return Envelope{}, err
	}
	if originalSize == 0 {
		originalSize = int(r.originalSize)
	}
	return envelopeFromRecord(r, compressedHint, originalSize)
}

func envelopeFromRecord(r record, compressed bool, originalSize int) (Envelope, error) {
	env := Envelope{
		SenderID:     r.senderID,
		Timestamp:    r.timestamp,
		Compressed:   compressed,
		OriginalSize: originalSize,
	}
	if !compressed {
		env.Payload = []byte(r.content)
		if env.OriginalSize == 0 {
			env.OriginalSize = len(r.content)
		}
		return env, nil
	}

	payload, err := base64.StdEncoding.DecodeString(r.content)
	if err != nil {
		return Envelope{}, decodeErr("compressed content: %v", err)
	}
	env.Payload = payload
	return env, nil
}

// ParseWire decodes a received datagram into an envelope. The explicit
// compression field wins when present. Otherwise, if heuristic is set,
// content that looks like base64 gzip or zlib is treated as compressed as
// long as it actually decodes; anything else is raw text.
func ParseWire(data []byte, heuristic bool) (Envelope, error) {
	r, err := parseRecord(data)
	if err != nil {
		return Envelope{}, err
	}
	if r.hasCompression {
		return envelopeFromRecord(r, r.compression != CompressionNone, int(r.originalSize))
	}
	if heuristic && looksCompressed(r.content) {
		env, err := envelopeFromRecord(r, true, int(r.originalSize))
		if err == nil && detectFraming(env.Payload) != CompressionNone {
			if raw, err := Decompress(env.Payload); err == nil {
				env.inflated = raw
				return env, nil
			}
		}
	}
	return envelopeFromRecord(r, false, 0)
}

func looksCompressed(content string) bool {
	return strings.HasPrefix(content, gzipBase64Prefix) || strings.HasPrefix(content, zlibBase64Prefix)
}

// EnvelopeToMessage restores the message carried by env.
func EnvelopeToMessage(env Envelope) (Message, error) {
	content := env.Payload
	if env.Compressed {
		raw := env.inflated
		if raw == nil {
			var err error
			if raw, err = Decompress(env.Payload); err != nil {
				return Message{}, decodeErr("decompress: %v", err)
			}
		}
		if env.OriginalSize > 0 && len(raw) != env.OriginalSize {
			return Message{}, decodeErr("decompressed %d bytes, expected %d", len(raw), env.OriginalSize)
		}
		content = raw
	}
	if !utf8.Valid(content) {
		return Message{}, decodeErr("content: invalid utf-8")
	}
	return Message{
		SenderID:  env.SenderID,
		Timestamp: env.Timestamp,
		Content:   string(content),
	}, nil
}

// Marshal is ToEnvelope followed by EnvelopeToWire.
func Marshal(m Message, threshold int) ([]byte, error) {
	env, err := ToEnvelope(m, threshold)
	if err != nil {
		return nil, err
	}
	return EnvelopeToWire(env), nil
}

// Unmarshal is ParseWire followed by EnvelopeToMessage.
func Unmarshal(data []byte, heuristic bool) (Message, error) {
	env, err := ParseWire(data, heuristic)
	if err != nil {
		return Message{}, err
	}
	return EnvelopeToMessage(env)
}
