package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeQueueFull          = "queue_full"
	ErrCodeQueueClosed        = "queue_closed"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeRateLimited        = "rate_limited"
)

var (
	// ErrQueueFull is returned by TryPush when the queue is at capacity.
	// Callers drop the item and carry on.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueClosed is returned once the other side of the queue is gone.
	ErrQueueClosed = errors.New("queue closed")
	// ErrHubStopped is returned when registering with a hub that is not running.
	ErrHubStopped = errors.New("hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorCode maps a core error to its code, or "" for foreign errors.
func ErrorCode(err error) string {
	var ce *CoreError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, ErrQueueFull):
		return ErrCodeQueueFull
	case errors.Is(err, ErrQueueClosed):
		return ErrCodeQueueClosed
	default:
		return ""
	}
}

// UnsupportedVersion builds the error sent to observers speaking another
// tap protocol version.
func UnsupportedVersion(msg string) *CoreError {
	return coreError(ErrCodeUnsupportedVersion, msg)
}

// BadRequest builds the error sent for malformed observer frames.
func BadRequest(msg string) *CoreError {
	return coreError(ErrCodeBadRequest, msg)
}

// RateLimited builds the error sent to observers flooding the tap.
func RateLimited(msg string) *CoreError {
	return coreError(ErrCodeRateLimited, msg)
}
