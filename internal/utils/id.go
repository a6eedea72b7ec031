package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random unique identifier.
func NewID() string {
	return uuid.NewString()
}

// NewNodeID returns a short node identifier of the form node-xxxxxxxx,
// valid as a bus sender id.
func NewNodeID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "node-" + id[:8]
}
