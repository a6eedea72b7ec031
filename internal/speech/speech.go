// Package speech plays replies aloud. Playback is best effort; callers log
// failures and move on.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// textPlaceholder in a command's arguments is replaced by the reply text.
// Without it the text is written to the command's stdin.
const textPlaceholder = "{text}"

// ErrNoCommand is returned when a command speaker is built from an empty
// command line.
var ErrNoCommand = errors.New("speech command is empty")

// Speaker plays text.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Speak(context.Context, string) error { return nil }

// Command runs an external text-to-speech program per reply, such as
// "espeak --stdin" or "say {text}".
type Command struct {
	name    string
	args    []string
	timeout time.Duration
}

// NewCommand parses a whitespace separated command line.
func NewCommand(cmdline string, timeout time.Duration) (*Command, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}
	return &Command{name: fields[0], args: fields[1:], timeout: timeout}, nil
}

// New returns Nop for an empty command line and a Command otherwise.
func New(cmdline string, timeout time.Duration) (Speaker, error) {
	if strings.TrimSpace(cmdline) == "" {
		return Nop{}, nil
	}
	return NewCommand(cmdline, timeout)
}

func (c *Command) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := make([]string, len(c.args))
	substituted := false
	for i, a := range c.args {
		if strings.Contains(a, textPlaceholder) {
			a = strings.ReplaceAll(a, textPlaceholder, text)
			substituted = true
		}
		args[i] = a
	}

	cmd := exec.CommandContext(ctx, c.name, args...)
	if !substituted {
		cmd.Stdin = strings.NewReader(text)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("run %s: %w: %s", c.name, err, msg)
		}
		return fmt.Errorf("run %s: %w", c.name, err)
	}
	return nil
}
