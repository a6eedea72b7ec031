// Package console prints the human-readable transcript of a node: one
// "sender: content" line per processed message and reply.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/vovakirdan/conclave/internal/proto"
)

// Printer writes transcript lines. Own messages and peer messages are
// colored differently. Safe for concurrent use.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	nodeID string
	self   *color.Color
	peer   *color.Color
	text   *color.Color
}

// NewPrinter returns a printer writing to out. color.NoColor disables
// escape sequences globally.
func NewPrinter(out io.Writer, nodeID string) *Printer {
	return &Printer{
		out:    out,
		nodeID: nodeID,
		self:   color.New(color.FgGreen, color.Bold),
		peer:   color.New(color.FgCyan, color.Bold),
		text:   color.New(color.Reset),
	}
}

// PrintMessage writes one transcript line for m.
func (p *Printer) PrintMessage(m proto.Message) {
	if p == nil {
		return
	}
	name := p.peer
	if m.SenderID == p.nodeID {
		name = p.self
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s: %s\n", name.Sprint(m.SenderID), p.text.Sprint(m.Content))
}

// BannerInfo describes a node at startup.
type BannerInfo struct {
	NodeID  string
	Group   string
	Backend string
	Model   string
	Admin   string
}

// Banner prints the startup summary.
func Banner(w io.Writer, info BannerInfo) {
	title := color.New(color.FgMagenta, color.Bold)
	label := color.New(color.Faint)

	title.Fprintln(w, "conclave")
	fmt.Fprintf(w, "%s %s\n", label.Sprint("Node:"), info.NodeID)
	fmt.Fprintf(w, "%s %s\n", label.Sprint("Group:"), info.Group)
	backend := info.Backend
	if info.Model != "" {
		backend += " (" + info.Model + ")"
	}
	fmt.Fprintf(w, "%s %s\n", label.Sprint("Backend:"), backend)
	if info.Admin != "" {
		fmt.Fprintf(w, "%s http://%s\n", label.Sprint("Admin:"), info.Admin)
	}
}
