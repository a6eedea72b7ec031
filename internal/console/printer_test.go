package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/vovakirdan/conclave/internal/proto"
)

func TestPrintMessage(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	p := NewPrinter(&buf, "me")
	p.PrintMessage(proto.Message{SenderID: "peer", Content: "hello"})
	p.PrintMessage(proto.Message{SenderID: "me", Content: "hi back"})

	want := "peer: hello\nme: hi back\n"
	if buf.String() != want {
		t.Fatalf("transcript = %q, want %q", buf.String(), want)
	}
}

func TestNilPrinter(t *testing.T) {
	var p *Printer
	p.PrintMessage(proto.Message{SenderID: "x"})
}

func TestBanner(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	Banner(&buf, BannerInfo{NodeID: "node-1", Group: "239.255.255.250:8080", Backend: "openai", Model: "gpt-4o-mini", Admin: "127.0.0.1:9090"})
	out := buf.String()

	for _, want := range []string{"Node: node-1", "Group: 239.255.255.250:8080", "Backend: openai (gpt-4o-mini)", "Admin: http://127.0.0.1:9090"} {
		if !strings.Contains(out, want) {
			t.Fatalf("banner missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	Banner(&buf, BannerInfo{NodeID: "n", Group: "g", Backend: "echo"})
	if strings.Contains(buf.String(), "Admin:") {
		t.Fatalf("unexpected admin line:\n%s", buf.String())
	}
}
