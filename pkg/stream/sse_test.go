package stream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

func TestUpstreamReaderParsesEvents(t *testing.T) {
	raw := "data: {\"id\":\"1\"}\n\ndata: [DONE]\n\n"
	r := NewUpstreamReader(strings.NewReader(raw))

	ev, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Data != `{"id":"1"}` {
		t.Fatalf("data = %q", ev.Data)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !IsDone(ev.Data) {
		t.Fatalf("want [DONE] sentinel, got %q", ev.Data)
	}

	_, err = r.Next()
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestClientWriterFramesEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewClientWriter(&buf)
	if err := w.Write(dialect.PingEvent{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "event: ping\n") {
		t.Fatalf("output = %q, want event: ping prefix", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Fatalf("output = %q, want trailing blank line", out)
	}
}
