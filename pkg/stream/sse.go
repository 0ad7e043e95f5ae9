package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/kir-gadjello/ant-router/pkg/dialect"
)

// UpstreamEvent is one raw SSE event read off the upstream OpenAI-dialect
// connection, before JSON decoding.
type UpstreamEvent struct {
	Event string
	Data  string
}

// UpstreamReader parses an upstream SSE byte stream into events.
type UpstreamReader struct {
	scanner *bufio.Scanner
}

// NewUpstreamReader wraps r as a line-oriented SSE event reader.
func NewUpstreamReader(r io.Reader) *UpstreamReader {
	return &UpstreamReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next event, or io.EOF when the stream ends normally.
func (p *UpstreamReader) Next() (*UpstreamEvent, error) {
	event := &UpstreamEvent{}
	var dataLines []string

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 || event.Event != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}
		field := line[:colonIdx]
		value := line[colonIdx+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}
	if len(dataLines) > 0 || event.Event != "" {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}
	return nil, io.EOF
}

// IsDone reports whether a raw data payload is the upstream's terminal
// "[DONE]" sentinel.
func IsDone(data string) bool {
	return strings.TrimSpace(data) == "[DONE]"
}

// ClientWriter encodes Anthropic-dialect StreamEvents as SSE frames onto w.
type ClientWriter struct {
	w io.Writer
}

// NewClientWriter wraps w (typically an http.ResponseWriter paired with a
// Flusher) as a StreamEvent encoder.
func NewClientWriter(w io.Writer) *ClientWriter {
	return &ClientWriter{w: w}
}

// Write encodes and writes one event as an "event: ...\ndata: ...\n\n" frame.
func (c *ClientWriter) Write(e dialect.StreamEvent) error {
	name, data, err := dialect.EncodeStreamEvent(e)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: %s\n", name)
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}
	buf.WriteString("\n")
	_, err = c.w.Write(buf.Bytes())
	return err
}
