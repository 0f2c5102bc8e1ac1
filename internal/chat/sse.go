package chat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// doneSentinel is the terminal marker closing a chat response stream.
// It is sent as a literal payload, not JSON.
const doneSentinel = "[DONE]"

// sourcesEvent is always the first frame of a stream, even when empty.
type sourcesEvent struct {
	Sources []string `json:"sources"`
}

// contentEvent carries one generated-text increment.
type contentEvent struct {
	Content string `json:"content"`
}

// EventWriter emits server-sent-event frames (`data: <payload>\n\n`)
// and flushes after every frame so increments reach the client
// immediately, with no buffering or batching.
type EventWriter struct {
	w io.Writer
	f http.Flusher
}

// NewEventWriter wraps a response writer. Flushing is best-effort: a
// writer that is not an http.Flusher is still usable (tests, buffers).
func NewEventWriter(w io.Writer) *EventWriter {
	ew := &EventWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		ew.f = f
	}
	return ew
}

// WriteSources emits the sources manifest frame.
func (ew *EventWriter) WriteSources(sources []string) error {
	if sources == nil {
		sources = []string{}
	}
	return ew.writeJSON(sourcesEvent{Sources: sources})
}

// WriteContent emits one generated-text increment.
func (ew *EventWriter) WriteContent(delta string) error {
	return ew.writeJSON(contentEvent{Content: delta})
}

// WriteDone emits the terminal sentinel.
func (ew *EventWriter) WriteDone() error {
	return ew.writeFrame(doneSentinel)
}

func (ew *EventWriter) writeJSON(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ew.writeFrame(string(data))
}

func (ew *EventWriter) writeFrame(payload string) error {
	if _, err := fmt.Fprintf(ew.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if ew.f != nil {
		ew.f.Flush()
	}
	return nil
}

// StreamEvent is one decoded frame of a chat stream.
type StreamEvent struct {
	// Sources is non-nil for the sources manifest frame.
	Sources []string
	// Content is the text increment for a content frame.
	Content string
	// Done marks the terminal sentinel.
	Done bool
}

// StreamReader reconstructs chat events from an SSE byte stream. It
// tolerates a single read yielding several frames or a frame split
// across reads, and discards frames whose payload fails JSON parsing
// without aborting the stream.
type StreamReader struct {
	r *bufio.Reader
}

// NewStreamReader wraps a raw response body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: bufio.NewReader(r)}
}

// Next returns the next decoded event. It returns io.EOF after the
// terminal sentinel or when the connection closes.
func (sr *StreamReader) Next() (StreamEvent, error) {
	for {
		payload, err := sr.nextPayload()
		if err != nil {
			return StreamEvent{}, err
		}

		if payload == doneSentinel {
			return StreamEvent{Done: true}, nil
		}

		var frame struct {
			Sources *[]string `json:"sources"`
			Content *string   `json:"content"`
		}
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			// Malformed frame: drop it and keep reading.
			continue
		}
		switch {
		case frame.Sources != nil:
			return StreamEvent{Sources: *frame.Sources}, nil
		case frame.Content != nil:
			return StreamEvent{Content: *frame.Content}, nil
		default:
			continue
		}
	}
}

// nextPayload reads up to the next blank-line frame boundary and strips
// the "data: " prefix.
func (sr *StreamReader) nextPayload() (string, error) {
	var lines []string
	for {
		line, err := sr.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(line) != "" {
				lines = append(lines, line)
				break
			}
			if err == io.EOF && len(lines) > 0 {
				break
			}
			return "", err
		}

		if strings.TrimSpace(line) == "" {
			if len(lines) == 0 {
				continue // leading blank line between frames
			}
			break
		}
		lines = append(lines, line)
	}

	payload := strings.TrimSpace(strings.Join(lines, ""))
	payload = strings.TrimPrefix(payload, "data:")
	return strings.TrimSpace(payload), nil
}
