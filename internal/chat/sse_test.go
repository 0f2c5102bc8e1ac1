package chat

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWriterFraming(t *testing.T) {
	var buf bytes.Buffer
	w := NewEventWriter(&buf)

	require.NoError(t, w.WriteSources([]string{"Doc1", "Doc2"}))
	require.NoError(t, w.WriteContent("Hel"))
	require.NoError(t, w.WriteContent("lo"))
	require.NoError(t, w.WriteDone())

	out := buf.String()
	assert.Equal(t, `data: {"sources":["Doc1","Doc2"]}`+"\n\n"+
		`data: {"content":"Hel"}`+"\n\n"+
		`data: {"content":"lo"}`+"\n\n"+
		"data: [DONE]\n\n", out)
}

func TestEventWriterNilSourcesIsEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	w := NewEventWriter(&buf)

	require.NoError(t, w.WriteSources(nil))
	assert.Equal(t, `data: {"sources":[]}`+"\n\n", buf.String())
}

func TestStreamReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewEventWriter(&buf)
	require.NoError(t, w.WriteSources([]string{"Doc1"}))
	require.NoError(t, w.WriteContent("Hel"))
	require.NoError(t, w.WriteContent("lo"))
	require.NoError(t, w.WriteDone())

	r := NewStreamReader(&buf)

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"Doc1"}, ev.Sources)

	var content strings.Builder
	for {
		ev, err = r.Next()
		require.NoError(t, err)
		if ev.Done {
			break
		}
		content.WriteString(ev.Content)
	}
	assert.Equal(t, "Hello", content.String())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

// chunkedReader yields its pieces one Read at a time, simulating frames
// split across network reads.
type chunkedReader struct {
	chunks []string
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	if n == len(c.chunks[0]) {
		c.chunks = c.chunks[1:]
	} else {
		c.chunks[0] = c.chunks[0][n:]
	}
	return n, nil
}

func TestStreamReaderSplitFrames(t *testing.T) {
	r := NewStreamReader(&chunkedReader{chunks: []string{
		"data: {\"content\":", "\"Hel\"}\n", "\n",
		"data: {\"content\":\"lo\"}\n\ndata: [DONE]\n\n",
	}})

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Hel", ev.Content)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "lo", ev.Content)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.True(t, ev.Done)
}

func TestStreamReaderDiscardsMalformedFrames(t *testing.T) {
	raw := "data: {not json}\n\n" +
		"data: {\"content\":\"ok\"}\n\n" +
		"data: [DONE]\n\n"
	r := NewStreamReader(strings.NewReader(raw))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ok", ev.Content)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.True(t, ev.Done)
}

func TestStreamReaderEOFWithoutSentinel(t *testing.T) {
	r := NewStreamReader(strings.NewReader("data: {\"content\":\"partial\"}\n\n"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "partial", ev.Content)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
