package llm

import (
	"context"

	"creatorchat-service/internal/chat"
)

// Request describes one streaming completion: the composed system
// instruction, the bounded conversation window, and the new user turn.
type Request struct {
	System      string
	History     []chat.Message
	UserMessage string
}

// Stream is a lazy, finite, non-restartable sequence of text deltas.
// Recv returns io.EOF when generation completes; consumers read until
// then (or connection close), never a known item count.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Streamer opens a streaming completion against the language model.
type Streamer interface {
	StreamCompletion(ctx context.Context, req Request) (Stream, error)
}
