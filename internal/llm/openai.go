package llm

import (
	"context"

	"creatorchat-service/pkg/config"

	openai "github.com/sashabaranov/go-openai"
)

// Fixed sampling parameters for persona chat.
const (
	chatTemperature = 0.7
	chatMaxTokens   = 500
)

// OpenAIStreamer implements Streamer on the OpenAI chat completions API.
type OpenAIStreamer struct {
	client *openai.Client
	model  string
}

// NewOpenAIStreamer creates a streamer from service configuration.
func NewOpenAIStreamer(cfg *config.OpenAIConfig) *OpenAIStreamer {
	return &OpenAIStreamer{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}
}

// StreamCompletion opens a streaming completion. The returned stream
// yields raw text deltas; empty deltas are passed through for the
// caller to skip.
func (s *OpenAIStreamer) StreamCompletion(ctx context.Context, req Request) (Stream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, m := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserMessage,
	})

	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &openaiStream{inner: stream}, nil
}

type openaiStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next text delta, or io.EOF when the model finishes.
func (s *openaiStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}

var _ Streamer = (*OpenAIStreamer)(nil)
