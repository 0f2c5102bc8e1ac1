package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"creatorchat-service/internal/chat"
	"creatorchat-service/internal/identity"
	"creatorchat-service/internal/llm"
	"creatorchat-service/internal/ragie"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeVerifier struct {
	user *identity.VerifiedUser
}

func (v *fakeVerifier) Verify(_ context.Context, token string) *identity.VerifiedUser {
	if token == "" {
		return nil
	}
	return v.user
}

type fakeRetriever struct {
	calls  int
	result ragie.RetrievalResult
}

func (r *fakeRetriever) Retrieve(_ context.Context, _, _ string) ragie.RetrievalResult {
	r.calls++
	return r.result
}

type fakeStream struct {
	deltas []string
	err    error // returned after the deltas run out, instead of io.EOF
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	delta := s.deltas[0]
	s.deltas = s.deltas[1:]
	return delta, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeStreamer struct {
	calls   int
	lastReq llm.Request
	stream  *fakeStream
	openErr error
}

func (s *fakeStreamer) StreamCompletion(_ context.Context, req llm.Request) (llm.Stream, error) {
	s.calls++
	s.lastReq = req
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.stream, nil
}

func chatTestContext(t *testing.T, body, token string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func authedUser() *identity.VerifiedUser {
	return &identity.VerifiedUser{UID: "uid-1", Email: "fan@example.com"}
}

// --- tests ---

func TestHandleChatUnauthenticated(t *testing.T) {
	retriever := &fakeRetriever{}
	streamer := &fakeStreamer{stream: &fakeStream{}}
	h := NewChatHandler(&fakeVerifier{user: nil}, retriever, streamer)

	c, rec := chatTestContext(t, `{"message":"hi","orgId":"o1"}`, "bad-token")
	require.NoError(t, h.HandleChat(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// An unauthenticated request must not cost a retrieval or model call.
	assert.Zero(t, retriever.calls)
	assert.Zero(t, streamer.calls)
}

func TestHandleChatMissingFields(t *testing.T) {
	h := NewChatHandler(&fakeVerifier{user: authedUser()}, &fakeRetriever{}, &fakeStreamer{stream: &fakeStream{}})

	c, rec := chatTestContext(t, `{"orgId":"o1"}`, "good-token")
	require.NoError(t, h.HandleChat(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = chatTestContext(t, `{"message":"hi"}`, "good-token")
	require.NoError(t, h.HandleChat(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatStreamsSourcesFirst(t *testing.T) {
	retriever := &fakeRetriever{result: ragie.RetrievalResult{
		Passages: []ragie.Passage{
			{Text: "alpha", Source: "Doc1"},
			{Text: "beta", Source: "Doc2"},
			{Text: "gamma", Source: "Doc1"},
		},
	}}
	stream := &fakeStream{deltas: []string{"Hel", "", "lo"}}
	streamer := &fakeStreamer{stream: stream}
	h := NewChatHandler(&fakeVerifier{user: authedUser()}, retriever, streamer)

	c, rec := chatTestContext(t, `{"message":"hi","orgId":"o1"}`, "good-token")
	require.NoError(t, h.HandleChat(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, stream.closed)

	r := chat.NewStreamReader(rec.Body)

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"Doc1", "Doc2"}, ev.Sources, "sources manifest must be the first frame")

	var content strings.Builder
	sawDone := false
	for {
		ev, err = r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if ev.Done {
			sawDone = true
			break
		}
		content.WriteString(ev.Content)
	}
	assert.Equal(t, "Hello", content.String())
	assert.True(t, sawDone)
}

func TestHandleChatEmptySourcesStillFirst(t *testing.T) {
	retriever := &fakeRetriever{result: ragie.RetrievalResult{Warning: "retrieval service returned 500"}}
	h := NewChatHandler(&fakeVerifier{user: authedUser()}, retriever, &fakeStreamer{stream: &fakeStream{deltas: []string{"answer"}}})

	c, rec := chatTestContext(t, `{"message":"hi","orgId":"o1"}`, "good-token")
	require.NoError(t, h.HandleChat(c))

	// Degraded retrieval still streams, with an explicit empty manifest.
	assert.Equal(t, http.StatusOK, rec.Code)
	ev, err := chat.NewStreamReader(rec.Body).Next()
	require.NoError(t, err)
	require.NotNil(t, ev.Sources)
	assert.Empty(t, ev.Sources)
}

func TestHandleChatHistoryTruncation(t *testing.T) {
	streamer := &fakeStreamer{stream: &fakeStream{}}
	h := NewChatHandler(&fakeVerifier{user: authedUser()}, &fakeRetriever{}, streamer)

	var turns []string
	for i := 0; i < 14; i++ {
		turns = append(turns, fmt.Sprintf(`{"role":"user","content":"turn %d"}`, i))
	}
	body := fmt.Sprintf(`{"message":"hi","orgId":"o1","history":[%s]}`, strings.Join(turns, ","))

	c, _ := chatTestContext(t, body, "good-token")
	require.NoError(t, h.HandleChat(c))

	require.Len(t, streamer.lastReq.History, 10)
	assert.Equal(t, "turn 4", streamer.lastReq.History[0].Content)
	assert.Equal(t, "turn 13", streamer.lastReq.History[9].Content)
	assert.Equal(t, "hi", streamer.lastReq.UserMessage)
}

func TestHandleChatModelOpenFailure(t *testing.T) {
	streamer := &fakeStreamer{openErr: errors.New("model unavailable")}
	h := NewChatHandler(&fakeVerifier{user: authedUser()}, &fakeRetriever{}, streamer)

	c, rec := chatTestContext(t, `{"message":"hi","orgId":"o1"}`, "good-token")
	require.NoError(t, h.HandleChat(c))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), genericChatError)
	assert.NotContains(t, rec.Body.String(), "model unavailable")
}

func TestHandleChatMidStreamFailureStillTerminates(t *testing.T) {
	stream := &fakeStream{deltas: []string{"partial"}, err: errors.New("upstream reset")}
	h := NewChatHandler(&fakeVerifier{user: authedUser()}, &fakeRetriever{}, &fakeStreamer{stream: stream})

	c, rec := chatTestContext(t, `{"message":"hi","orgId":"o1"}`, "good-token")
	require.NoError(t, h.HandleChat(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	// The stream is already open, so the failure must not produce a JSON
	// error; the terminal sentinel still closes the stream.
	out := rec.Body.String()
	assert.Contains(t, out, `data: {"content":"partial"}`)
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
	assert.NotContains(t, out, "upstream reset")
}
