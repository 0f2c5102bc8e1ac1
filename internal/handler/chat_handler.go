package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"creatorchat-service/internal/chat"
	"creatorchat-service/internal/identity"
	"creatorchat-service/internal/llm"
	"creatorchat-service/internal/middleware"
	"creatorchat-service/internal/ragie"
	"creatorchat-service/pkg/logger"
	"creatorchat-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// genericChatError is the only failure text end users see; diagnostic
// detail stays in the server log.
const genericChatError = "Sorry, I encountered an error. Please try again."

// Retriever fetches grounding passages scoped to an org's partition.
type Retriever interface {
	Retrieve(ctx context.Context, query, orgID string) ragie.RetrievalResult
}

// ChatHandler is the orchestrator for the retrieval-augmented chat
// pipeline: authenticate, retrieve, compose, stream.
type ChatHandler struct {
	verifier  identity.Verifier
	retriever Retriever
	streamer  llm.Streamer
}

// NewChatHandler wires the chat pipeline's collaborators.
func NewChatHandler(verifier identity.Verifier, retriever Retriever, streamer llm.Streamer) *ChatHandler {
	return &ChatHandler{
		verifier:  verifier,
		retriever: retriever,
		streamer:  streamer,
	}
}

type chatRequest struct {
	Message string         `json:"message"`
	OrgID   string         `json:"orgId"`
	History []chat.Message `json:"history"`
}

// HandleChat serves POST /api/chat. The response is either a JSON error
// (before the stream opens) or a text/event-stream whose first frame is
// the sources manifest and whose last frame is always the terminal
// sentinel.
func (h *ChatHandler) HandleChat(c echo.Context) error {
	log := logger.FromContext(c)

	// Authenticate before any downstream call: an unauthenticated
	// request must cost nothing.
	user := h.verifier.Verify(c.Request().Context(), middleware.BearerToken(c.Request()))
	if user == nil {
		prometheus.RecordChatRequest("unauthorized")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse chat request", zap.Error(err))
		prometheus.RecordChatRequest("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Message == "" {
		prometheus.RecordChatRequest("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message is required"})
	}
	if req.OrgID == "" {
		prometheus.RecordChatRequest("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "orgId is required"})
	}

	// Retrieval failure degrades to an ungrounded answer, never a
	// user-visible error.
	result := h.retriever.Retrieve(c.Request().Context(), req.Message, req.OrgID)
	if result.Warning != "" {
		log.Warn("Retrieval degraded",
			zap.String("org_id", req.OrgID),
			zap.String("warning", result.Warning))
	}

	sources := chat.SourceManifest(result.Passages)
	systemPrompt := chat.ComposeSystemPrompt(result.Passages)
	history := chat.TruncateHistory(req.History)

	stream, err := h.streamer.StreamCompletion(c.Request().Context(), llm.Request{
		System:      systemPrompt,
		History:     history,
		UserMessage: req.Message,
	})
	if err != nil {
		// The stream has not opened yet, so a plain JSON error is
		// still possible.
		log.Error("Failed to open completion stream", zap.Error(err))
		prometheus.RecordChatRequest("model_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": genericChatError})
	}
	defer stream.Close()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	writer := chat.NewEventWriter(resp)

	// Sources go first, even when empty, so the client can render
	// provenance before content arrives.
	if err := writer.WriteSources(sources); err != nil {
		log.Warn("Client disconnected before stream start", zap.Error(err))
		return nil
	}

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The stream is already open; log and fall through so the
			// terminal sentinel still reaches the client instead of a
			// silent truncation.
			log.Error("Model stream failed mid-generation", zap.Error(err))
			break
		}
		if delta == "" {
			continue
		}
		if err := writer.WriteContent(delta); err != nil {
			// Client gone: stop reading and release the model stream.
			log.Warn("Client disconnected mid-stream", zap.Error(err))
			return nil
		}
		prometheus.ChatStreamEventCounter.Inc()
	}

	if err := writer.WriteDone(); err != nil {
		log.Warn("Failed to write terminal sentinel", zap.Error(err))
		return nil
	}

	prometheus.RecordChatRequest("streamed")
	log.Info("Chat turn streamed",
		zap.String("user_id", user.UID),
		zap.String("org_id", req.OrgID),
		zap.Int("sources", len(sources)),
		zap.Int("history_len", len(history)))
	return nil
}
