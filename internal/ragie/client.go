package ragie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"creatorchat-service/prometheus"
)

const (
	retrievalTopK = 5

	// Label used when the retrieval service returns a passage without a
	// document name.
	unknownSource = "Unknown source"
)

// Passage is a ranked text excerpt with its provenance label. Passages
// are ephemeral: constructed per chat turn and never persisted.
type Passage struct {
	Text   string
	Source string
}

// RetrievalResult carries the ranked passages for a query. A non-empty
// Warning means retrieval degraded and the caller proceeds ungrounded.
type RetrievalResult struct {
	Passages []Passage
	Warning  string
}

// Client talks to the retrieval service. Every partition-scoped call
// derives its partition key with PartitionKey.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a retrieval-service client.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// PartitionKey maps an org id onto the retrieval service's restricted
// partition alphabet: lower-case, with every character outside
// [a-z0-9_-] replaced by an underscore. The transform is idempotent.
func PartitionKey(orgID string) string {
	lowered := strings.ToLower(orgID)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

type retrievalRequest struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
	Rerank    bool   `json:"rerank"`
	Partition string `json:"partition,omitempty"`
}

type retrievalResponse struct {
	ScoredChunks []struct {
		Text         string  `json:"text"`
		Score        float64 `json:"score"`
		DocumentName string  `json:"document_name"`
	} `json:"scored_chunks"`
}

// Retrieve fetches the top-ranked passages for the query from the org's
// partition. Retrieval failure never fails the caller: the result
// carries an empty passage list plus a warning to log, and the chat turn
// proceeds without grounding context.
func (c *Client) Retrieve(ctx context.Context, query, orgID string) RetrievalResult {
	start := time.Now()
	defer func() {
		prometheus.RetrievalDuration.Observe(time.Since(start).Seconds())
	}()

	reqBody := retrievalRequest{
		Query:  query,
		TopK:   retrievalTopK,
		Rerank: true,
	}
	if orgID != "" {
		reqBody.Partition = PartitionKey(orgID)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return degraded(fmt.Sprintf("encode retrieval request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/retrievals", bytes.NewReader(payload))
	if err != nil {
		return degraded(fmt.Sprintf("build retrieval request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return degraded(fmt.Sprintf("retrieval request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return degraded(fmt.Sprintf("retrieval service returned %d: %s", resp.StatusCode, string(detail)))
	}

	var data retrievalResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return degraded(fmt.Sprintf("decode retrieval response: %v", err))
	}

	passages := make([]Passage, 0, len(data.ScoredChunks))
	for _, chunk := range data.ScoredChunks {
		source := chunk.DocumentName
		if source == "" {
			source = unknownSource
		}
		passages = append(passages, Passage{Text: chunk.Text, Source: source})
	}

	return RetrievalResult{Passages: passages}
}

func degraded(warning string) RetrievalResult {
	prometheus.RetrievalDegradedCounter.Inc()
	return RetrievalResult{Warning: warning}
}
