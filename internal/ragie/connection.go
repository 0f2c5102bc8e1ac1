package ragie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type connectionRequest struct {
	SourceType  string            `json:"source_type"`
	RedirectURI string            `json:"redirect_uri"`
	Partition   string            `json:"partition"`
	Metadata    map[string]string `json:"metadata"`
	Mode        string            `json:"mode"`
}

type connectionResponse struct {
	URL string `json:"url"`
}

// InitGoogleDriveConnection starts the content-source OAuth hand-off for
// an org and returns the authorization URL the browser is sent to. The
// partition isolates the org's documents; the original org id rides in
// metadata since the partition alphabet is restricted.
func (c *Client) InitGoogleDriveConnection(ctx context.Context, orgID, redirectURI string) (string, error) {
	payload, err := json.Marshal(connectionRequest{
		SourceType:  "google_drive",
		RedirectURI: redirectURI,
		Partition:   PartitionKey(orgID),
		Metadata:    map[string]string{"org_id": orgID},
		Mode:        "hi_res",
	})
	if err != nil {
		return "", fmt.Errorf("encode connection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/connections/oauth", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build connection request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("connection init returned %d: %s", resp.StatusCode, string(detail))
	}

	var data connectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode connection response: %w", err)
	}

	return data.URL, nil
}
