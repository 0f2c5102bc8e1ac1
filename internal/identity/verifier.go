package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultLookupURL = "https://identitytoolkit.googleapis.com/v1/accounts:lookup"

// VerifiedUser is the subject resolved from a bearer credential.
type VerifiedUser struct {
	UID   string
	Email string
}

// Verifier resolves an opaque bearer token to a subject. Implementations
// must return nil for every failure mode so callers treat all credential
// problems uniformly as "unauthenticated".
type Verifier interface {
	Verify(ctx context.Context, idToken string) *VerifiedUser
}

// FirebaseVerifier validates ID tokens against the identity provider's
// token-lookup endpoint. One round trip per call, no retry: a transient
// provider failure surfaces as an authentication failure, not an error.
type FirebaseVerifier struct {
	apiKey    string
	lookupURL string
	client    *http.Client
}

// NewFirebaseVerifier creates a verifier for the given project API key.
func NewFirebaseVerifier(apiKey string) *FirebaseVerifier {
	return &FirebaseVerifier{
		apiKey:    apiKey,
		lookupURL: defaultLookupURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

type lookupResponse struct {
	Users []struct {
		LocalID string `json:"localId"`
		Email   string `json:"email"`
	} `json:"users"`
}

// Verify returns the verified subject, or nil on a missing token, a
// rejected token, or an unreachable provider. It never returns an error.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) *VerifiedUser {
	if v.apiKey == "" || idToken == "" {
		return nil
	}

	body, err := json.Marshal(lookupRequest{IDToken: idToken})
	if err != nil {
		return nil
	}

	url := fmt.Sprintf("%s?key=%s", v.lookupURL, v.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var lookup lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return nil
	}
	if len(lookup.Users) == 0 {
		return nil
	}

	return &VerifiedUser{
		UID:   lookup.Users[0].LocalID,
		Email: lookup.Users[0].Email,
	}
}

var _ Verifier = (*FirebaseVerifier)(nil)
