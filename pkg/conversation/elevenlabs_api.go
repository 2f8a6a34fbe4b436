package conversation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// apiClient handles REST API calls to ElevenLabs.
type apiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(apiKey, baseURL string, hc *http.Client) *apiClient {
	return &apiClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: hc,
	}
}

// GetSignedURL returns a short-lived websocket URL for a private agent.
func (c *apiClient) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	u := c.baseURL + "/convai/conversation/get_signed_url?agent_id=" + url.QueryEscape(agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apiErrorFromBody(resp.StatusCode, body)
	}

	signed := gjson.GetBytes(body, "signed_url").String()
	if signed == "" {
		return "", fmt.Errorf("%w: signed_url missing", ErrInvalidMessage)
	}
	return signed, nil
}

// apiErrorFromBody reads the error detail, which the API sends either as a
// string or as {"status": ..., "message": ...}.
func apiErrorFromBody(status int, body []byte) *APIError {
	detail := gjson.GetBytes(body, "detail")
	code := detail.Get("status").String()
	msg := detail.Get("message").String()
	if detail.Type == gjson.String {
		msg = detail.Str
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return NewAPIError(status, code, msg)
}
