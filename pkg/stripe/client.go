package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultAPIBase = "https://api.stripe.com"

type Client struct {
	HTTPClient *http.Client
	SecretKey  string
	APIBase    string
}

// Configured reports whether calls can reach the processor at all.
func (c Client) Configured() bool {
	return strings.TrimSpace(c.SecretKey) != ""
}

// doForm sends a form-encoded request (Stripe does not accept JSON bodies) and decodes the JSON reply.
func (c Client) doForm(ctx context.Context, method, path string, form url.Values, respBody any) (int, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if !c.Configured() {
		return 0, fmt.Errorf("missing stripe secret key")
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	u := strings.TrimSuffix(c.APIBase, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	b, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return resp.StatusCode, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error.Message != "" {
			return resp.StatusCode, fmt.Errorf("stripe api error: status=%d type=%s code=%s message=%s",
				resp.StatusCode, apiErr.Error.Type, apiErr.Error.Code, apiErr.Error.Message)
		}
		return resp.StatusCode, fmt.Errorf("stripe api error: status=%d", resp.StatusCode)
	}

	if respBody != nil && len(b) > 0 {
		if err := json.Unmarshal(b, respBody); err != nil {
			return resp.StatusCode, fmt.Errorf("decode stripe response failed: %w body=%s", err, string(b))
		}
	}
	return resp.StatusCode, nil
}
