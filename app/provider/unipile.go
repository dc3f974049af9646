// Package provider calls the Unipile hosted-auth API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrRequest covers network failures and timeouts.
	ErrRequest = errors.New("provider request failed")
	// ErrResponse covers error statuses and bodies without a usable link.
	ErrResponse = errors.New("provider returned an unusable response")
)

const maxErrorBody = 512

// LinkRequest is the hosted-auth link payload. Every field is required by the provider.
type LinkRequest struct {
	Type               string   `json:"type"`
	Providers          []string `json:"providers"`
	APIURL             string   `json:"api_url"`
	ExpiresOn          string   `json:"expiresOn"`
	SuccessRedirectURL string   `json:"success_redirect_url"`
	FailureRedirectURL string   `json:"failure_redirect_url"`
	NotifyURL          string   `json:"notify_url"`
	Name               string   `json:"name"`
}

type linkResponse struct {
	Object string `json:"object"`
	URL    string `json:"url"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// CreateLink returns the hosted wizard URL. Errors never include the API key.
func (c *Client) CreateLink(ctx context.Context, link *LinkRequest) (string, error) {
	payload, err := json.Marshal(link)
	if err != nil {
		return "", fmt.Errorf("encode link request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hosted/accounts/link", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request", ErrRequest)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrRequest, redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %s", ErrRequest, err.Error())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: status %d: %s", ErrResponse, resp.StatusCode, truncate(body))
	}

	var out linkResponse
	if err = json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode body: %s", ErrResponse, err.Error())
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: missing url", ErrResponse)
	}
	return out.URL, nil
}

// redact drops the request URL from transport errors; only the cause is kept.
func redact(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
