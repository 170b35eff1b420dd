package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is the HTTP client for the relay API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new relay API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Link is a link as returned by the API
type Link struct {
	RequestID     string   `json:"request_id"`
	SenderID      string   `json:"sender_id"`
	Status        string   `json:"status"`
	Tags          []string `json:"tags"`
	ForwardChatID string   `json:"forward_chat_id"`
	ForwardMsgID  string   `json:"forward_msg_id"`
	OriginChatID  string   `json:"origin_chat_id"`
	OriginMsgID   string   `json:"origin_msg_id"`
	CreatedAt     string   `json:"created_at"`
	ResolvedAt    string   `json:"resolved_at,omitempty"`
}

// Routing is the result of a resolve or reply call
type Routing struct {
	Result        string `json:"result"`
	Link          *Link  `json:"link,omitempty"`
	Delivered     bool   `json:"delivered"`
	DeliveryError string `json:"delivery_error,omitempty"`
}

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ============ Link Operations ============

// GetLink gets a link by request ID
func (c *Client) GetLink(ctx context.Context, requestID string) (*Link, error) {
	var link Link
	if err := c.get(ctx, "/api/links/"+url.PathEscape(requestID), &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// ListLinks lists links by sender, or by status when senderID is empty
func (c *Client) ListLinks(ctx context.Context, senderID, status string, limit int) ([]Link, error) {
	q := url.Values{}
	if senderID != "" {
		q.Set("sender_id", senderID)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/links"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result struct {
		Links []Link `json:"links"`
	}
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Links, nil
}

// Resolve records a staff outcome for a request
func (c *Client) Resolve(ctx context.Context, requestID, outcome string) (*Routing, error) {
	var result Routing
	body := map[string]string{"outcome": outcome}
	if err := c.post(ctx, "/api/links/"+url.PathEscape(requestID)+"/resolve", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reply relays staff text to the requester of a request
func (c *Client) Reply(ctx context.Context, requestID, content string) (*Routing, error) {
	var result Routing
	body := map[string]string{"content": content}
	if err := c.post(ctx, "/api/links/"+url.PathEscape(requestID)+"/reply", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

// do sends req and decodes the body into result. Routing results come back
// with 404 (unrouted) and 409 (already handled), so those bodies are decoded
// too when they carry a result.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", req.Method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if r, ok := result.(*Routing); ok && json.Unmarshal(body, r) == nil && r.Result != "" {
			return nil
		}
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
