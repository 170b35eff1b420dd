package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultListLimit = 20

// Handler handles MCP tool calls using the HTTP client
type Handler struct {
	client *Client
}

// NewHandler creates a new MCP handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// GetLinkInput identifies a request
type GetLinkInput struct {
	RequestID string `json:"request_id" jsonschema:"The request ID shown on the forwarded copy"`
}

// GetLinkOutput contains the link, if found
type GetLinkOutput struct {
	Link  *Link  `json:"link,omitempty"`
	Error string `json:"error,omitempty"`
}

// GetLink looks up a link by request ID
func (h *Handler) GetLink(ctx context.Context, req *mcp.CallToolRequest, input GetLinkInput) (*mcp.CallToolResult, GetLinkOutput, error) {
	if input.RequestID == "" {
		return nil, GetLinkOutput{Error: "request_id is required"}, nil
	}

	link, err := h.client.GetLink(ctx, input.RequestID)
	if err != nil {
		return nil, GetLinkOutput{Error: describeError(input.RequestID, err)}, nil
	}
	return nil, GetLinkOutput{Link: link}, nil
}

// ListLinksInput filters the listing
type ListLinksInput struct {
	SenderID string `json:"sender_id,omitempty" jsonschema:"Only list requests from this requester"`
	Status   string `json:"status,omitempty" jsonschema:"pending, resolved_positive or resolved_negative (default pending)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of requests to return (default 20)"`
}

// ListLinksOutput contains matching links
type ListLinksOutput struct {
	Links []Link `json:"links"`
	Error string `json:"error,omitempty"`
}

// ListLinks lists links by sender or status
func (h *Handler) ListLinks(ctx context.Context, req *mcp.CallToolRequest, input ListLinksInput) (*mcp.CallToolResult, ListLinksOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	links, err := h.client.ListLinks(ctx, input.SenderID, input.Status, limit)
	if err != nil {
		return nil, ListLinksOutput{Links: []Link{}, Error: err.Error()}, nil
	}
	if links == nil {
		links = []Link{}
	}
	return nil, ListLinksOutput{Links: links}, nil
}

// ResolveInput records an outcome
type ResolveInput struct {
	RequestID string `json:"request_id" jsonschema:"The request ID shown on the forwarded copy"`
	Outcome   string `json:"outcome" jsonschema:"found or notfound"`
}

// RoutingOutput reports how a resolve or reply was routed
type RoutingOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Link    *Link  `json:"link,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Resolve records a staff outcome
func (h *Handler) Resolve(ctx context.Context, req *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, RoutingOutput, error) {
	if input.RequestID == "" || input.Outcome == "" {
		return nil, RoutingOutput{Error: "request_id and outcome are required"}, nil
	}

	res, err := h.client.Resolve(ctx, input.RequestID, input.Outcome)
	if err != nil {
		return nil, RoutingOutput{Error: describeError(input.RequestID, err)}, nil
	}

	out := RoutingOutput{Link: res.Link}
	switch res.Result {
	case "routed":
		out.Success = true
		if res.Delivered {
			out.Message = fmt.Sprintf("Request %s resolved, requester notified", input.RequestID)
		} else {
			out.Message = fmt.Sprintf("Request %s resolved, but the requester could not be notified: %s", input.RequestID, res.DeliveryError)
		}
	case "already_handled":
		status := ""
		if res.Link != nil {
			status = res.Link.Status
		}
		out.Error = fmt.Sprintf("Request %s was already handled (%s)", input.RequestID, status)
	default:
		out.Error = fmt.Sprintf("Request %s not found", input.RequestID)
	}
	return nil, out, nil
}

// ReplyInput carries staff text for a requester
type ReplyInput struct {
	RequestID string `json:"request_id" jsonschema:"The request ID shown on the forwarded copy"`
	Content   string `json:"content" jsonschema:"The message to send to the requester"`
}

// Reply relays staff text to the requester
func (h *Handler) Reply(ctx context.Context, req *mcp.CallToolRequest, input ReplyInput) (*mcp.CallToolResult, RoutingOutput, error) {
	if input.RequestID == "" || input.Content == "" {
		return nil, RoutingOutput{Error: "request_id and content are required"}, nil
	}

	res, err := h.client.Reply(ctx, input.RequestID, input.Content)
	if err != nil {
		return nil, RoutingOutput{Error: describeError(input.RequestID, err)}, nil
	}

	out := RoutingOutput{Link: res.Link}
	switch {
	case res.Result != "routed":
		out.Error = fmt.Sprintf("Request %s not found", input.RequestID)
	case !res.Delivered:
		out.Error = fmt.Sprintf("Could not deliver reply for request %s: %s", input.RequestID, res.DeliveryError)
	default:
		out.Success = true
		out.Message = fmt.Sprintf("Reply sent to the requester of %s", input.RequestID)
	}
	return nil, out, nil
}

// ============ Helpers ============

func describeError(requestID string, err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Sprintf("Request %s not found", requestID)
	}
	return err.Error()
}
