package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "feishu-relay-tools"
	serverVersion = "v1.0.0"
)

// NewServer creates the MCP server with the staff tools registered
func NewServer(client *Client) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	h := NewHandler(client)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "relay_get_link",
		Description: "Look up a forwarded request by its request ID. Returns the requester, tags and whether staff already resolved it.",
	}, h.GetLink)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "relay_list_links",
		Description: "List forwarded requests, newest first. Filter by requester (sender_id) or by status: pending, resolved_positive, resolved_negative. Defaults to pending.",
	}, h.ListLinks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "relay_resolve",
		Description: "Record the staff outcome for a request and notify the requester. Outcome is found (positive) or notfound (negative). A request can only be resolved once.",
	}, h.Resolve)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "relay_reply",
		Description: "Send a message from staff to the requester of a request, for example to ask for a size or colour. Does not resolve the request.",
	}, h.Reply)

	return server
}
