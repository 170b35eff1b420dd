package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devricklin/feishu-request-relay/internal/conf"
	"github.com/devricklin/feishu-request-relay/internal/logging"
	"github.com/devricklin/feishu-request-relay/internal/mcp"
)

// relay-mcp exposes the relay's staff operations as MCP tools over stdio.
// Tool calls go to the relay HTTP API at RELAY_API_URL.
func main() {
	// Logs go to stderr; stdout carries the MCP protocol
	log := logging.NewLoggerWithService("feishu-relay-mcp")

	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}
	cfg := conf.LoadFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(mcp.NewClient(cfg.API.URL))

	log.WithField("api_url", cfg.API.URL).Info("Starting MCP server on stdio")
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("MCP server stopped")
	}
}
