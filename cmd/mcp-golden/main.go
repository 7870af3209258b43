// Command mcp-golden runs the MCP tool server for comparing validator outputs
// and inspecting parity runs. Uses stdio transport for integration with AI
// assistants.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/feedparity/feedparity-go/internal/config"
	"github.com/feedparity/feedparity-go/internal/mcpserver"
	"github.com/feedparity/feedparity-go/internal/observability"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// stdout carries the protocol, so logs must stay on stderr.
	logger := observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "feedparity",
		Version: version,
	}, nil)
	mcpserver.RegisterTools(server)

	logger.Info("mcp server starting", "transport", "stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
