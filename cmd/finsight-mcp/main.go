package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/finsight/internal/app"
	"github.com/ternarybob/finsight/internal/common"
)

func main() {
	var paths []string
	if configPath := os.Getenv("FINSIGHT_CONFIG"); configPath != "" {
		paths = append(paths, configPath)
	} else if _, err := os.Stat("finsight.toml"); err == nil {
		paths = append(paths, "finsight.toml")
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(context.Background(), config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := newMCPServer(application, logger)

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

// newMCPServer registers the stock tools
func newMCPServer(application *app.App, logger arbor.ILogger) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"finsight",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createAnalyzeStockTool(), handleAnalyzeStock(application.Conversation, logger))
	mcpServer.AddTool(createListStocksTool(), handleListStocks(application.EntityIndex))
	mcpServer.AddTool(createResolveStockTool(), handleResolveStock(application.EntityIndex))

	return mcpServer
}
