package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/interfaces"
	"github.com/ternarybob/finsight/internal/services/conversation"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleAnalyzeStock implements the analyze_stock tool
func handleAnalyzeStock(conv *conversation.Handler, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return textResult("Error: query parameter is required"), nil
		}

		turn, err := conv.HandleMessage(ctx, query, nil)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("analyze_stock failed")
			return textResult(fmt.Sprintf("Analysis error: %v", err)), nil
		}

		result := textResult(turn.Text())
		if turn.Metrics != nil && turn.Metrics.HasError() {
			result.IsError = true
		}
		return result, nil
	}
}

// handleListStocks implements the list_stocks tool
func handleListStocks(resolver interfaces.EntityResolver) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(formatStockList(resolver.Records())), nil
	}
}

// handleResolveStock implements the resolve_stock tool
func handleResolveStock(resolver interfaces.EntityResolver) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return textResult("Error: query parameter is required"), nil
		}

		record, ok := resolver.Resolve(query)
		if !ok {
			result := textResult(fmt.Sprintf("Stock '%s' not found in Nifty 50.", query))
			result.IsError = true
			return result, nil
		}

		return textResult(fmt.Sprintf("**%s** (%s)\nScreener.in slug: %s", record.Name, record.Symbol, record.Slug)), nil
	}
}
