package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAnalyzeStockTool returns the analyze_stock tool definition
func createAnalyzeStockTool() mcp.Tool {
	return mcp.NewTool("analyze_stock",
		mcp.WithDescription("Scrape key metrics for a Nifty 50 stock from Screener.in and generate AI insights with sentiment"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Company name or NSE symbol, e.g. tcs, reliance, hdfcbank, infosys"),
		),
	)
}

// createListStocksTool returns the list_stocks tool definition
func createListStocksTool() mcp.Tool {
	return mcp.NewTool("list_stocks",
		mcp.WithDescription("List the Nifty 50 companies FinSight covers"),
	)
}

// createResolveStockTool returns the resolve_stock tool definition
func createResolveStockTool() mcp.Tool {
	return mcp.NewTool("resolve_stock",
		mcp.WithDescription("Show which covered company a name or symbol resolves to, without scraping"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Company name or NSE symbol"),
		),
	)
}
