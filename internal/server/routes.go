package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket chat
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Stocks
	mux.HandleFunc("/api/query", s.app.StockHandler.QueryHandler)              // GET ?q= or POST {"query"}
	mux.HandleFunc("/api/entities", s.app.StockHandler.EntitiesHandler)        // GET - covered companies
	mux.HandleFunc("/api/entities/resolve", s.app.StockHandler.ResolveHandler) // GET ?q=
	mux.HandleFunc("/api/help", s.app.StockHandler.HelpHandler)                // GET - greeting
	mux.HandleFunc("/api/audit", s.app.StockHandler.AuditHandler)              // GET - recent narrative requests

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
