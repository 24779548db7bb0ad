package mcp

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studypdf/docpipe/internal/retrieval"
	"github.com/studypdf/docpipe/internal/store"
	"github.com/studypdf/docpipe/internal/vector"
)

// Searcher is the query surface the search_content tool depends on.
type Searcher interface {
	Search(ctx context.Context, req retrieval.Request) ([]vector.Hit, error)
}

// Config holds the MCP server's dependencies.
type Config struct {
	Searcher  Searcher // nil disables search_content results
	Documents store.DocumentRepo
	Chapters  store.ChapterRepo
}

// Server wraps the MCP server with tools registered.
type Server struct {
	server *mcp.Server
}

// NewServer creates a configured MCP server exposing the study-content tools.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "docpipe-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_content",
		Description: "Search a processed document's content semantically. Returns scored chunks with page and section attribution.",
	}, makeSearchHandler(cfg.Searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "document_status",
		Description: "Get a document's processing status, page count, and chapter outline.",
	}, makeStatusHandler(cfg.Documents, cfg.Chapters))

	return &Server{server: server}
}

// Run serves over stdio and blocks until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns a Streamable HTTP handler for mounting on a mux path.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}
