package server

import (
	"context"
	"io"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/tools"
)

const Name = "codegraph"

// Server exposes the tool operations over MCP.
type Server struct {
	mcpServer *mcp.Server
	tools     *tools.Service
	mapper    *graph.Mapper
	logger    *slog.Logger
}

func New(svc *tools.Service, mapper *graph.Mapper, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil),
		tools:     svc,
		mapper:    mapper,
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves requests on stdin/stdout until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}
