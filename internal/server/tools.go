package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skelly-dev/codegraph/internal/tools"
)

func (s *Server) registerTools() {
	addTool(s, tools.AnalyzeCode, s.tools.AnalyzeCode)
	addTool(s, tools.FindSymbolReferences, s.tools.FindReferences)
	addTool(s, tools.FindSymbolDefinitions, s.tools.FindDefinitions)
	addTool(s, tools.GetSymbolSubgraph, s.tools.Subgraph)
	addTool(s, tools.GetMultipleFilesSkeleton, s.tools.FilesSkeleton)
	addTool(s, tools.GetRelatedFilesSkeleton, s.tools.RelatedSkeleton)
	addTool(s, tools.UpdateCodeGraph, s.tools.Update)
	addTool(s, tools.GetCodeGraph, s.tools.CodeGraph)
	addTool(s, tools.SearchSymbols, s.tools.Search)
}

// addTool registers run under name. Invalid arguments and failures come
// back as tool errors; results are returned as indented JSON text.
func addTool[A, R any](s *Server, name string, run func(context.Context, A) (R, error)) {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        name,
		Description: tools.Description(name),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args A) (*mcp.CallToolResult, any, error) {
		started := time.Now()
		out, err := run(ctx, args)
		if err != nil {
			level := "failed"
			if errors.Is(err, tools.ErrInvalidArgument) {
				level = "rejected"
			}
			s.logger.Warn("tool "+level, "tool", name, "error", err)
			return errorResult(err.Error()), nil, nil
		}

		jsonBytes, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("encode result: %v", err)), nil, nil
		}
		s.logger.Debug("tool call", "tool", name, "duration", time.Since(started))
		return textResult(string(jsonBytes)), nil, nil
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
}
