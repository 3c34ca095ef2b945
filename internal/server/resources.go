package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skelly-dev/codegraph/internal/tools"
)

const (
	statsURI       = "codegraph://stats"
	schemaTemplate = "codegraph://schemas/{tool_name}"
	schemaPrefix   = "codegraph://schemas/"
)

type statsPayload struct {
	Root       string   `json:"root"`
	Generation uint64   `json:"generation"`
	Files      int      `json:"files"`
	Symbols    int      `json:"symbols"`
	Edges      int      `json:"edges"`
	Unresolved int      `json:"unresolved"`
	Failed     int      `json:"failed"`
	Extensions []string `json:"extensions"`
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         statsURI,
		Name:        "Graph statistics",
		Description: "Generation and size of the current code graph",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		snap := s.mapper.Snapshot()
		stats := snap.Stats()
		payload, err := json.MarshalIndent(statsPayload{
			Root:       snap.Root,
			Generation: snap.Generation,
			Files:      stats.Files,
			Symbols:    stats.Symbols,
			Edges:      stats.Edges,
			Unresolved: stats.Unresolved,
			Failed:     stats.Failed,
			Extensions: s.mapper.Pool().Registry().SupportedExtensions(),
		}, "", "  ")
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: statsURI, MIMEType: "application/json", Text: string(payload)}},
		}, nil
	})

	schemas := buildSchemaMap()
	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: schemaTemplate,
		Name:        "Tool schema",
		Description: "JSON schema for the named tool's arguments",
		MIMEType:    "application/schema+json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		name := strings.TrimPrefix(uri, schemaPrefix)
		schema, ok := schemas[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool schema: %q", name)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/schema+json", Text: schema}},
		}, nil
	})
}

func buildSchemaMap() map[string]string {
	m := make(map[string]string)
	addSchema[tools.AnalyzeCodeArgs](m, tools.AnalyzeCode)
	addSchema[tools.FindReferencesArgs](m, tools.FindSymbolReferences)
	addSchema[tools.FindDefinitionsArgs](m, tools.FindSymbolDefinitions)
	addSchema[tools.SubgraphArgs](m, tools.GetSymbolSubgraph)
	addSchema[tools.FilesSkeletonArgs](m, tools.GetMultipleFilesSkeleton)
	addSchema[tools.RelatedSkeletonArgs](m, tools.GetRelatedFilesSkeleton)
	addSchema[tools.UpdateArgs](m, tools.UpdateCodeGraph)
	addSchema[tools.CodeGraphArgs](m, tools.GetCodeGraph)
	addSchema[tools.SearchArgs](m, tools.SearchSymbols)
	return m
}

func addSchema[T any](m map[string]string, name string) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return
	}
	m[name] = string(schemaJSON)
}
