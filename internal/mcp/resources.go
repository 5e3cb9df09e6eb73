package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const documentsURI = "packetdesk://documents"

func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			documentsURI,
			"Packet Documents",
			mcp.WithResourceDescription("Documents available for inclusion in a PDF packet."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleDocumentsResource,
	)
}

func (s *MCPServer) handleDocumentsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.deps.Documents == nil {
		return nil, fmt.Errorf("no documents directory is configured")
	}
	names, err := s.deps.Documents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	b, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal documents: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      documentsURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
