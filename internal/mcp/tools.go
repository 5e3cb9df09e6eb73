package mcp

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/packet"
)

func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("packet_auth_status",
			mcp.WithDescription(
				"Report whether an admin session is active. packet_build only works "+
					"while one is; start it with 'packetdesk auth login'.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleAuthStatus,
	)

	srv.AddTool(
		mcp.NewTool("packet_docs",
			mcp.WithDescription(
				"List the documents that can be included in a packet. Names are "+
					"slash-separated paths relative to the documents directory.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleDocs,
	)

	srv.AddTool(
		mcp.NewTool("packet_build",
			mcp.WithDescription(
				"Assemble documents into a single PDF packet and save it. Documents are "+
					"included in the order given. Requires an active admin session.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("title",
				mcp.Required(),
				mcp.Description("Packet title, also used for the file name"),
			),
			mcp.WithArray("documents",
				mcp.Required(),
				mcp.Description("Document names from packet_docs, in packet order"),
				mcp.WithStringItems(),
			),
		),
		s.handleBuild,
	)
}

func (s *MCPServer) handleAuthStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	current := s.deps.Sessions.CurrentAdmin()
	if current == nil {
		return successJSON(map[string]interface{}{"logged_in": false})
	}
	return successJSON(map[string]interface{}{
		"logged_in": true,
		"user_id":   current.UserID,
		"email":     current.Email,
		"issued_at": current.IssuedAt.UTC().Format(time.RFC3339),
	})
}

func (s *MCPServer) handleDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Documents == nil {
		return toolError("No documents directory is configured")
	}
	names, err := s.deps.Documents.List(ctx)
	if err != nil {
		return toolError("Failed to list documents: %v", err)
	}
	if names == nil {
		names = []string{}
	}
	return successJSON(map[string]interface{}{"documents": names})
}

func (s *MCPServer) handleBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.deps.Sessions.IsLoggedIn() {
		return toolError("Not logged in. Run 'packetdesk auth login' and retry.")
	}
	if s.deps.Packets == nil {
		return toolError("No PDF worker is configured (set worker.url)")
	}

	title, err := requireString(request, "title")
	if err != nil {
		return toolError("%v", err)
	}
	docs := request.GetStringSlice("documents", nil)
	if len(docs) == 0 {
		return toolError("missing required parameter %q", "documents")
	}

	p, err := s.deps.Packets.Build(ctx, model.PacketRequest{Title: title, Documents: docs})
	if err != nil {
		s.logger.Warn("mcp packet build failed", "title", title, "error", err)
		return toolError("Failed to build packet: %v", err)
	}
	path, err := packet.WriteFile(p, s.deps.OutDir)
	if err != nil {
		return toolError("Packet built but could not be saved: %v", err)
	}

	attrs := []any{"packet_id", p.ID, "path", path}
	if admin := s.deps.Sessions.CurrentAdmin(); admin != nil {
		attrs = append(attrs, "admin", admin.Email)
	}
	s.logger.Info("mcp packet built", attrs...)
	return successJSON(map[string]interface{}{
		"id":           p.ID,
		"title":        p.Title,
		"filename":     p.Filename,
		"path":         path,
		"documents":    len(docs),
		"bytes":        len(p.Data),
		"size":         humanize.Bytes(uint64(len(p.Data))),
		"generated_at": p.GeneratedAt.Format(time.RFC3339),
	})
}
