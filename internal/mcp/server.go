// Package mcp exposes packet assembly to MCP clients over stdio. Tools act
// as the admin whose session the CLI holds; packet_build refuses to run
// without one.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/session"
)

// Sessions answers who, if anyone, is logged in. *service.AuthService
// implements it.
type Sessions interface {
	IsLoggedIn() bool
	CurrentAdmin() *session.Current
}

// PacketBuilder generates a packet. *packet.Client implements it.
type PacketBuilder interface {
	Build(ctx context.Context, req model.PacketRequest) (*model.Packet, error)
}

// DocumentLister enumerates selectable documents. *packet.DirSource
// implements it.
type DocumentLister interface {
	List(ctx context.Context) ([]string, error)
}

// Deps are the collaborators the tools call. Packets may be nil when no
// worker is configured; packet_build then reports that instead of building.
type Deps struct {
	Sessions  Sessions
	Packets   PacketBuilder
	Documents DocumentLister
	OutDir    string // where packet_build writes PDFs
}

// MCPServer wraps the mcp-go server with the packetdesk tools and resources.
type MCPServer struct {
	deps   Deps
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer with every tool and resource registered.
func NewMCPServer(deps Deps, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.OutDir == "" {
		deps.OutDir = "."
	}
	s := &MCPServer{deps: deps, logger: logger}

	mcpServer := server.NewMCPServer(
		"packetdesk",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go server.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves JSON-RPC over stdin/stdout until stdin closes.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{ReadOnlyHint: boolPtr(false)}
}

func boolPtr(b bool) *bool {
	return &b
}
