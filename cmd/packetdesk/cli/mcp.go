package cli

import (
	"github.com/spf13/cobra"

	pmcp "github.com/faucetdb/packetdesk/internal/mcp"
	"github.com/faucetdb/packetdesk/internal/packet"
)

func newMCPCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server on stdin/stdout that exposes
packet assembly as tools: packet_auth_status, packet_docs and packet_build.

Tools act as the admin logged in with 'packetdesk auth login'. The session is
re-read on every call, so logging out in another shell takes effect at once.`,
		Example: `  packetdesk mcp
  packetdesk mcp --out ~/packets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mcpSrv, err := newMCPServer(outDir)
			if err != nil {
				return err
			}
			return mcpSrv.ServeStdio()
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory packet_build writes PDFs to")

	return cmd
}

// newMCPServer wires the MCP tools to the CLI session. stdout carries the
// protocol, so everything else logs to stderr.
func newMCPServer(outDir string) (*pmcp.MCPServer, error) {
	env, err := openSessionEnv()
	if err != nil {
		return nil, err
	}

	deps := pmcp.Deps{
		Sessions:  env.authSvc,
		Documents: packet.NewDirSource(env.cfg.Documents.Dir),
		OutDir:    outDir,
	}
	if env.cfg.Worker.URL != "" {
		client, err := newPacketClient(env)
		if err != nil {
			return nil, err
		}
		deps.Packets = client
	} else {
		env.logger.Warn("worker.url not set; packet_build is disabled")
	}
	return pmcp.NewMCPServer(deps, versionString(), env.logger), nil
}
