package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/packet"
)

func newPacketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packet",
		Short: "Assemble documents into a PDF packet",
		Long: `Assemble documents from the configured documents directory into a single PDF
using the generation worker at worker.url. Requires an admin session
('packetdesk auth login').`,
	}

	cmd.AddCommand(newPacketBuildCmd())
	cmd.AddCommand(newPacketDocsCmd())

	return cmd
}

// ---------- packet build ----------

func newPacketBuildCmd() *cobra.Command {
	var (
		title   string
		docs    []string
		outDir  string
		preview bool
		dataURL bool
	)

	cmd := &cobra.Command{
		Use:   "build [document...]",
		Short: "Build a PDF packet from documents",
		Example: `  packetdesk packet build --title "Board Pack" agenda.pdf minutes.pdf
  packetdesk packet build --title "Q1" --doc reports/q1.csv --out ./packets
  packetdesk packet build --title "Draft" agenda.pdf --preview`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPacketBuild(cmd, title, append(docs, args...), outDir, preview, dataURL)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Packet title (required)")
	cmd.Flags().StringSliceVar(&docs, "doc", nil, "Document to include, relative to documents.dir (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write the PDF to")
	cmd.Flags().BoolVar(&preview, "preview", false, "Write to a temporary file and print its file:// URL")
	cmd.Flags().BoolVar(&dataURL, "data-url", false, "Print the packet as a data: URL instead of writing a file")
	cmd.MarkFlagRequired("title")

	return cmd
}

func runPacketBuild(cmd *cobra.Command, title string, docs []string, outDir string, preview, dataURL bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	env, err := openSessionEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if !env.authSvc.IsLoggedIn() {
		return fmt.Errorf("not logged in; run 'packetdesk auth login' first")
	}
	client, err := newPacketClient(env)
	if err != nil {
		return err
	}

	p, err := client.Build(ctx, model.PacketRequest{Title: title, Documents: docs})
	if err != nil {
		return fmt.Errorf("build packet: %w", err)
	}

	if dataURL {
		fmt.Fprintln(out, packet.DataURL(p))
		return nil
	}

	dir := outDir
	if preview {
		if dir, err = os.MkdirTemp("", "packetdesk-preview-"); err != nil {
			return fmt.Errorf("create preview dir: %w", err)
		}
	}
	path, err := packet.WriteFile(p, dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Built packet %q (%d documents, %s)\n", p.Title, len(docs), humanize.Bytes(uint64(len(p.Data))))
	if preview {
		abs, _ := filepath.Abs(path)
		fmt.Fprintf(out, "  Preview: file://%s\n", filepath.ToSlash(abs))
	} else {
		fmt.Fprintf(out, "  Saved:   %s\n", path)
	}
	fmt.Fprintf(out, "  ID:      %s\n", p.ID)
	return nil
}

func newPacketClient(env *cliEnv) (*packet.Client, error) {
	if env.cfg.Worker.URL == "" {
		return nil, fmt.Errorf("worker.url is not configured")
	}
	pc, err := env.cfg.PacketClient()
	if err != nil {
		return nil, err
	}
	client, err := packet.NewClient(pc, packet.NewDirSource(env.cfg.Documents.Dir), env.logger)
	if err != nil {
		return nil, fmt.Errorf("packet client: %w", err)
	}
	return client, nil
}

// ---------- packet docs ----------

func newPacketDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "docs",
		Aliases: []string{"ls"},
		Short:   "List documents available for packets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names, err := packet.NewDirSource(cfg.Documents.Dir).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list documents in %s: %w", cfg.Documents.Dir, err)
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintf(out, "No documents found in %s.\n", cfg.Documents.Dir)
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}
}
