package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/tabula/internal/cli"
	"github.com/aretw0/tabula/pkg/adapters/mcp"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
	"github.com/spf13/cobra"
)

// errHostDecides is returned if anything tries to consult in MCP mode, where the
// connected agent makes every decision itself.
var errHostDecides = errors.New("the MCP host makes all decisions")

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the workspace commands as MCP tools, so an agent (like Claude Desktop)
can analyse data sets directly.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		port := cfg.Server.MCPPort
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		log.SetOutput(os.Stderr)
		logger := cli.NewLogger(cfg, false)

		noConsult := ports.ConsultantFunc(func(context.Context, *domain.Transcript) (domain.Decision, error) {
			return domain.Decision{}, errHostDecides
		})
		engine, err := cli.NewEngine(cfg, noConsult, logger)
		if err != nil {
			return err
		}

		srv := mcp.NewServer(engine, mcp.WithLogger(logger), mcp.WithPreviewRows(cfg.Engine.PreviewRows))

		switch transport {
		case "stdio":
			logger.Info("Starting Tabula MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting Tabula MCP Server (SSE)", "port", port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		}
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
