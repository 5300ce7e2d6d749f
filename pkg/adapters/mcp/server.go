package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/tabula"
	"github.com/aretw0/tabula/internal/logging"
	"github.com/aretw0/tabula/internal/runtime"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/tabular"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// WorkspaceURI is the resource exposing the current stack and register.
const WorkspaceURI = "tabula://workspace"

// ErrNoWorkspace is returned by commands issued before load_source.
var ErrNoWorkspace = errors.New("no source loaded: call load_source first")

// Engine defines what the MCP server needs from tabula. The MCP host is the
// decision-maker, so only loading and single-command execution are used.
type Engine interface {
	Load(ctx context.Context, source string) (*tabular.Table, error)
	Execute(ctx context.Context, store *tabular.Store, cmd domain.Command) ([]domain.Block, error)
	Operations() string
}

// Server exposes the tabula workspace as an MCP Server.
type Server struct {
	engine      Engine
	mcpServer   *server.MCPServer
	logger      *slog.Logger
	previewRows int

	mu        sync.Mutex
	workspace *tabular.Store
	source    string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPreviewRows sets how many rows workspace overviews show.
func WithPreviewRows(n int) Option {
	return func(s *Server) {
		s.previewRows = n
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:      engine,
		logger:      logging.NewNop(),
		previewRows: runtime.DefaultPreviewRows,
		mcpServer: server.NewMCPServer("tabula-mcp", strings.TrimSpace(tabula.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("load_source",
		mcp.WithDescription("Load a CSV/TSV file as the bottom of a fresh workspace. Any previous workspace is discarded."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the data source")),
	), s.handleLoadSource)

	for _, tool := range domain.Tools() {
		schema, err := json.Marshal(tool.Parameters)
		if err != nil {
			// Parameters are static literals.
			panic(fmt.Sprintf("tool %s: %v", tool.Name, err))
		}
		s.mcpServer.AddTool(mcp.NewToolWithRawSchema(tool.Name, tool.Description, schema), s.handleCommand)
	}

	s.mcpServer.AddTool(mcp.NewTool("workspace",
		mcp.WithDescription("Show the stack of tables and the series register."),
	), s.handleWorkspace)

	s.mcpServer.AddTool(mcp.NewTool("list_operations",
		mcp.WithDescription("List the table and series operations that can be called by name."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(s.engine.Operations()), nil
	})
}

func (s *Server) handleLoadSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	table, err := s.engine.Load(ctx, path)
	if err != nil {
		s.logger.Warn("MCP load_source failed", "path", path, "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	s.workspace = tabular.NewStore(table)
	s.source = path
	overview := s.workspace.Overview(s.previewRows)
	s.mu.Unlock()

	return mcp.NewToolResultText(domain.WorkspaceText(overview)), nil
}

// handleCommand executes one of the four workspace commands. Failures are tool
// errors so the host can correct course.
func (s *Server) handleCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	call := &domain.Call{Name: request.Params.Name, Input: request.GetArguments()}
	cmd, err := call.Command()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workspace == nil {
		return mcp.NewToolResultError(ErrNoWorkspace.Error()), nil
	}

	blocks, err := s.engine.Execute(ctx, s.workspace, cmd)
	if err != nil {
		s.logger.Debug("MCP command failed", "tool", call.Name, "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toResult(blocks), nil
}

func (s *Server) handleWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.overview()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) overview() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workspace == nil {
		return "", ErrNoWorkspace
	}
	return fmt.Sprintf("Source: %s\n%s", s.source, domain.WorkspaceText(s.workspace.Overview(s.previewRows))), nil
}

func toResult(blocks []domain.Block) *mcp.CallToolResult {
	res := &mcp.CallToolResult{}
	for _, b := range blocks {
		switch b.Type {
		case domain.BlockImage:
			res.Content = append(res.Content, mcp.NewImageContent(base64.StdEncoding.EncodeToString(b.Data), b.MediaType))
		case domain.BlockText:
			res.Content = append(res.Content, mcp.NewTextContent(b.Text))
		}
	}
	return res
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(WorkspaceURI, "Current Workspace",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := s.overview()
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      WorkspaceURI,
				MIMEType: "text/plain",
				Text:     text,
			},
		}, nil
	})
}
