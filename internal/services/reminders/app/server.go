// Package app assembles the reminder MCP server over its domain service and
// SQLite store, optionally extended with the Smithery registry tools.
package app

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	registrydomain "github.com/xiaozhi-community/reminderhub/internal/services/registry/domain"
	registrymcp "github.com/xiaozhi-community/reminderhub/internal/services/registry/mcp"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
	remindermcp "github.com/xiaozhi-community/reminderhub/internal/services/reminders/mcp"
)

const (
	serverName    = "reminderhub"
	serverVersion = "1.0.0"
)

// Options configures server assembly.
type Options struct {
	Service *domain.Service
	// Registry enables the Smithery connector tools when non-nil.
	Registry *registrydomain.Client
	// AutoConnector, when set alongside Registry, connects pre-configured
	// hosted servers before the server starts serving.
	AutoConnector *registrydomain.AutoConnector
}

// Server hosts the reminder MCP server.
type Server struct {
	mcpServer     *mcp.Server
	autoConnector *registrydomain.AutoConnector
}

// New builds the MCP server and registers its tools.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("reminder service is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{})

	mcp.AddTool(mcpServer, remindermcp.AddReminderTool(), remindermcp.AddReminderHandler(opts.Service))
	mcp.AddTool(mcpServer, remindermcp.ListRemindersTool(), remindermcp.ListRemindersHandler(opts.Service))
	mcp.AddTool(mcpServer, remindermcp.CompleteReminderTool(), remindermcp.CompleteReminderHandler(opts.Service))
	mcp.AddTool(mcpServer, remindermcp.DeleteReminderTool(), remindermcp.DeleteReminderHandler(opts.Service))
	mcp.AddTool(mcpServer, remindermcp.UpcomingRemindersTool(), remindermcp.UpcomingRemindersHandler(opts.Service))
	mcp.AddTool(mcpServer, remindermcp.OverdueRemindersTool(), remindermcp.OverdueRemindersHandler(opts.Service))
	mcp.AddTool(mcpServer, remindermcp.SearchRemindersTool(), remindermcp.SearchRemindersHandler(opts.Service))
	mcp.AddTool(mcpServer, remindermcp.ReminderStatsTool(), remindermcp.ReminderStatsHandler(opts.Service))

	if opts.Registry != nil {
		mcp.AddTool(mcpServer, registrymcp.SearchRegistryTool(), registrymcp.SearchRegistryHandler(opts.Registry))
		mcp.AddTool(mcpServer, registrymcp.ServerInfoTool(), registrymcp.ServerInfoHandler(opts.Registry))
		mcp.AddTool(mcpServer, registrymcp.ConnectServerTool(), registrymcp.ConnectServerHandler(opts.Registry))
		mcp.AddTool(mcpServer, registrymcp.ListServersTool(), registrymcp.ListServersHandler(opts.Registry))
		mcp.AddTool(mcpServer, registrymcp.ListToolsTool(), registrymcp.ListToolsHandler(opts.Registry))
		mcp.AddTool(mcpServer, registrymcp.CallToolTool(), registrymcp.CallToolHandler(opts.Registry))
	}

	return &Server{
		mcpServer:     mcpServer,
		autoConnector: opts.AutoConnector,
	}, nil
}

// Serve runs the MCP server over stdio until the context is cancelled or the
// client disconnects. Auto-connect failures are logged by the connector and
// never block serving.
func (s *Server) Serve(ctx context.Context) error {
	if s.autoConnector != nil {
		s.autoConnector.ConnectAll(ctx)
	}
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
