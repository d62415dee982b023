// Package mcp exposes the Smithery registry connector as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xiaozhi-community/reminderhub/internal/services/registry/domain"
)

// SearchRegistryInput represents the MCP tool input for searching the registry.
type SearchRegistryInput struct {
	Query    string `json:"query" jsonschema:"search term, e.g. 'github' or 'web search'"`
	Page     int    `json:"page,omitempty" jsonschema:"page number (defaults to 1)"`
	PageSize int    `json:"page_size,omitempty" jsonschema:"results per page (defaults to 10)"`
}

// SearchRegistryResult represents the MCP tool output for searching the registry.
type SearchRegistryResult struct {
	Servers    []json.RawMessage `json:"servers" jsonschema:"matching registry entries"`
	Pagination json.RawMessage   `json:"pagination,omitempty" jsonschema:"pagination metadata"`
	Count      int               `json:"count" jsonschema:"number of entries on this page"`
}

// SearchRegistryTool defines the MCP tool schema for searching the registry.
func SearchRegistryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_smithery_registry",
		Description: "Searches the Smithery registry for MCP servers matching a query.",
	}
}

// SearchRegistryHandler executes a registry search request.
func SearchRegistryHandler(client *domain.Client) mcp.ToolHandlerFor[SearchRegistryInput, SearchRegistryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchRegistryInput) (*mcp.CallToolResult, SearchRegistryResult, error) {
		result, err := client.SearchServers(ctx, input.Query, input.Page, input.PageSize)
		if err != nil {
			return nil, SearchRegistryResult{}, fmt.Errorf("search registry: %w", err)
		}
		return nil, SearchRegistryResult{
			Servers:    result.Servers,
			Pagination: result.Pagination,
			Count:      len(result.Servers),
		}, nil
	}
}

// ServerInfoInput represents the MCP tool input for registry server details.
type ServerInfoInput struct {
	QualifiedName string `json:"qualified_name" jsonschema:"server name in owner/repo format, e.g. 'smithery-ai/github'"`
}

// ServerInfoResult represents the MCP tool output for registry server details.
type ServerInfoResult struct {
	Server json.RawMessage `json:"server" jsonschema:"registry details for the server"`
}

// ServerInfoTool defines the MCP tool schema for registry server details.
func ServerInfoTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_smithery_server_info",
		Description: "Gets detailed registry information about one Smithery server.",
	}
}

// ServerInfoHandler executes a server info request.
func ServerInfoHandler(client *domain.Client) mcp.ToolHandlerFor[ServerInfoInput, ServerInfoResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ServerInfoInput) (*mcp.CallToolResult, ServerInfoResult, error) {
		info, err := client.GetServerInfo(ctx, input.QualifiedName)
		if err != nil {
			return nil, ServerInfoResult{}, fmt.Errorf("server info: %w", err)
		}
		return nil, ServerInfoResult{Server: info}, nil
	}
}

// ConnectServerInput represents the MCP tool input for connecting a hosted server.
type ConnectServerInput struct {
	QualifiedName string `json:"qualified_name" jsonschema:"server name in owner/repo format"`
	ConfigJSON    string `json:"config_json,omitempty" jsonschema:"JSON object with server-specific configuration"`
}

// ConnectServerResult represents the MCP tool output for connecting a hosted server.
type ConnectServerResult struct {
	Message      string          `json:"message" jsonschema:"human-readable confirmation"`
	ServerURL    string          `json:"server_url" jsonschema:"endpoint of the connected server"`
	Capabilities json.RawMessage `json:"capabilities,omitempty" jsonschema:"capabilities reported by the server"`
}

// ConnectServerTool defines the MCP tool schema for connecting a hosted server.
func ConnectServerTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "connect_smithery_server",
		Description: "Connects to a Smithery hosted MCP server so its tools can be listed and called.",
	}
}

// ConnectServerHandler executes a hosted-server connection request.
func ConnectServerHandler(client *domain.Client) mcp.ToolHandlerFor[ConnectServerInput, ConnectServerResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ConnectServerInput) (*mcp.CallToolResult, ConnectServerResult, error) {
		var config map[string]any
		if input.ConfigJSON != "" {
			if err := json.Unmarshal([]byte(input.ConfigJSON), &config); err != nil {
				return nil, ConnectServerResult{}, fmt.Errorf("parse config_json: %w", err)
			}
		}
		conn, err := client.ConnectHostedServer(ctx, input.QualifiedName, config, "")
		if err != nil {
			return nil, ConnectServerResult{}, fmt.Errorf("connect server: %w", err)
		}
		return nil, ConnectServerResult{
			Message:      fmt.Sprintf("Connected to %s", input.QualifiedName),
			ServerURL:    conn.URL,
			Capabilities: conn.Capabilities,
		}, nil
	}
}

// ListServersInput represents the MCP tool input for listing connected servers.
type ListServersInput struct{}

// ConnectedServerPayload is the wire shape of one connected server.
type ConnectedServerPayload struct {
	Name      string `json:"name" jsonschema:"qualified server name"`
	URL       string `json:"url" jsonschema:"endpoint of the connected server"`
	Connected bool   `json:"connected" jsonschema:"always true for listed servers"`
}

// ListServersResult represents the MCP tool output for listing connected servers.
type ListServersResult struct {
	Servers []ConnectedServerPayload `json:"servers" jsonschema:"connected hosted servers"`
	Count   int                      `json:"count" jsonschema:"number of connected servers"`
}

// ListServersTool defines the MCP tool schema for listing connected servers.
func ListServersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_smithery_servers",
		Description: "Lists the Smithery hosted servers this session has connected to.",
	}
}

// ListServersHandler executes a connected-servers listing request.
func ListServersHandler(client *domain.Client) mcp.ToolHandlerFor[ListServersInput, ListServersResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ ListServersInput) (*mcp.CallToolResult, ListServersResult, error) {
		conns := client.ListConnections()
		servers := make([]ConnectedServerPayload, 0, len(conns))
		for _, conn := range conns {
			servers = append(servers, ConnectedServerPayload{
				Name:      conn.QualifiedName,
				URL:       conn.URL,
				Connected: true,
			})
		}
		return nil, ListServersResult{Servers: servers, Count: len(servers)}, nil
	}
}

// ListToolsInput represents the MCP tool input for listing a server's tools.
type ListToolsInput struct {
	QualifiedName string `json:"qualified_name" jsonschema:"name of a connected server"`
}

// ListToolsResult represents the MCP tool output for listing a server's tools.
type ListToolsResult struct {
	Server string            `json:"server" jsonschema:"qualified server name"`
	Tools  []json.RawMessage `json:"tools" jsonschema:"tools advertised by the server"`
	Count  int               `json:"count" jsonschema:"number of tools"`
}

// ListToolsTool defines the MCP tool schema for listing a server's tools.
func ListToolsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_smithery_tools",
		Description: "Lists the tools available on a connected Smithery server.",
	}
}

// ListToolsHandler executes a tool listing request against a hosted server.
func ListToolsHandler(client *domain.Client) mcp.ToolHandlerFor[ListToolsInput, ListToolsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListToolsInput) (*mcp.CallToolResult, ListToolsResult, error) {
		tools, err := client.ListTools(ctx, input.QualifiedName)
		if err != nil {
			return nil, ListToolsResult{}, fmt.Errorf("list tools: %w", err)
		}
		return nil, ListToolsResult{
			Server: input.QualifiedName,
			Tools:  tools,
			Count:  len(tools),
		}, nil
	}
}

// CallToolInput represents the MCP tool input for proxying a tool call.
type CallToolInput struct {
	QualifiedName string `json:"qualified_name" jsonschema:"name of a connected server"`
	ToolName      string `json:"tool_name" jsonschema:"name of the tool to call"`
	ArgumentsJSON string `json:"arguments_json,omitempty" jsonschema:"JSON object with tool arguments"`
}

// CallToolResult represents the MCP tool output for proxying a tool call.
type CallToolResult struct {
	Server string          `json:"server" jsonschema:"qualified server name"`
	Tool   string          `json:"tool" jsonschema:"tool that was called"`
	Result json.RawMessage `json:"result" jsonschema:"raw result returned by the server"`
}

// CallToolTool defines the MCP tool schema for proxying a tool call.
func CallToolTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "call_smithery_tool",
		Description: "Calls a tool on a connected Smithery server and returns its raw result.",
	}
}

// CallToolHandler executes a proxied tool call against a hosted server.
func CallToolHandler(client *domain.Client) mcp.ToolHandlerFor[CallToolInput, CallToolResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CallToolInput) (*mcp.CallToolResult, CallToolResult, error) {
		var arguments map[string]any
		if input.ArgumentsJSON != "" {
			if err := json.Unmarshal([]byte(input.ArgumentsJSON), &arguments); err != nil {
				return nil, CallToolResult{}, fmt.Errorf("parse arguments_json: %w", err)
			}
		}
		result, err := client.CallTool(ctx, input.QualifiedName, input.ToolName, arguments)
		if err != nil {
			return nil, CallToolResult{}, fmt.Errorf("call tool: %w", err)
		}
		return nil, CallToolResult{
			Server: input.QualifiedName,
			Tool:   input.ToolName,
			Result: result,
		}, nil
	}
}
