// Package domain implements the Smithery registry connector: searching the
// registry, connecting to hosted MCP servers, and proxying tool calls to them.
package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrAPIKeyMissing indicates the Smithery API key is not configured.
	ErrAPIKeyMissing = errors.New("smithery api key is not set")
	// ErrNotConnected indicates a hosted server must be connected before use.
	ErrNotConnected = errors.New("server is not connected")
)

const (
	defaultRegistryURL = "https://registry.smithery.ai"
	defaultServerURL   = "https://server.smithery.ai"
	requestTimeout     = 30 * time.Second
	protocolVersion    = "2024-11-05"
	clientName         = "reminderhub"
	clientVersion      = "1.0.0"
)

// Connection tracks one hosted server the client has initialized.
type Connection struct {
	QualifiedName string
	URL           string
	Config        map[string]any
	Capabilities  json.RawMessage
}

// Client talks to the Smithery registry and its hosted MCP servers.
type Client struct {
	apiKey      string
	registryURL string
	serverURL   string
	httpClient  *http.Client

	mu      sync.Mutex
	servers map[string]Connection
}

// Option customizes client construction.
type Option func(*Client)

// WithRegistryURL overrides the registry endpoint.
func WithRegistryURL(u string) Option {
	return func(c *Client) { c.registryURL = u }
}

// WithServerBaseURL overrides the hosted-server endpoint.
func WithServerBaseURL(u string) Option {
	return func(c *Client) { c.serverURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient constructs a Smithery client. An empty API key is allowed but all
// registry calls will fail with ErrAPIKeyMissing.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		registryURL: defaultRegistryURL,
		serverURL:   defaultServerURL,
		httpClient:  &http.Client{Timeout: requestTimeout},
		servers:     make(map[string]Connection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchResult holds one page of registry search results.
type SearchResult struct {
	Servers    []json.RawMessage `json:"servers"`
	Pagination json.RawMessage   `json:"pagination,omitempty"`
}

// SearchServers queries the registry for servers matching the query.
func (c *Client) SearchServers(ctx context.Context, query string, page, pageSize int) (SearchResult, error) {
	if c.apiKey == "" {
		return SearchResult{}, ErrAPIKeyMissing
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	endpoint, err := url.Parse(c.registryURL + "/servers")
	if err != nil {
		return SearchResult{}, fmt.Errorf("parse registry url: %w", err)
	}
	values := endpoint.Query()
	values.Set("q", query)
	values.Set("page", strconv.Itoa(page))
	values.Set("pageSize", strconv.Itoa(pageSize))
	endpoint.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return SearchResult{}, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SearchResult{}, statusError("search", resp)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SearchResult{}, fmt.Errorf("decode search response: %w", err)
	}
	return result, nil
}

// GetServerInfo fetches registry details for one server, identified by its
// qualified name in owner/repo format.
func (c *Client) GetServerInfo(ctx context.Context, qualifiedName string) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.registryURL+"/servers/"+qualifiedName, nil)
	if err != nil {
		return nil, fmt.Errorf("build info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get server info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("server info", resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read info response: %w", err)
	}
	return json.RawMessage(body), nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ConnectHostedServer initializes a hosted MCP server session. An empty
// overrideURL derives the endpoint from the qualified name; server-specific
// config travels in the X-Server-Config header.
func (c *Client) ConnectHostedServer(ctx context.Context, qualifiedName string, config map[string]any, overrideURL string) (Connection, error) {
	if c.apiKey == "" {
		return Connection{}, ErrAPIKeyMissing
	}

	serverURL := overrideURL
	if serverURL == "" {
		serverURL = c.serverURL + "/@" + qualifiedName
	}

	result, err := c.post(ctx, serverURL, config, rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"sampling": map[string]any{}},
			"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
		},
	})
	if err != nil {
		return Connection{}, fmt.Errorf("connect %s: %w", qualifiedName, err)
	}

	conn := Connection{
		QualifiedName: qualifiedName,
		URL:           serverURL,
		Config:        config,
		Capabilities:  result,
	}
	c.mu.Lock()
	c.servers[qualifiedName] = conn
	c.mu.Unlock()
	return conn, nil
}

// ListConnections returns connected servers ordered by qualified name.
func (c *Client) ListConnections() []Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	conns := make([]Connection, 0, len(c.servers))
	for _, conn := range c.servers {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].QualifiedName < conns[j].QualifiedName })
	return conns
}

// ListTools lists the tools a connected hosted server advertises.
func (c *Client) ListTools(ctx context.Context, qualifiedName string) ([]json.RawMessage, error) {
	conn, ok := c.connection(qualifiedName)
	if !ok {
		return nil, fmt.Errorf("%s: %w", qualifiedName, ErrNotConnected)
	}

	result, err := c.post(ctx, conn.URL, conn.Config, rpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/list",
	})
	if err != nil {
		return nil, fmt.Errorf("list tools on %s: %w", qualifiedName, err)
	}

	var payload struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("decode tool list: %w", err)
	}
	return payload.Tools, nil
}

// CallTool invokes one tool on a connected hosted server.
func (c *Client) CallTool(ctx context.Context, qualifiedName, toolName string, arguments map[string]any) (json.RawMessage, error) {
	conn, ok := c.connection(qualifiedName)
	if !ok {
		return nil, fmt.Errorf("%s: %w", qualifiedName, ErrNotConnected)
	}

	result, err := c.post(ctx, conn.URL, conn.Config, rpcRequest{
		JSONRPC: "2.0",
		ID:      3,
		Method:  "tools/call",
		Params: map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", toolName, qualifiedName, err)
	}
	return result, nil
}

func (c *Client) connection(qualifiedName string) (Connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.servers[qualifiedName]
	return conn, ok
}

func (c *Client) post(ctx context.Context, serverURL string, config map[string]any, request rpcRequest) (json.RawMessage, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if len(config) > 0 {
		encoded, err := json.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("encode server config: %w", err)
		}
		req.Header.Set("X-Server-Config", string(encoded))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("request", resp)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpc.Error != nil {
		return nil, rpc.Error
	}
	return rpc.Result, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s failed: status %d: %s", op, resp.StatusCode, bytes.TrimSpace(body))
}
