package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
)

// ServerConfig describes one pre-configured hosted server entry.
type ServerConfig struct {
	Enabled       bool              `json:"enabled"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	QualifiedName string            `json:"qualified_name"`
	URL           string            `json:"url"`
	Params        map[string]string `json:"params,omitempty"`
	Config        map[string]any    `json:"config,omitempty"`
	Description   string            `json:"description,omitempty"`
}

type serversFile struct {
	Servers []ServerConfig `json:"servers"`
}

// ConnectedServer records one successful auto-connect.
type ConnectedServer struct {
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	URL           string `json:"url"`
	Description   string `json:"description"`
	Status        string `json:"status"`
}

// AutoConnectStatus summarizes an auto-connect run.
type AutoConnectStatus struct {
	TotalConfigured int               `json:"total_configured"`
	Enabled         int               `json:"enabled"`
	Connected       int               `json:"connected"`
	Servers         []ConnectedServer `json:"servers"`
}

// AutoConnector connects to pre-configured hosted servers on startup.
type AutoConnector struct {
	client     *Client
	configPath string

	mu        sync.Mutex
	configs   []ServerConfig
	connected map[string]ConnectedServer
}

// NewAutoConnector wires an auto-connector over a Smithery client and a
// servers_config.json path.
func NewAutoConnector(client *Client, configPath string) *AutoConnector {
	return &AutoConnector{
		client:     client,
		configPath: configPath,
		connected:  make(map[string]ConnectedServer),
	}
}

// defaultServersConfig seeds a disabled example entry so operators can see
// the expected shape.
var defaultServersConfig = serversFile{
	Servers: []ServerConfig{{
		Enabled:       false,
		Name:          "whatsapp",
		Type:          "remote",
		QualifiedName: "Quegenx/wapulse-whatsapp-mcp",
		URL:           "https://server.smithery.ai/@Quegenx/wapulse-whatsapp-mcp/mcp",
		Params: map[string]string{
			"api_key": "${SMITHERY_API_KEY}",
			"profile": "structural-finch-M804tv",
		},
		Description: "WhatsApp messaging server",
	}},
}

// LoadConfig reads the server configuration, creating a default file when
// none exists.
func (a *AutoConnector) LoadConfig() error {
	data, err := os.ReadFile(a.configPath)
	if os.IsNotExist(err) {
		log.Printf("config file not found, creating default at %s", a.configPath)
		if err := a.writeDefaultConfig(); err != nil {
			return err
		}
		data, err = os.ReadFile(a.configPath)
		if err != nil {
			return fmt.Errorf("read default config: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var file serversFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", a.configPath, err)
	}

	a.mu.Lock()
	a.configs = file.Servers
	a.mu.Unlock()
	log.Printf("loaded %d server configurations", len(file.Servers))
	return nil
}

func (a *AutoConnector) writeDefaultConfig() error {
	data, err := json.MarshalIndent(defaultServersConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(a.configPath, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars replaces ${VAR} references with environment values, warning
// on unset variables.
func ExpandEnvVars(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := match[2 : len(match)-1]
		resolved, ok := os.LookupEnv(name)
		if !ok || resolved == "" {
			log.Printf("environment variable %s not set", name)
		}
		return resolved
	})
}

func expandConfigValues(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	expanded := make(map[string]any, len(config))
	for key, value := range config {
		if s, ok := value.(string); ok {
			expanded[key] = ExpandEnvVars(s)
			continue
		}
		expanded[key] = value
	}
	return expanded
}

// connectURL appends resolved query params to the configured server URL.
func connectURL(cfg ServerConfig) string {
	if len(cfg.Params) == 0 {
		return cfg.URL
	}
	values := url.Values{}
	for key, value := range cfg.Params {
		values.Set(key, ExpandEnvVars(value))
	}
	return cfg.URL + "?" + values.Encode()
}

// ConnectAll connects every enabled server, logging per-server outcomes.
// Failures do not abort the run.
func (a *AutoConnector) ConnectAll(ctx context.Context) AutoConnectStatus {
	if err := a.LoadConfig(); err != nil {
		log.Printf("auto-connect: %v", err)
		return a.Status()
	}

	a.mu.Lock()
	configs := make([]ServerConfig, len(a.configs))
	copy(configs, a.configs)
	a.mu.Unlock()

	var enabled []ServerConfig
	for _, cfg := range configs {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	if len(enabled) == 0 {
		log.Printf("no servers enabled for auto-connect")
		return a.Status()
	}
	log.Printf("auto-connecting to %d enabled server(s)", len(enabled))

	var wg sync.WaitGroup
	var success atomic.Int64
	for _, cfg := range enabled {
		wg.Add(1)
		go func(cfg ServerConfig) {
			defer wg.Done()
			if err := a.connectOne(ctx, cfg); err != nil {
				log.Printf("failed to connect %s: %v", cfg.Name, err)
				return
			}
			log.Printf("connected to %s (%s)", cfg.Name, cfg.QualifiedName)
			success.Add(1)
		}(cfg)
	}
	wg.Wait()
	log.Printf("auto-connect complete: %d/%d successful", success.Load(), len(enabled))
	return a.Status()
}

func (a *AutoConnector) connectOne(ctx context.Context, cfg ServerConfig) error {
	fullURL := connectURL(cfg)
	conn, err := a.client.ConnectHostedServer(ctx, cfg.QualifiedName, expandConfigValues(cfg.Config), fullURL)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.connected[cfg.Name] = ConnectedServer{
		Name:          cfg.Name,
		QualifiedName: cfg.QualifiedName,
		URL:           conn.URL,
		Description:   cfg.Description,
		Status:        "connected",
	}
	a.mu.Unlock()
	return nil
}

// Status reports the configured, enabled, and connected server counts.
func (a *AutoConnector) Status() AutoConnectStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	enabled := 0
	for _, cfg := range a.configs {
		if cfg.Enabled {
			enabled++
		}
	}
	servers := make([]ConnectedServer, 0, len(a.connected))
	for _, server := range a.connected {
		servers = append(servers, server)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })

	return AutoConnectStatus{
		TotalConfigured: len(a.configs),
		Enabled:         enabled,
		Connected:       len(servers),
		Servers:         servers,
	}
}
