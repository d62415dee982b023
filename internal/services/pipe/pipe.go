// Package pipe bridges a stdio MCP server process to the Xiaozhi cloud
// WebSocket endpoint, reconnecting with exponential backoff when either side
// drops.
package pipe

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 60 * time.Second
	handshakeTimeout      = 15 * time.Second
	pingInterval          = 20 * time.Second
	pingWait              = 10 * time.Second
	childStopGrace        = 5 * time.Second
	minTokenLength        = 10
	protocolVersion       = "2024-11-05"
)

// ErrTokenTooShort indicates the access token failed basic validation.
var ErrTokenTooShort = errors.New("access token is too short")

// Config describes one bridge: the cloud endpoint and the MCP server command.
type Config struct {
	// Endpoint is the WebSocket URL, e.g. wss://api.xiaozhi.me/mcp/.
	Endpoint string
	// Token authenticates against the endpoint via a query parameter.
	Token string
	// ServerBin is the MCP server binary spawned for each session.
	ServerBin string
	// ServerArgs are passed to the server binary.
	ServerArgs []string
	// ServerEnv extends the inherited environment of the server process.
	ServerEnv []string
}

// ValidateToken trims the token and rejects obviously broken values.
func ValidateToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if len(token) < minTokenLength {
		return "", fmt.Errorf("%w: %d characters", ErrTokenTooShort, len(token))
	}
	return token, nil
}

// MaskToken renders a token safe for logs, keeping only the edges visible.
func MaskToken(token string) string {
	if len(token) < minTokenLength+4 {
		return strings.Repeat("*", len(token))
	}
	return token[:minTokenLength] + "..." + token[len(token)-4:]
}

// NextReconnectDelay doubles the backoff up to the 60s ceiling.
func NextReconnectDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > maxReconnectDelay {
		return maxReconnectDelay
	}
	return next
}

type rpcFrame struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// InitializeRequest is the handshake frame sent to the MCP server before any
// cloud traffic is forwarded.
func InitializeRequest() ([]byte, error) {
	return json.Marshal(rpcFrame{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"roots":    map[string]any{"listChanged": true},
				"sampling": map[string]any{},
			},
			"clientInfo": map[string]any{"name": "xiaozhi-client", "version": "1.0.0"},
		},
	})
}

// InitializedNotification follows the initialize request.
func InitializedNotification() ([]byte, error) {
	return json.Marshal(rpcFrame{JSONRPC: "2.0", Method: "notifications/initialized"})
}

// Pipe runs the bridge loop.
type Pipe struct {
	cfg    Config
	dialer *websocket.Dialer
}

// New validates the config and constructs a bridge.
func New(cfg Config) (*Pipe, error) {
	token, err := ValidateToken(cfg.Token)
	if err != nil {
		return nil, err
	}
	cfg.Token = token
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.ServerBin == "" {
		return nil, fmt.Errorf("server binary is required")
	}
	return &Pipe{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}, nil
}

// Run bridges sessions until the context is cancelled. Each failed session
// backs off before the next attempt; a successful connection resets the
// backoff.
func (p *Pipe) Run(ctx context.Context) error {
	log.Printf("bridging %s to %s (token %s)", p.cfg.ServerBin, p.cfg.Endpoint, MaskToken(p.cfg.Token))

	delay := initialReconnectDelay
	for {
		connected, err := p.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Printf("session ended: %v", err)
		}
		if connected {
			delay = initialReconnectDelay
		}

		log.Printf("reconnecting in %s", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = NextReconnectDelay(delay)
	}
}

// runSession spawns one MCP server process, dials the endpoint, and pumps
// frames both ways until either side fails. The connected return reports
// whether the WebSocket handshake succeeded.
func (p *Pipe) runSession(ctx context.Context) (bool, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(sessionCtx, p.cfg.ServerBin, p.cfg.ServerArgs...)
	cmd.Env = append(os.Environ(), p.cfg.ServerEnv...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = childStopGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return false, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return false, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("start mcp server: %w", err)
	}
	log.Printf("mcp server started, pid %d", cmd.Process.Pid)
	defer cmd.Wait()

	conn, err := p.dial(sessionCtx)
	if err != nil {
		cancel()
		return false, err
	}
	defer conn.Close()
	log.Printf("websocket connected")

	if err := p.initializeServer(sessionCtx, stdin); err != nil {
		cancel()
		return true, fmt.Errorf("initialize mcp server: %w", err)
	}

	session := &session{conn: conn, stdin: stdin}
	group, groupCtx := errgroup.WithContext(sessionCtx)
	group.Go(func() error { return session.pumpProcessToSocket(stdout) })
	group.Go(func() error { return session.pumpSocketToProcess() })
	group.Go(func() error { return forwardStderr(stderr) })
	group.Go(func() error { return session.keepAlive(groupCtx) })
	group.Go(func() error {
		// Unblock the socket reader when another pump fails.
		<-groupCtx.Done()
		conn.Close()
		return nil
	})

	err = group.Wait()
	return true, err
}

func (p *Pipe) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := p.cfg.Endpoint
	if strings.Contains(endpoint, "?") {
		endpoint += "&token=" + url.QueryEscape(p.cfg.Token)
	} else {
		endpoint += "?token=" + url.QueryEscape(p.cfg.Token)
	}

	conn, resp, err := p.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 401 {
			return nil, fmt.Errorf("dial %s: authentication failed (401), verify the access token: %w", p.cfg.Endpoint, err)
		}
		return nil, fmt.Errorf("dial %s: %w", p.cfg.Endpoint, err)
	}
	return conn, nil
}

// initializeServer performs the MCP handshake with the child before cloud
// traffic flows, giving the server a moment to process the request.
func (p *Pipe) initializeServer(ctx context.Context, stdin io.Writer) error {
	request, err := InitializeRequest()
	if err != nil {
		return err
	}
	if _, err := stdin.Write(append(request, '\n')); err != nil {
		return fmt.Errorf("write initialize: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
	}

	notification, err := InitializedNotification()
	if err != nil {
		return err
	}
	if _, err := stdin.Write(append(notification, '\n')); err != nil {
		return fmt.Errorf("write initialized notification: %w", err)
	}
	return nil
}

// session owns one WebSocket connection and the child's stdin. Socket writes
// are serialized because the frame pump and keepalive share the connection.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	stdin   io.Writer
}

func (s *session) writeMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *session) pumpProcessToSocket(stdout io.Reader) error {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := s.writeMessage(websocket.TextMessage, []byte(line)); err != nil {
			return fmt.Errorf("forward to socket: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read mcp server stdout: %w", err)
	}
	return errors.New("mcp server closed stdout")
}

func (s *session) pumpSocketToProcess() error {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read from socket: %w", err)
		}
		if name := toolCallName(message); name != "" {
			log.Printf("tool call received: %s", name)
		}
		if _, err := s.stdin.Write(append(message, '\n')); err != nil {
			return fmt.Errorf("forward to mcp server: %w", err)
		}
	}
}

// keepAlive pings the endpoint so half-dead connections fail fast.
func (s *session) keepAlive(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWait))
			s.writeMu.Unlock()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func forwardStderr(stderr io.Reader) error {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			log.Printf("[mcp stderr] %s", line)
		}
	}
	return nil
}

// toolCallName extracts the tool name from a tools/call frame, or returns ""
// for any other traffic.
func toolCallName(message []byte) string {
	var frame struct {
		Method string `json:"method"`
		Params struct {
			Name string `json:"name"`
		} `json:"params"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return ""
	}
	if frame.Method != "tools/call" {
		return ""
	}
	return frame.Params.Name
}
