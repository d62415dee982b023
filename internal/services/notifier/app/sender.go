// Package app delivers reminder notifications to the Xiaozhi cloud over a
// short-lived WebSocket connection per notification.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	reminders "github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
)

const (
	handshakeTimeout = 15 * time.Second
	writeTimeout     = 10 * time.Second
	dueTimeFormat    = "2006-01-02 15:04"
)

// Sender pushes notifications/message frames to the cloud endpoint.
type Sender struct {
	endpoint string
	token    string
	dialer   *websocket.Dialer
}

// NewSender builds a sender for the given WebSocket endpoint and token.
func NewSender(endpoint, token string) (*Sender, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("access token is required")
	}
	return &Sender{
		endpoint: endpoint,
		token:    token,
		dialer:   &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}, nil
}

type notificationFrame struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  notificationParams `json:"params"`
}

type notificationParams struct {
	Level   string           `json:"level"`
	Message string           `json:"message"`
	Data    notificationData `json:"data"`
}

type notificationData struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueTime     string `json:"datetime"`
}

// NotificationFrame renders the JSON-RPC notification for one reminder.
func NotificationFrame(reminder reminders.Reminder) ([]byte, error) {
	return json.Marshal(notificationFrame{
		JSONRPC: "2.0",
		Method:  "notifications/message",
		Params: notificationParams{
			Level:   "info",
			Message: fmt.Sprintf("REMINDER: %s", reminder.Title),
			Data: notificationData{
				ID:          reminder.ID,
				Title:       reminder.Title,
				Description: reminder.Description,
				DueTime:     reminder.DueAt.Local().Format(dueTimeFormat),
			},
		},
	})
}

// SendReminder dials the endpoint, writes the notification, and closes. A
// fresh connection per notification keeps failures isolated.
func (s *Sender) SendReminder(ctx context.Context, reminder reminders.Reminder) error {
	frame, err := NotificationFrame(reminder)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	endpoint := s.endpoint
	if strings.Contains(endpoint, "?") {
		endpoint += "&token=" + url.QueryEscape(s.token)
	} else {
		endpoint += "?token=" + url.QueryEscape(s.token)
	}

	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.endpoint, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
