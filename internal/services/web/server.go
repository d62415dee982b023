// Package web serves the reminder status surface: a health check, a small
// JSON API, and an HTML status page.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	dueTimeFormat     = "2006-01-02 15:04"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server hosts the HTTP surface over the reminder service.
type Server struct {
	addr    string
	service *domain.Service
	pinger  Pinger
}

// NewServer wires the HTTP surface.
func NewServer(addr string, service *domain.Service, pinger Pinger) *Server {
	return &Server{addr: addr, service: service, pinger: pinger}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	router := chi.NewMux()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)
	router.Get("/api/reminders", s.handleReminders)
	router.Get("/api/stats", s.handleStats)
	router.Get("/", s.handleIndex)

	return router
}

// Serve runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	log.Printf("serving on %s", s.addr)

	group, groupCtx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return groupCtx
		},
		ReadHeaderTimeout: readHeaderTimeout,
	}

	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reminderPayload struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueTime     string `json:"due_time"`
	Completed   bool   `json:"completed"`
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	includeCompleted := r.URL.Query().Get("all") == "1"
	userID := r.URL.Query().Get("user")

	reminders, err := s.service.List(r.Context(), userID, includeCompleted)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	payloads := make([]reminderPayload, 0, len(reminders))
	for _, reminder := range reminders {
		payloads = append(payloads, reminderPayload{
			ID:          reminder.ID,
			Title:       reminder.Title,
			Description: reminder.Description,
			DueTime:     reminder.DueAt.Local().Format(dueTimeFormat),
			Completed:   reminder.Completed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reminders": payloads,
		"count":     len(payloads),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"total":        stats.Total,
		"completed":    stats.Completed,
		"pending":      stats.Pending,
		"overdue":      stats.Overdue,
		"upcoming_24h": stats.Upcoming24,
	})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Reminder Hub</title></head>
<body>
<h1>Reminder Hub</h1>
<p>{{.Pending}} pending, {{.Overdue}} overdue, {{.Completed}} completed.</p>
<h2>Pending reminders</h2>
{{if .Reminders}}
<ul>
{{range .Reminders}}<li><strong>{{.Title}}</strong> due {{.DueTime}}{{if .Description}} ({{.Description}}){{end}}</li>
{{end}}</ul>
{{else}}
<p>No pending reminders.</p>
{{end}}
</body>
</html>
`))

type indexData struct {
	Pending   int
	Overdue   int
	Completed int
	Reminders []reminderPayload
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context(), "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	reminders, err := s.service.List(r.Context(), "", false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := indexData{
		Pending:   stats.Pending,
		Overdue:   stats.Overdue,
		Completed: stats.Completed,
	}
	for _, reminder := range reminders {
		data.Reminders = append(data.Reminders, reminderPayload{
			Title:       reminder.Title,
			Description: reminder.Description,
			DueTime:     reminder.DueAt.Local().Format(dueTimeFormat),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Printf("render index: %v", err)
	}
}
