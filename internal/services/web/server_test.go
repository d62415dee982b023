package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/storage/sqlite"
)

func newTestServer(t *testing.T) (*Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "reminders.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	service := domain.NewService(store, time.Now)
	return NewServer("127.0.0.1:0", service, store), store
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db gone") }

func TestHealthEndpointReportsStorageFailure(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	server.pinger = failingPinger{}

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
}

func TestRemindersEndpoint(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	now := time.Now()

	if _, err := store.InsertReminder(context.Background(), domain.Reminder{
		UserID: domain.DefaultUserID, Title: "pending", DueAt: now.Add(time.Hour), CreatedAt: now,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	done, err := store.InsertReminder(context.Background(), domain.Reminder{
		UserID: domain.DefaultUserID, Title: "done", DueAt: now.Add(2 * time.Hour), CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.CompleteReminder(context.Background(), domain.DefaultUserID, done, now); err != nil {
		t.Fatalf("complete: %v", err)
	}

	var payload struct {
		Count     int `json:"count"`
		Reminders []struct {
			Title     string `json:"title"`
			Completed bool   `json:"completed"`
		} `json:"reminders"`
	}

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/reminders", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Count != 1 || payload.Reminders[0].Title != "pending" {
		t.Fatalf("expected only pending reminder, got %+v", payload)
	}

	recorder = httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/reminders?all=1", nil))
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Count != 2 {
		t.Fatalf("expected both reminders with all=1, got %+v", payload)
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	now := time.Now()

	if _, err := store.InsertReminder(context.Background(), domain.Reminder{
		UserID: domain.DefaultUserID, Title: "late", DueAt: now.Add(-time.Hour), CreatedAt: now,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var stats map[string]int
	if err := json.Unmarshal(recorder.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats["total"] != 1 || stats["overdue"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestIndexPageRendersPending(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	now := time.Now()
	if _, err := store.InsertReminder(context.Background(), domain.Reminder{
		UserID: domain.DefaultUserID, Title: "water plants", DueAt: now.Add(time.Hour), CreatedAt: now,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "water plants") || !strings.Contains(body, "1 pending") {
		t.Fatalf("unexpected page %s", body)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
