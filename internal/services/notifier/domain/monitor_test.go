package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	reminders "github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	due      []reminders.Reminder
	notified []int64
	listErr  error
	markErr  error
}

func (f *fakeStore) ListDueForNotification(_ context.Context, before time.Time) ([]reminders.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var due []reminders.Reminder
	for _, reminder := range f.due {
		if !reminder.DueAt.After(before) {
			due = append(due, reminder)
		}
	}
	return due, nil
}

func (f *fakeStore) MarkNotified(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.notified = append(f.notified, id)
	for i, reminder := range f.due {
		if reminder.ID == id {
			f.due = append(f.due[:i], f.due[i+1:]...)
			break
		}
	}
	return nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []int64
	failIDs map[int64]bool
}

func (f *fakeSender) SendReminder(_ context.Context, reminder reminders.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[reminder.ID] {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, reminder.ID)
	return nil
}

func TestRunOnceNotifiesAndMarks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []reminders.Reminder{
		{ID: 1, Title: "due", DueAt: now.Add(-time.Minute)},
		{ID: 2, Title: "soon", DueAt: now.Add(30 * time.Second)},
		{ID: 3, Title: "later", DueAt: now.Add(time.Hour)},
	}}
	sender := &fakeSender{}
	monitor := NewMonitor(store, sender, 0, func() time.Time { return now })

	if err := monitor.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("expected two notifications, got %v", sender.sent)
	}
	if len(store.notified) != 2 {
		t.Fatalf("expected two marked, got %v", store.notified)
	}
	for _, id := range store.notified {
		if id == 3 {
			t.Fatal("reminder outside the due window was marked")
		}
	}
}

func TestRunOnceLeavesFailedSendsUnmarked(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []reminders.Reminder{
		{ID: 1, Title: "ok", DueAt: now.Add(-time.Minute)},
		{ID: 2, Title: "broken", DueAt: now.Add(-time.Minute)},
	}}
	sender := &fakeSender{failIDs: map[int64]bool{2: true}}
	monitor := NewMonitor(store, sender, 0, func() time.Time { return now })

	if err := monitor.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if len(store.notified) != 1 || store.notified[0] != 1 {
		t.Fatalf("expected only reminder 1 marked, got %v", store.notified)
	}

	// The failed reminder must still be pending for the next pass.
	sender.failIDs = nil
	if err := monitor.RunOnce(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(store.notified) != 2 {
		t.Fatalf("expected retry to mark reminder 2, got %v", store.notified)
	}
}

func TestRunOnceSurfacesStoreErrors(t *testing.T) {
	t.Parallel()

	store := &fakeStore{listErr: errors.New("db locked")}
	monitor := NewMonitor(store, &fakeSender{}, 0, nil)

	if err := monitor.RunOnce(context.Background()); err == nil {
		t.Fatal("expected scan error")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	monitor := NewMonitor(store, &fakeSender{}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := monitor.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
