package domain

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Reminder
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]Reminder)}
}

func (f *fakeStore) InsertReminder(_ context.Context, reminder Reminder) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	reminder.ID = f.nextID
	f.rows[reminder.ID] = reminder
	return reminder.ID, nil
}

func (f *fakeStore) ListReminders(_ context.Context, userID string, includeCompleted bool) ([]Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []Reminder
	for _, row := range f.rows {
		if row.UserID != userID {
			continue
		}
		if !includeCompleted && row.Completed {
			continue
		}
		results = append(results, row)
	}
	sortByDue(results)
	return results, nil
}

func (f *fakeStore) ListPendingInWindow(_ context.Context, userID string, from, to time.Time) ([]Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []Reminder
	for _, row := range f.rows {
		if row.UserID != userID || row.Completed {
			continue
		}
		if row.DueAt.Before(from) || row.DueAt.After(to) {
			continue
		}
		results = append(results, row)
	}
	sortByDue(results)
	return results, nil
}

func (f *fakeStore) ListPendingBefore(_ context.Context, userID string, before time.Time) ([]Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []Reminder
	for _, row := range f.rows {
		if row.UserID != userID || row.Completed {
			continue
		}
		if !row.DueAt.Before(before) {
			continue
		}
		results = append(results, row)
	}
	sortByDue(results)
	return results, nil
}

func (f *fakeStore) SearchReminders(_ context.Context, userID string, query string) ([]Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []Reminder
	for _, row := range f.rows {
		if row.UserID != userID {
			continue
		}
		if !strings.Contains(row.Title, query) && !strings.Contains(row.Description, query) {
			continue
		}
		results = append(results, row)
	}
	sortByDue(results)
	return results, nil
}

func (f *fakeStore) CompleteReminder(_ context.Context, userID string, id int64, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return ErrNotFound
	}
	row.Completed = true
	row.CompletedAt = &completedAt
	f.rows[id] = row
	return nil
}

func (f *fakeStore) DeleteReminder(_ context.Context, userID string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) ReminderStats(_ context.Context, userID string, now time.Time) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats Stats
	for _, row := range f.rows {
		if row.UserID != userID {
			continue
		}
		stats.Total++
		if row.Completed {
			stats.Completed++
			continue
		}
		stats.Pending++
		if row.DueAt.Before(now) {
			stats.Overdue++
		} else if !row.DueAt.After(now.Add(24 * time.Hour)) {
			stats.Upcoming24++
		}
	}
	return stats, nil
}

func sortByDue(rows []Reminder) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].DueAt.Before(rows[j].DueAt) })
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestAddRejectsPastDueTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewService(newFakeStore(), fixedClock(now))

	_, err := svc.Add(context.Background(), AddInput{
		Title: "water plants",
		DueAt: now.Add(-time.Minute),
	})
	if !errors.Is(err, ErrPastDueTime) {
		t.Fatalf("expected ErrPastDueTime, got %v", err)
	}
}

func TestAddRequiresTitle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewService(newFakeStore(), fixedClock(now))

	_, err := svc.Add(context.Background(), AddInput{Title: "   ", DueAt: now.Add(time.Hour)})
	if !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestAddDefaultsUserAndAssignsID(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now))

	reminder, err := svc.Add(context.Background(), AddInput{
		Title:       " dentist ",
		Description: " bring card ",
		DueAt:       now.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if reminder.ID != 1 {
		t.Fatalf("expected id 1, got %d", reminder.ID)
	}
	if reminder.UserID != DefaultUserID {
		t.Fatalf("expected default user, got %q", reminder.UserID)
	}
	if reminder.Title != "dentist" || reminder.Description != "bring card" {
		t.Fatalf("expected trimmed fields, got %q / %q", reminder.Title, reminder.Description)
	}
	if !reminder.CreatedAt.Equal(now) {
		t.Fatalf("expected created at %v, got %v", now, reminder.CreatedAt)
	}
}

func TestListFiltersCompleted(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now))

	first, err := svc.Add(context.Background(), AddInput{Title: "one", DueAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	if _, err := svc.Add(context.Background(), AddInput{Title: "two", DueAt: now.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("add second: %v", err)
	}
	if err := svc.Complete(context.Background(), "", first.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	pending, err := svc.List(context.Background(), "", false)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Title != "two" {
		t.Fatalf("expected only pending reminder 'two', got %+v", pending)
	}

	all, err := svc.List(context.Background(), "", true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two reminders, got %d", len(all))
	}
}

func TestUpcomingReportsHoursUntil(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now))

	if _, err := svc.Add(context.Background(), AddInput{Title: "soon", DueAt: now.Add(90 * time.Minute)}); err != nil {
		t.Fatalf("add soon: %v", err)
	}
	if _, err := svc.Add(context.Background(), AddInput{Title: "later", DueAt: now.Add(48 * time.Hour)}); err != nil {
		t.Fatalf("add later: %v", err)
	}

	upcoming, err := svc.Upcoming(context.Background(), "", 24)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 1 {
		t.Fatalf("expected one upcoming reminder, got %d", len(upcoming))
	}
	if upcoming[0].Title != "soon" {
		t.Fatalf("expected 'soon', got %q", upcoming[0].Title)
	}
	if upcoming[0].Hours != 1.5 {
		t.Fatalf("expected 1.5 hours until, got %v", upcoming[0].Hours)
	}
}

func TestOverdueReportsHoursOverdue(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(base))

	if _, err := svc.Add(context.Background(), AddInput{Title: "missed", DueAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Move the clock past the due time.
	svc.clock = fixedClock(base.Add(4 * time.Hour))

	overdue, err := svc.Overdue(context.Background(), "")
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("expected one overdue reminder, got %d", len(overdue))
	}
	if overdue[0].Hours != 3.0 {
		t.Fatalf("expected 3.0 hours overdue, got %v", overdue[0].Hours)
	}
}

func TestCompleteAndDeleteMissingReminder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewService(newFakeStore(), fixedClock(now))

	if err := svc.Complete(context.Background(), "", 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on complete, got %v", err)
	}
	if err := svc.Delete(context.Background(), "", 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewService(newFakeStore(), fixedClock(now))

	if _, err := svc.Search(context.Background(), "", "  "); !errors.Is(err, ErrQueryRequired) {
		t.Fatalf("expected ErrQueryRequired, got %v", err)
	}
}

func TestStatsBuckets(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(base))

	done, err := svc.Add(context.Background(), AddInput{Title: "done", DueAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("add done: %v", err)
	}
	if _, err := svc.Add(context.Background(), AddInput{Title: "late", DueAt: base.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("add late: %v", err)
	}
	if _, err := svc.Add(context.Background(), AddInput{Title: "today", DueAt: base.Add(30 * time.Hour)}); err != nil {
		t.Fatalf("add today: %v", err)
	}
	if _, err := svc.Add(context.Background(), AddInput{Title: "faraway", DueAt: base.Add(80 * time.Hour)}); err != nil {
		t.Fatalf("add faraway: %v", err)
	}
	if err := svc.Complete(context.Background(), "", done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Advance the clock so "late" is overdue and "today" falls inside 24h.
	svc.clock = fixedClock(base.Add(10 * time.Hour))

	stats, err := svc.Stats(context.Background(), "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Total: 4, Completed: 1, Pending: 3, Overdue: 1, Upcoming24: 1}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now))

	if _, err := svc.Add(context.Background(), AddInput{UserID: "alpha", Title: "a", DueAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("add alpha: %v", err)
	}
	beta, err := svc.Add(context.Background(), AddInput{UserID: "beta", Title: "b", DueAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("add beta: %v", err)
	}

	if err := svc.Complete(context.Background(), "alpha", beta.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-user complete to miss, got %v", err)
	}

	list, err := svc.List(context.Background(), "alpha", true)
	if err != nil {
		t.Fatalf("list alpha: %v", err)
	}
	if len(list) != 1 || list[0].Title != "a" {
		t.Fatalf("expected only alpha reminder, got %+v", list)
	}
}
