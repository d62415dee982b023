package domain

import (
	"context"
	"strings"
	"time"
)

// Store is the domain persistence boundary for reminder lifecycle behavior.
type Store interface {
	InsertReminder(ctx context.Context, reminder Reminder) (int64, error)
	ListReminders(ctx context.Context, userID string, includeCompleted bool) ([]Reminder, error)
	ListPendingInWindow(ctx context.Context, userID string, from, to time.Time) ([]Reminder, error)
	ListPendingBefore(ctx context.Context, userID string, before time.Time) ([]Reminder, error)
	SearchReminders(ctx context.Context, userID string, query string) ([]Reminder, error)
	CompleteReminder(ctx context.Context, userID string, id int64, completedAt time.Time) error
	DeleteReminder(ctx context.Context, userID string, id int64) error
	ReminderStats(ctx context.Context, userID string, now time.Time) (Stats, error)
}

// AddInput describes one reminder creation request.
type AddInput struct {
	UserID      string
	Title       string
	Description string
	DueAt       time.Time
}

// Service orchestrates reminder lifecycle behavior.
type Service struct {
	store Store
	clock func() time.Time
}

// NewService constructs reminder domain use-cases.
func NewService(store Store, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, clock: clock}
}

// Add validates and persists a new reminder.
func (s *Service) Add(ctx context.Context, input AddInput) (Reminder, error) {
	if s == nil || s.store == nil {
		return Reminder{}, ErrStoreNotConfigured
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Title == "" {
		return Reminder{}, ErrTitleRequired
	}

	now := s.clock()
	if input.DueAt.Before(now) {
		return Reminder{}, ErrPastDueTime
	}

	reminder := Reminder{
		UserID:      normalizeUserID(input.UserID),
		Title:       input.Title,
		Description: input.Description,
		DueAt:       input.DueAt,
		CreatedAt:   now,
	}
	id, err := s.store.InsertReminder(ctx, reminder)
	if err != nil {
		return Reminder{}, err
	}
	reminder.ID = id
	return reminder, nil
}

// List returns reminders for a user ordered by due time, optionally including
// completed ones.
func (s *Service) List(ctx context.Context, userID string, includeCompleted bool) ([]Reminder, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return s.store.ListReminders(ctx, normalizeUserID(userID), includeCompleted)
}

// Upcoming returns pending reminders due within the next N hours with their
// hours-until distance.
func (s *Service) Upcoming(ctx context.Context, userID string, hours int) ([]DueReminder, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	if hours <= 0 {
		hours = 24
	}
	now := s.clock()
	reminders, err := s.store.ListPendingInWindow(ctx, normalizeUserID(userID), now, now.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}
	results := make([]DueReminder, 0, len(reminders))
	for _, reminder := range reminders {
		results = append(results, DueReminder{
			Reminder: reminder,
			Hours:    roundHours(reminder.DueAt.Sub(now)),
		})
	}
	return results, nil
}

// Overdue returns pending reminders whose due time has passed with their
// hours-overdue distance.
func (s *Service) Overdue(ctx context.Context, userID string) ([]DueReminder, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	now := s.clock()
	reminders, err := s.store.ListPendingBefore(ctx, normalizeUserID(userID), now)
	if err != nil {
		return nil, err
	}
	results := make([]DueReminder, 0, len(reminders))
	for _, reminder := range reminders {
		results = append(results, DueReminder{
			Reminder: reminder,
			Hours:    roundHours(now.Sub(reminder.DueAt)),
		})
	}
	return results, nil
}

// Complete marks one reminder as completed.
func (s *Service) Complete(ctx context.Context, userID string, id int64) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	return s.store.CompleteReminder(ctx, normalizeUserID(userID), id, s.clock())
}

// Delete removes one reminder permanently.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	return s.store.DeleteReminder(ctx, normalizeUserID(userID), id)
}

// Search returns reminders whose title or description contains the query.
func (s *Service) Search(ctx context.Context, userID string, query string) ([]Reminder, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryRequired
	}
	return s.store.SearchReminders(ctx, normalizeUserID(userID), query)
}

// Stats aggregates reminder counts for one user.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	if s == nil || s.store == nil {
		return Stats{}, ErrStoreNotConfigured
	}
	return s.store.ReminderStats(ctx, normalizeUserID(userID), s.clock())
}

func normalizeUserID(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return DefaultUserID
	}
	return userID
}

// roundHours converts a duration to hours rounded to one decimal place,
// matching the distances reported to the voice assistant.
func roundHours(d time.Duration) float64 {
	hours := d.Hours()
	return float64(int64(hours*10+0.5)) / 10
}
