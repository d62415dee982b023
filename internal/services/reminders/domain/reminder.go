// Package domain holds reminder lifecycle behavior shared by the MCP server,
// the notifier, and the web surface.
package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates a reminder row was not found.
	ErrNotFound = errors.New("reminder not found")
	// ErrTitleRequired indicates a reminder title is required.
	ErrTitleRequired = errors.New("reminder title is required")
	// ErrPastDueTime indicates a reminder cannot be created for a past time.
	ErrPastDueTime = errors.New("cannot create reminder for past time")
	// ErrQueryRequired indicates a search query is required.
	ErrQueryRequired = errors.New("search query is required")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("reminder store is not configured")
)

// DefaultUserID scopes reminders when the caller does not identify a user.
const DefaultUserID = "default"

// Reminder captures one scheduled reminder row.
type Reminder struct {
	ID          int64
	UserID      string
	Title       string
	Description string
	DueAt       time.Time
	Completed   bool
	Notified    bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// DueReminder pairs a reminder with its distance from a reference time.
type DueReminder struct {
	Reminder
	// Hours is positive hours-until for upcoming reminders and positive
	// hours-overdue for overdue ones.
	Hours float64
}

// Stats aggregates reminder counts for one user.
type Stats struct {
	Total      int
	Completed  int
	Pending    int
	Overdue    int
	Upcoming24 int
}

// dueTimeLayouts lists the accepted reminder time formats, tried in order.
var dueTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04",
	"02-01-2006 15:04",
	"01/02/2006 15:04",
}

// ParseDueTime parses a reminder time string in the given location, accepting
// the same set of layouts the voice assistant produces.
func ParseDueTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dueTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse datetime %q: use format YYYY-MM-DD HH:MM", value)
}
