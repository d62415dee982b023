// Package domain implements the due-reminder monitor: scanning for reminders
// whose time has arrived and pushing a notification for each one.
package domain

import (
	"context"
	"fmt"
	"log"
	"time"

	reminders "github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
)

// dueWindow extends the scan slightly past now so reminders landing between
// ticks are not delayed a full interval.
const dueWindow = time.Minute

// DefaultInterval is the gap between continuous scans.
const DefaultInterval = 60 * time.Second

// Store is the persistence boundary the monitor needs.
type Store interface {
	ListDueForNotification(ctx context.Context, before time.Time) ([]reminders.Reminder, error)
	MarkNotified(ctx context.Context, id int64) error
}

// Sender delivers one reminder notification.
type Sender interface {
	SendReminder(ctx context.Context, reminder reminders.Reminder) error
}

// Monitor scans for due reminders and notifies at-least-once: a reminder is
// only marked notified after its notification was delivered.
type Monitor struct {
	store    Store
	sender   Sender
	interval time.Duration
	clock    func() time.Time
}

// NewMonitor wires a monitor. A zero interval uses DefaultInterval; a nil
// clock uses time.Now.
func NewMonitor(store Store, sender Sender, interval time.Duration, clock func() time.Time) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{store: store, sender: sender, interval: interval, clock: clock}
}

// RunOnce performs a single scan-and-notify pass. Send failures leave the
// reminder unmarked so the next pass retries it.
func (m *Monitor) RunOnce(ctx context.Context) error {
	due, err := m.store.ListDueForNotification(ctx, m.clock().Add(dueWindow))
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	log.Printf("found %d due reminder(s)", len(due))

	for _, reminder := range due {
		if err := m.sender.SendReminder(ctx, reminder); err != nil {
			log.Printf("notify reminder %d %q: %v", reminder.ID, reminder.Title, err)
			continue
		}
		if err := m.store.MarkNotified(ctx, reminder.ID); err != nil {
			log.Printf("mark reminder %d notified: %v", reminder.ID, err)
			continue
		}
		log.Printf("notified reminder %d %q", reminder.ID, reminder.Title)
	}
	return nil
}

// Run scans on the configured interval until the context is cancelled. Scan
// errors are logged, not fatal.
func (m *Monitor) Run(ctx context.Context) error {
	log.Printf("monitoring due reminders every %s", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.RunOnce(ctx); err != nil {
			log.Printf("scan failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
