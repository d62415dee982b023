// Package sqlite provides SQLite-backed persistence for reminders.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/xiaozhi-community/reminderhub/internal/platform/storage/sqlitemigrate"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for reminder state. It is shared
// by the MCP server, the notifier, and the web surface, all of which open the
// same database file.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a reminder SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

const reminderColumns = "id, user_id, title, description, due_at, completed, notified, created_at, completed_at"

// InsertReminder persists one reminder row and returns its assigned ID.
func (s *Store) InsertReminder(ctx context.Context, reminder domain.Reminder) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO reminders (user_id, title, description, due_at, completed, notified, created_at)
VALUES (?, ?, ?, ?, 0, 0, ?)
`, reminder.UserID, reminder.Title, reminder.Description, toMillis(reminder.DueAt), toMillis(reminder.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert reminder id: %w", err)
	}
	return id, nil
}

// GetReminder loads one reminder row by user and ID.
func (s *Store) GetReminder(ctx context.Context, userID string, id int64) (domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reminder{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Reminder{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+reminderColumns+`
FROM reminders
WHERE user_id = ? AND id = ?
`, userID, id)
	reminder, err := scanReminder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reminder{}, domain.ErrNotFound
		}
		return domain.Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return reminder, nil
}

// ListReminders lists one user's reminders ascending by due time.
func (s *Store) ListReminders(ctx context.Context, userID string, includeCompleted bool) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
SELECT ` + reminderColumns + `
FROM reminders
WHERE user_id = ?
ORDER BY due_at ASC, id ASC
`
	if !includeCompleted {
		query = `
SELECT ` + reminderColumns + `
FROM reminders
WHERE user_id = ? AND completed = 0
ORDER BY due_at ASC, id ASC
`
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListPendingInWindow lists pending reminders due inside [from, to].
func (s *Store) ListPendingInWindow(ctx context.Context, userID string, from, to time.Time) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+reminderColumns+`
FROM reminders
WHERE user_id = ? AND completed = 0 AND due_at BETWEEN ? AND ?
ORDER BY due_at ASC, id ASC
`, userID, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("list pending reminders in window: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListPendingBefore lists pending reminders due strictly before the cutoff.
func (s *Store) ListPendingBefore(ctx context.Context, userID string, before time.Time) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+reminderColumns+`
FROM reminders
WHERE user_id = ? AND completed = 0 AND due_at < ?
ORDER BY due_at ASC, id ASC
`, userID, toMillis(before))
	if err != nil {
		return nil, fmt.Errorf("list overdue reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// SearchReminders lists one user's reminders matching the query in title or
// description.
func (s *Store) SearchReminders(ctx context.Context, userID string, query string) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+reminderColumns+`
FROM reminders
WHERE user_id = ? AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')
ORDER BY due_at ASC, id ASC
`, userID, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// CompleteReminder marks one reminder as completed.
func (s *Store) CompleteReminder(ctx context.Context, userID string, id int64, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE reminders
SET completed = 1, completed_at = ?
WHERE user_id = ? AND id = ?
`, toMillis(completedAt), userID, id)
	if err != nil {
		return fmt.Errorf("complete reminder: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete reminder rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteReminder removes one reminder row permanently.
func (s *Store) DeleteReminder(ctx context.Context, userID string, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM reminders
WHERE user_id = ? AND id = ?
`, userID, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reminder rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReminderStats aggregates reminder counts for one user at the given time.
func (s *Store) ReminderStats(ctx context.Context, userID string, now time.Time) (domain.Stats, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stats{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Stats{}, fmt.Errorf("storage is not configured")
	}

	nowMillis := toMillis(now)
	horizonMillis := toMillis(now.Add(24 * time.Hour))

	var stats domain.Stats
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT
    COUNT(1),
    COALESCE(SUM(completed), 0),
    COALESCE(SUM(CASE WHEN completed = 0 AND due_at < ? THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN completed = 0 AND due_at BETWEEN ? AND ? THEN 1 ELSE 0 END), 0)
FROM reminders
WHERE user_id = ?
`, nowMillis, nowMillis, horizonMillis, userID).Scan(&stats.Total, &stats.Completed, &stats.Overdue, &stats.Upcoming24); err != nil {
		return domain.Stats{}, fmt.Errorf("reminder stats: %w", err)
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}

// ListDueForNotification lists pending, un-notified reminders across all users
// due at or before the cutoff, ascending by due time.
func (s *Store) ListDueForNotification(ctx context.Context, before time.Time) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+reminderColumns+`
FROM reminders
WHERE completed = 0 AND notified = 0 AND due_at <= ?
ORDER BY due_at ASC, id ASC
`, toMillis(before))
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// MarkNotified records that a reminder notification was delivered.
func (s *Store) MarkNotified(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE reminders
SET notified = 1
WHERE id = ?
`, id)
	if err != nil {
		return fmt.Errorf("mark reminder notified: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark reminder notified rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner func(dest ...any) error

func scanReminder(scan scanner) (domain.Reminder, error) {
	var reminder domain.Reminder
	var dueAt int64
	var completed int
	var notified int
	var createdAt int64
	var completedAt sql.NullInt64
	if err := scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.Title,
		&reminder.Description,
		&dueAt,
		&completed,
		&notified,
		&createdAt,
		&completedAt,
	); err != nil {
		return domain.Reminder{}, err
	}
	reminder.DueAt = fromMillis(dueAt)
	reminder.Completed = completed != 0
	reminder.Notified = notified != 0
	reminder.CreatedAt = fromMillis(createdAt)
	if completedAt.Valid {
		value := fromMillis(completedAt.Int64)
		reminder.CompletedAt = &value
	}
	return reminder, nil
}

func collectReminders(rows *sql.Rows) ([]domain.Reminder, error) {
	var results []domain.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan reminder row: %w", err)
		}
		results = append(results, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminder rows: %w", err)
	}
	return results, nil
}

// escapeLike escapes LIKE wildcards so user queries match literally.
func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "%", `\%`)
	value = strings.ReplaceAll(value, "_", `\_`)
	return value
}
