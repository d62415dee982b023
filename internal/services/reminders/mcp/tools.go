// Package mcp exposes reminder lifecycle operations as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
)

// dueTimeFormat renders reminder times back to the voice assistant.
const dueTimeFormat = "2006-01-02 15:04"

// ReminderPayload is the wire shape of one reminder in tool results.
type ReminderPayload struct {
	ID          int64   `json:"id" jsonschema:"reminder identifier"`
	Title       string  `json:"title" jsonschema:"reminder title"`
	Description string  `json:"description,omitempty" jsonschema:"optional details"`
	DueTime     string  `json:"due_time" jsonschema:"due time formatted as YYYY-MM-DD HH:MM"`
	Completed   bool    `json:"completed" jsonschema:"whether the reminder is done"`
	Hours       float64 `json:"hours,omitempty" jsonschema:"hours until due for upcoming reminders, hours late for overdue ones"`
}

func toPayload(reminder domain.Reminder) ReminderPayload {
	return ReminderPayload{
		ID:          reminder.ID,
		Title:       reminder.Title,
		Description: reminder.Description,
		DueTime:     reminder.DueAt.Local().Format(dueTimeFormat),
		Completed:   reminder.Completed,
	}
}

func toPayloads(reminders []domain.Reminder) []ReminderPayload {
	payloads := make([]ReminderPayload, 0, len(reminders))
	for _, reminder := range reminders {
		payloads = append(payloads, toPayload(reminder))
	}
	return payloads
}

func duePayloads(reminders []domain.DueReminder) []ReminderPayload {
	payloads := make([]ReminderPayload, 0, len(reminders))
	for _, reminder := range reminders {
		payload := toPayload(reminder.Reminder)
		payload.Hours = reminder.Hours
		payloads = append(payloads, payload)
	}
	return payloads
}

// AddReminderInput represents the MCP tool input for creating a reminder.
type AddReminderInput struct {
	Title       string `json:"title" jsonschema:"what to be reminded about"`
	DueTime     string `json:"due_time" jsonschema:"when the reminder is due, formatted as YYYY-MM-DD HH:MM"`
	Description string `json:"description,omitempty" jsonschema:"optional details"`
	UserID      string `json:"user_id,omitempty" jsonschema:"owner of the reminder (defaults to 'default')"`
}

// AddReminderResult represents the MCP tool output for creating a reminder.
type AddReminderResult struct {
	Reminder ReminderPayload `json:"reminder" jsonschema:"the created reminder"`
	Message  string          `json:"message" jsonschema:"human-readable confirmation"`
}

// AddReminderTool defines the MCP tool schema for creating a reminder.
func AddReminderTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "add_reminder",
		Description: "Creates a reminder for a future time. Times use the YYYY-MM-DD HH:MM format.",
	}
}

// AddReminderHandler executes a reminder creation request.
func AddReminderHandler(service *domain.Service) mcp.ToolHandlerFor[AddReminderInput, AddReminderResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AddReminderInput) (*mcp.CallToolResult, AddReminderResult, error) {
		dueAt, err := domain.ParseDueTime(input.DueTime, time.Local)
		if err != nil {
			return nil, AddReminderResult{}, err
		}
		reminder, err := service.Add(ctx, domain.AddInput{
			UserID:      input.UserID,
			Title:       input.Title,
			Description: input.Description,
			DueAt:       dueAt,
		})
		if err != nil {
			return nil, AddReminderResult{}, fmt.Errorf("add reminder: %w", err)
		}
		return nil, AddReminderResult{
			Reminder: toPayload(reminder),
			Message:  fmt.Sprintf("Reminder %q set for %s", reminder.Title, reminder.DueAt.Local().Format(dueTimeFormat)),
		}, nil
	}
}

// ListRemindersInput represents the MCP tool input for listing reminders.
type ListRemindersInput struct {
	IncludeCompleted bool   `json:"include_completed,omitempty" jsonschema:"include reminders already marked done"`
	UserID           string `json:"user_id,omitempty" jsonschema:"owner of the reminders (defaults to 'default')"`
}

// ListRemindersResult represents the MCP tool output for listing reminders.
type ListRemindersResult struct {
	Reminders []ReminderPayload `json:"reminders" jsonschema:"reminders ordered by due time"`
	Count     int               `json:"count" jsonschema:"number of reminders returned"`
}

// ListRemindersTool defines the MCP tool schema for listing reminders.
func ListRemindersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_reminders",
		Description: "Lists reminders ordered by due time, pending only unless include_completed is set.",
	}
}

// ListRemindersHandler executes a reminder listing request.
func ListRemindersHandler(service *domain.Service) mcp.ToolHandlerFor[ListRemindersInput, ListRemindersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListRemindersInput) (*mcp.CallToolResult, ListRemindersResult, error) {
		reminders, err := service.List(ctx, input.UserID, input.IncludeCompleted)
		if err != nil {
			return nil, ListRemindersResult{}, fmt.Errorf("list reminders: %w", err)
		}
		return nil, ListRemindersResult{
			Reminders: toPayloads(reminders),
			Count:     len(reminders),
		}, nil
	}
}

// CompleteReminderInput represents the MCP tool input for completing a reminder.
type CompleteReminderInput struct {
	ReminderID int64  `json:"reminder_id" jsonschema:"identifier of the reminder to mark done"`
	UserID     string `json:"user_id,omitempty" jsonschema:"owner of the reminder (defaults to 'default')"`
}

// CompleteReminderResult represents the MCP tool output for completing a reminder.
type CompleteReminderResult struct {
	Message string `json:"message" jsonschema:"human-readable confirmation"`
}

// CompleteReminderTool defines the MCP tool schema for completing a reminder.
func CompleteReminderTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "complete_reminder",
		Description: "Marks a reminder as completed.",
	}
}

// CompleteReminderHandler executes a reminder completion request.
func CompleteReminderHandler(service *domain.Service) mcp.ToolHandlerFor[CompleteReminderInput, CompleteReminderResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CompleteReminderInput) (*mcp.CallToolResult, CompleteReminderResult, error) {
		if err := service.Complete(ctx, input.UserID, input.ReminderID); err != nil {
			return nil, CompleteReminderResult{}, fmt.Errorf("complete reminder %d: %w", input.ReminderID, err)
		}
		return nil, CompleteReminderResult{
			Message: fmt.Sprintf("Reminder %d marked as completed", input.ReminderID),
		}, nil
	}
}

// DeleteReminderInput represents the MCP tool input for deleting a reminder.
type DeleteReminderInput struct {
	ReminderID int64  `json:"reminder_id" jsonschema:"identifier of the reminder to delete"`
	UserID     string `json:"user_id,omitempty" jsonschema:"owner of the reminder (defaults to 'default')"`
}

// DeleteReminderResult represents the MCP tool output for deleting a reminder.
type DeleteReminderResult struct {
	Message string `json:"message" jsonschema:"human-readable confirmation"`
}

// DeleteReminderTool defines the MCP tool schema for deleting a reminder.
func DeleteReminderTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "delete_reminder",
		Description: "Deletes a reminder permanently.",
	}
}

// DeleteReminderHandler executes a reminder deletion request.
func DeleteReminderHandler(service *domain.Service) mcp.ToolHandlerFor[DeleteReminderInput, DeleteReminderResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteReminderInput) (*mcp.CallToolResult, DeleteReminderResult, error) {
		if err := service.Delete(ctx, input.UserID, input.ReminderID); err != nil {
			return nil, DeleteReminderResult{}, fmt.Errorf("delete reminder %d: %w", input.ReminderID, err)
		}
		return nil, DeleteReminderResult{
			Message: fmt.Sprintf("Reminder %d deleted", input.ReminderID),
		}, nil
	}
}

// UpcomingRemindersInput represents the MCP tool input for listing upcoming reminders.
type UpcomingRemindersInput struct {
	Hours  int    `json:"hours,omitempty" jsonschema:"look-ahead window in hours (defaults to 24)"`
	UserID string `json:"user_id,omitempty" jsonschema:"owner of the reminders (defaults to 'default')"`
}

// UpcomingRemindersResult represents the MCP tool output for listing upcoming reminders.
type UpcomingRemindersResult struct {
	Reminders []ReminderPayload `json:"reminders" jsonschema:"pending reminders due within the window, with hours until due"`
	Count     int               `json:"count" jsonschema:"number of reminders returned"`
}

// UpcomingRemindersTool defines the MCP tool schema for listing upcoming reminders.
func UpcomingRemindersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_upcoming_reminders",
		Description: "Lists pending reminders due within the next N hours (default 24).",
	}
}

// UpcomingRemindersHandler executes an upcoming-reminders request.
func UpcomingRemindersHandler(service *domain.Service) mcp.ToolHandlerFor[UpcomingRemindersInput, UpcomingRemindersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input UpcomingRemindersInput) (*mcp.CallToolResult, UpcomingRemindersResult, error) {
		reminders, err := service.Upcoming(ctx, input.UserID, input.Hours)
		if err != nil {
			return nil, UpcomingRemindersResult{}, fmt.Errorf("upcoming reminders: %w", err)
		}
		return nil, UpcomingRemindersResult{
			Reminders: duePayloads(reminders),
			Count:     len(reminders),
		}, nil
	}
}

// OverdueRemindersInput represents the MCP tool input for listing overdue reminders.
type OverdueRemindersInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"owner of the reminders (defaults to 'default')"`
}

// OverdueRemindersResult represents the MCP tool output for listing overdue reminders.
type OverdueRemindersResult struct {
	Reminders []ReminderPayload `json:"reminders" jsonschema:"pending reminders past their due time, with hours overdue"`
	Count     int               `json:"count" jsonschema:"number of reminders returned"`
}

// OverdueRemindersTool defines the MCP tool schema for listing overdue reminders.
func OverdueRemindersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_overdue_reminders",
		Description: "Lists pending reminders whose due time has already passed.",
	}
}

// OverdueRemindersHandler executes an overdue-reminders request.
func OverdueRemindersHandler(service *domain.Service) mcp.ToolHandlerFor[OverdueRemindersInput, OverdueRemindersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input OverdueRemindersInput) (*mcp.CallToolResult, OverdueRemindersResult, error) {
		reminders, err := service.Overdue(ctx, input.UserID)
		if err != nil {
			return nil, OverdueRemindersResult{}, fmt.Errorf("overdue reminders: %w", err)
		}
		return nil, OverdueRemindersResult{
			Reminders: duePayloads(reminders),
			Count:     len(reminders),
		}, nil
	}
}

// SearchRemindersInput represents the MCP tool input for searching reminders.
type SearchRemindersInput struct {
	Query  string `json:"query" jsonschema:"text matched against reminder titles and descriptions"`
	UserID string `json:"user_id,omitempty" jsonschema:"owner of the reminders (defaults to 'default')"`
}

// SearchRemindersResult represents the MCP tool output for searching reminders.
type SearchRemindersResult struct {
	Reminders []ReminderPayload `json:"reminders" jsonschema:"reminders matching the query"`
	Count     int               `json:"count" jsonschema:"number of reminders returned"`
}

// SearchRemindersTool defines the MCP tool schema for searching reminders.
func SearchRemindersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_reminders",
		Description: "Searches reminder titles and descriptions for matching text.",
	}
}

// SearchRemindersHandler executes a reminder search request.
func SearchRemindersHandler(service *domain.Service) mcp.ToolHandlerFor[SearchRemindersInput, SearchRemindersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchRemindersInput) (*mcp.CallToolResult, SearchRemindersResult, error) {
		reminders, err := service.Search(ctx, input.UserID, input.Query)
		if err != nil {
			return nil, SearchRemindersResult{}, fmt.Errorf("search reminders: %w", err)
		}
		return nil, SearchRemindersResult{
			Reminders: toPayloads(reminders),
			Count:     len(reminders),
		}, nil
	}
}

// ReminderStatsInput represents the MCP tool input for reminder statistics.
type ReminderStatsInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"owner of the reminders (defaults to 'default')"`
}

// ReminderStatsResult represents the MCP tool output for reminder statistics.
type ReminderStatsResult struct {
	Total      int `json:"total" jsonschema:"total reminders for the user"`
	Completed  int `json:"completed" jsonschema:"reminders marked done"`
	Pending    int `json:"pending" jsonschema:"reminders still open"`
	Overdue    int `json:"overdue" jsonschema:"open reminders past their due time"`
	Upcoming24 int `json:"upcoming_24h" jsonschema:"open reminders due within the next 24 hours"`
}

// ReminderStatsTool defines the MCP tool schema for reminder statistics.
func ReminderStatsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_reminder_stats",
		Description: "Summarizes reminder counts: total, completed, pending, overdue, and due within 24 hours.",
	}
}

// ReminderStatsHandler executes a reminder statistics request.
func ReminderStatsHandler(service *domain.Service) mcp.ToolHandlerFor[ReminderStatsInput, ReminderStatsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReminderStatsInput) (*mcp.CallToolResult, ReminderStatsResult, error) {
		stats, err := service.Stats(ctx, input.UserID)
		if err != nil {
			return nil, ReminderStatsResult{}, fmt.Errorf("reminder stats: %w", err)
		}
		return nil, ReminderStatsResult{
			Total:      stats.Total,
			Completed:  stats.Completed,
			Pending:    stats.Pending,
			Overdue:    stats.Overdue,
			Upcoming24: stats.Upcoming24,
		}, nil
	}
}
