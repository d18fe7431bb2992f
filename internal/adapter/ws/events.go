package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"

	EventProjectCreated  = "project.created"
	EventProjectUpdated  = "project.updated"
	EventProjectDeleted  = "project.deleted"
	EventProjectSwitched = "project.switched"

	EventThemeChanged  = "theme.changed"
	EventDataImported  = "data.imported"
	EventTasksArchived = "tasks.archived"
)

// TaskEvent is broadcast when a task is created, updated, or deleted.
type TaskEvent struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

// ProjectEvent is broadcast when a project changes or the current
// project switches.
type ProjectEvent struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// ThemeEvent is broadcast when the UI theme changes.
type ThemeEvent struct {
	Theme string `json:"theme"`
}

// DataImportedEvent is broadcast after a bulk import or replace.
// Clients are expected to reload all state.
type DataImportedEvent struct {
	Mode     string `json:"mode"`
	Projects int    `json:"projects"`
	Tasks    int    `json:"tasks"`
}

// TasksArchivedEvent is broadcast when an auto-archive sweep removed
// done tasks from a project.
type TasksArchivedEvent struct {
	ProjectID string `json:"project_id"`
	Archived  int    `json:"archived"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
