// Package project defines the Project domain entity.
package project

import (
	"time"

	"github.com/ruidmap/ruidmap/internal/domain/task"
)

// Project represents a named grouping of tasks with its own settings.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"` // hex color for the UI
	Icon        string    `json:"icon,omitempty"`  // emoji or icon identifier
	IsActive    bool      `json:"is_active"`
	TaskCount   int       `json:"task_count"`
	Settings    Settings  `json:"settings"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Settings holds per-project defaults applied to newly created tasks.
type Settings struct {
	TaskTemplate       *TaskTemplate `json:"task_template,omitempty"`
	DefaultPriority    task.Priority `json:"default_priority"`
	AutoArchiveDone    bool          `json:"auto_archive_done"`
	ShowCompletedTasks bool          `json:"show_completed_tasks"`
	DefaultTags        []string      `json:"default_tags"`
}

// TaskTemplate pre-fills new tasks created in the project.
type TaskTemplate struct {
	TitlePrefix          string   `json:"title_prefix,omitempty"`
	DefaultDescription   string   `json:"default_description,omitempty"`
	DefaultTags          []string `json:"default_tags,omitempty"`
	DefaultEstimatedTime *int     `json:"default_estimated_time,omitempty"` // minutes
}

// DefaultSettings returns the settings applied to a freshly created project.
func DefaultSettings() Settings {
	return Settings{
		DefaultPriority:    task.PriorityMedium,
		AutoArchiveDone:    false,
		ShowCompletedTasks: true,
		DefaultTags:        []string{},
	}
}

// CreateRequest holds the fields needed to create a new project.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// UpdateRequest holds a partial project update. Nil pointers leave the
// field untouched.
type UpdateRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Color       *string   `json:"color,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
	Settings    *Settings `json:"settings,omitempty"`
}

// Stats summarizes a project's tasks.
type Stats struct {
	ProjectID          string  `json:"project_id"`
	TotalTasks         int     `json:"total_tasks"`
	TodoTasks          int     `json:"todo_tasks"`
	InProgressTasks    int     `json:"in_progress_tasks"`
	DoneTasks          int     `json:"done_tasks"`
	ProgressPercentage float64 `json:"progress_percentage"`
}
