// Package task defines the Task domain entity.
package task

import (
	"strings"
	"time"
)

// Status represents the board column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// ParseStatus converts a string to a Status. Unrecognized values fall back
// to StatusTodo, matching the permissive parsing of the desktop client.
func ParseStatus(s string) Status {
	switch s {
	case string(StatusInProgress):
		return StatusInProgress
	case string(StatusDone):
		return StatusDone
	default:
		return StatusTodo
	}
}

// Valid reports whether s is one of the three enumerated statuses.
func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// Next returns the status a toggle advances to: todo → in-progress → done → todo.
func (s Status) Next() Status {
	switch s {
	case StatusTodo:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	default:
		return StatusTodo
	}
}

// Priority represents task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority converts a string to a Priority, defaulting to low.
func ParsePriority(s string) Priority {
	switch s {
	case string(PriorityMedium):
		return PriorityMedium
	case string(PriorityHigh):
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// Valid reports whether p is one of the three enumerated priorities.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Rank returns the total order used for sorting: high(3) > medium(2) > low(1).
// Unrecognized or missing priorities rank 0, below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Task represents a unit of trackable work on a project board.
type Task struct {
	ID            string       `json:"id"`
	ProjectID     string       `json:"project_id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Status        Status       `json:"status"`
	Priority      Priority     `json:"priority"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	Tags          []string     `json:"tags"`
	Subtasks      []Subtask    `json:"subtasks"`
	Comments      []Comment    `json:"comments"`
	Attachments   []Attachment `json:"attachments"`
	TimeSpent     int          `json:"time_spent"`               // minutes
	EstimatedTime *int         `json:"estimated_time,omitempty"` // minutes
	Version       int          `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Subtask is a checklist item within a task.
type Subtask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a note attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is file metadata attached to a task. Blob storage is the
// desktop client's concern; the server tracks metadata only.
type Attachment struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"file_path"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeTag lowercases and trims a tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags lowercases, trims, and deduplicates tags, preserving first
// occurrence order. Tags are normalized at the point of insertion, never at
// read time.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// HasTag reports whether the task carries the given (already normalized) tag.
func (t *Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// CreateRequest holds the fields needed to create a new task.
// Zero-valued optional fields inherit the project's defaults.
type CreateRequest struct {
	ProjectID     string     `json:"project_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      Priority   `json:"priority,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	EstimatedTime *int       `json:"estimated_time,omitempty"`
}

// UpdateRequest holds a partial update. Nil pointers leave the field
// untouched; DueDate and EstimatedTime distinguish "unset" via SetDueDate /
// SetEstimate flags so they can be cleared explicitly.
type UpdateRequest struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	SetDueDate    bool       `json:"set_due_date,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	EstimatedTime *int       `json:"estimated_time,omitempty"`
	SetEstimate   bool       `json:"set_estimate,omitempty"`
}

// Stats summarizes a set of tasks by status.
type Stats struct {
	Total              int     `json:"total"`
	Todo               int     `json:"todo"`
	InProgress         int     `json:"in_progress"`
	Done               int     `json:"done"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// ComputeStats tallies tasks by status. Progress is the done fraction in
// percent; an empty set has zero progress.
func ComputeStats(tasks []Task) Stats {
	s := Stats{Total: len(tasks)}
	for i := range tasks {
		switch tasks[i].Status {
		case StatusTodo:
			s.Todo++
		case StatusInProgress:
			s.InProgress++
		case StatusDone:
			s.Done++
		}
	}
	if s.Total > 0 {
		s.ProgressPercentage = float64(s.Done) / float64(s.Total) * 100
	}
	return s
}
