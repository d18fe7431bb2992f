// Package transfer defines the export/import document exchanged with
// clients for backup and migration.
package transfer

import (
	"time"

	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/task"
)

// FormatVersion is written into every export and checked on import.
const FormatVersion = "2.0"

// Mode selects how an import treats existing data.
type Mode string

const (
	// ModeMerge inserts the imported records alongside existing ones.
	// Every imported record receives a fresh ID; task project references
	// are remapped to the new project IDs.
	ModeMerge Mode = "merge"

	// ModeReplace discards all existing data before loading the import.
	ModeReplace Mode = "replace"
)

// Document is the top-level export/import envelope.
type Document struct {
	Version    string    `json:"version"`
	ExportDate time.Time `json:"export_date"`
	Data       Payload   `json:"data"`
}

// Payload carries the exported records.
type Payload struct {
	Projects         []project.Project `json:"projects"`
	Tasks            []task.Task       `json:"tasks"`
	CurrentProjectID string            `json:"current_project_id,omitempty"`
	Theme            string            `json:"theme,omitempty"`
}

// LegacyDocument is the pre-2.0 on-disk snapshot: the full board state
// without an export envelope. The oldest backups carry only a task
// list; later ones include projects and app state. Legacy imports are
// replace-only.
type LegacyDocument struct {
	Tasks            []task.Task       `json:"tasks"`
	Projects         []project.Project `json:"projects,omitempty"`
	CurrentProjectID string            `json:"current_project_id,omitempty"`
	Theme            string            `json:"theme,omitempty"`
	Version          string            `json:"version,omitempty"`
}

// ValidationIssue describes one problem found while validating an
// import document.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of a dry-run import validation.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Version  string            `json:"version,omitempty"`
	Projects int               `json:"projects"`
	Tasks    int               `json:"tasks"`
	Issues   []ValidationIssue `json:"issues,omitempty"`
}
