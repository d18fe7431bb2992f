// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/ruidmap/ruidmap/internal/domain"
	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/task"
)

// Store is the port interface for database operations. Create and Update
// take fully assembled entities; the caller assigns IDs and timestamps.
// Missing rows surface as domain.ErrNotFound, duplicate names as
// domain.ErrConflict.
type Store interface {
	// Projects
	ListProjects(ctx context.Context) ([]project.Project, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	CreateProject(ctx context.Context, p *project.Project) error
	UpdateProject(ctx context.Context, p *project.Project) error
	// DeleteProject removes the project and, via cascade, all its tasks.
	DeleteProject(ctx context.Context, id string) error
	CountProjects(ctx context.Context) (int, error)

	// Tasks. An empty projectID lists across all projects.
	ListTasks(ctx context.Context, projectID string) ([]task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	CreateTask(ctx context.Context, t *task.Task) error
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, id string) error

	// App state (single row).
	GetAppState(ctx context.Context) (*domain.AppState, error)
	SetCurrentProject(ctx context.Context, projectID string) error
	SetTheme(ctx context.Context, theme string) error

	// ImportData inserts the given projects and tasks in one transaction.
	ImportData(ctx context.Context, projects []project.Project, tasks []task.Task) error

	// ReplaceAll atomically deletes every project and task, then loads the
	// given records and app state.
	ReplaceAll(ctx context.Context, projects []project.Project, tasks []task.Task, state *domain.AppState) error

	// DeleteDoneTasksBefore removes done tasks in the project whose last
	// update is older than the cutoff. Returns the number removed.
	DeleteDoneTasksBefore(ctx context.Context, projectID string, cutoff time.Time) (int, error)
}
