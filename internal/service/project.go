package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ruidmap/ruidmap/internal/adapter/otel"
	"github.com/ruidmap/ruidmap/internal/adapter/ws"
	"github.com/ruidmap/ruidmap/internal/domain"
	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/query"
	"github.com/ruidmap/ruidmap/internal/domain/task"
	"github.com/ruidmap/ruidmap/internal/port/cache"
	"github.com/ruidmap/ruidmap/internal/port/database"
	"github.com/ruidmap/ruidmap/internal/port/messagequeue"
)

// ProjectService handles project business logic. Deleting a project
// cascades to its tasks, and the last remaining project cannot be
// deleted so the board never ends up empty.
type ProjectService struct {
	store    database.Store
	queue    messagequeue.Queue
	hub      *ws.Hub
	cache    cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewProjectService creates a new ProjectService. queue, hub, and cache
// may be nil.
func NewProjectService(store database.Store, queue messagequeue.Queue, hub *ws.Hub, c cache.Cache, cacheTTL time.Duration) *ProjectService {
	return &ProjectService{
		store:    store,
		queue:    queue,
		hub:      hub,
		cache:    c,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// List returns projects matching spec, ordered by its sort key.
func (s *ProjectService) List(ctx context.Context, spec query.Spec) ([]project.Project, error) {
	ctx, span := otel.StartQuerySpan(ctx, "projects", "")
	defer span.End()

	projects, err := s.cachedList(ctx)
	if err != nil {
		return nil, err
	}
	return query.ApplyProjects(projects, spec), nil
}

// Get returns a project by ID.
func (s *ProjectService) Get(ctx context.Context, id string) (*project.Project, error) {
	return s.store.GetProject(ctx, id)
}

// Create creates a project with default settings. The first project on
// the board becomes the current project.
func (s *ProjectService) Create(ctx context.Context, req project.CreateRequest) (*project.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Validationf("name is required")
	}

	existing, err := s.store.CountProjects(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &project.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		IsActive:    true,
		Settings:    project.DefaultSettings(),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	if existing == 0 {
		if err := s.store.SetCurrentProject(ctx, p.ID); err != nil {
			slog.Error("set current project failed", "project_id", p.ID, "error", err)
		}
	}
	s.invalidate(ctx)
	s.notify(ctx, messagequeue.SubjectProjectCreated, ws.EventProjectCreated, p)
	return p, nil
}

// Update applies a partial update to a project.
func (s *ProjectService) Update(ctx context.Context, id string, req project.UpdateRequest) (*project.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.Validationf("name must not be empty")
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Color != nil {
		p.Color = *req.Color
	}
	if req.Icon != nil {
		p.Icon = *req.Icon
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.Settings != nil {
		settings := *req.Settings
		if settings.DefaultPriority != "" && !settings.DefaultPriority.Valid() {
			return nil, domain.Validationf("invalid default priority %q", settings.DefaultPriority)
		}
		settings.DefaultTags = task.NormalizeTags(settings.DefaultTags)
		if settings.TaskTemplate != nil {
			tmpl := *settings.TaskTemplate
			tmpl.DefaultTags = task.NormalizeTags(tmpl.DefaultTags)
			settings.TaskTemplate = &tmpl
		}
		p.Settings = settings
	}

	p.UpdatedAt = s.now()
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.notify(ctx, messagequeue.SubjectProjectUpdated, ws.EventProjectUpdated, p)
	return p, nil
}

// Delete removes a project and all of its tasks. The last remaining
// project cannot be deleted. If the deleted project was current, the
// oldest remaining project becomes current.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.store.CountProjects(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return domain.Validationf("cannot delete the last project")
	}
	wasCurrent := false
	if st, err := s.store.GetAppState(ctx); err == nil {
		wasCurrent = st.CurrentProjectID == id
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	if wasCurrent {
		if remaining, err := s.store.ListProjects(ctx); err == nil && len(remaining) > 0 {
			if err := s.store.SetCurrentProject(ctx, remaining[0].ID); err != nil {
				slog.Error("set current project failed", "project_id", remaining[0].ID, "error", err)
			}
		}
	}
	s.invalidate(ctx)
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "tasks:list:"+id)
		_ = s.cache.Delete(ctx, "tasks:list:")
	}
	s.notify(ctx, messagequeue.SubjectProjectDeleted, ws.EventProjectDeleted, p)
	return nil
}

// Stats tallies the project's tasks by status.
func (s *ProjectService) Stats(ctx context.Context, id string) (project.Stats, error) {
	if _, err := s.store.GetProject(ctx, id); err != nil {
		return project.Stats{}, err
	}
	tasks, err := s.store.ListTasks(ctx, id)
	if err != nil {
		return project.Stats{}, err
	}
	ts := task.ComputeStats(tasks)
	return project.Stats{
		ProjectID:          id,
		TotalTasks:         ts.Total,
		TodoTasks:          ts.Todo,
		InProgressTasks:    ts.InProgress,
		DoneTasks:          ts.Done,
		ProgressPercentage: ts.ProgressPercentage,
	}, nil
}

func (s *ProjectService) cachedList(ctx context.Context) ([]project.Project, error) {
	const key = "projects:list"
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var projects []project.Project
			if json.Unmarshal(data, &projects) == nil {
				return projects, nil
			}
		}
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(projects); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return projects, nil
}

func (s *ProjectService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, "projects:list")
}

func (s *ProjectService) notify(ctx context.Context, subject, event string, p *project.Project) {
	payload := messagequeue.ProjectEventPayload{ProjectID: p.ID, Name: p.Name}
	if s.queue != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			if err := s.queue.Publish(ctx, subject, data); err != nil {
				slog.Error("publish project event failed", "subject", subject, "project_id", p.ID, "error", err)
			}
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, event, ws.ProjectEvent(payload))
	}
}
