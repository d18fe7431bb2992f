package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ruidmap/ruidmap/internal/adapter/otel"
	"github.com/ruidmap/ruidmap/internal/adapter/ws"
	"github.com/ruidmap/ruidmap/internal/domain"
	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/task"
	"github.com/ruidmap/ruidmap/internal/domain/transfer"
	"github.com/ruidmap/ruidmap/internal/port/cache"
	"github.com/ruidmap/ruidmap/internal/port/database"
	"github.com/ruidmap/ruidmap/internal/port/messagequeue"
)

// legacyProjectName is the project legacy single-project backups are
// loaded into.
const legacyProjectName = "Imported"

// TransferService handles full-database export and import for backup
// and migration between installations.
type TransferService struct {
	store   database.Store
	queue   messagequeue.Queue
	hub     *ws.Hub
	cache   cache.Cache
	metrics *otel.Metrics
	now     func() time.Time
}

// NewTransferService creates a new TransferService. queue, hub, cache,
// and metrics may be nil.
func NewTransferService(store database.Store, queue messagequeue.Queue, hub *ws.Hub, c cache.Cache, metrics *otel.Metrics) *TransferService {
	return &TransferService{
		store:   store,
		queue:   queue,
		hub:     hub,
		cache:   c,
		metrics: metrics,
		now:     time.Now,
	}
}

// Export snapshots every project, task, and the app state into a
// versioned document. The three reads run concurrently.
func (s *TransferService) Export(ctx context.Context) (*transfer.Document, error) {
	ctx, span := otel.StartTransferSpan(ctx, "export", "")
	defer span.End()

	var (
		projects []project.Project
		tasks    []task.Task
		state    *domain.AppState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = s.store.ListProjects(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.store.ListTasks(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		state, err = s.store.GetAppState(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}

	return &transfer.Document{
		Version:    transfer.FormatVersion,
		ExportDate: s.now().UTC(),
		Data: transfer.Payload{
			Projects:         projects,
			Tasks:            tasks,
			CurrentProjectID: state.CurrentProjectID,
			Theme:            state.Theme,
		},
	}, nil
}

// Import loads a document. Merge mode re-keys every record and inserts
// alongside existing data; replace mode wipes the database first and
// keeps the document's IDs and app state.
func (s *TransferService) Import(ctx context.Context, doc transfer.Document, mode transfer.Mode) (*transfer.ValidationResult, error) {
	ctx, span := otel.StartTransferSpan(ctx, "import", string(mode))
	defer span.End()

	res := s.Validate(doc)
	if !res.Valid {
		return res, domain.Validationf("import document is invalid")
	}

	switch mode {
	case transfer.ModeMerge:
		if err := s.importMerge(ctx, doc); err != nil {
			return res, err
		}
	case transfer.ModeReplace:
		if err := s.importReplace(ctx, doc); err != nil {
			return res, err
		}
	default:
		return res, domain.Validationf("unknown import mode %q", mode)
	}

	s.invalidateAll(ctx, doc.Data.Projects)
	s.notifyImported(ctx, mode, len(doc.Data.Projects), len(doc.Data.Tasks))
	if s.metrics != nil {
		s.metrics.ImportedTasks.Add(ctx, int64(len(doc.Data.Tasks)))
	}
	return res, nil
}

// importMerge inserts the document's records with fresh IDs. Task
// project references are remapped through the new project IDs; tasks
// pointing at a project absent from the document are skipped.
func (s *TransferService) importMerge(ctx context.Context, doc transfer.Document) error {
	now := s.now()
	idMap := make(map[string]string, len(doc.Data.Projects))

	projects := make([]project.Project, 0, len(doc.Data.Projects))
	for _, p := range doc.Data.Projects {
		fresh := uuid.NewString()
		idMap[p.ID] = fresh
		p.ID = fresh
		p.Version = 1
		p.UpdatedAt = now
		projects = append(projects, p)
	}

	tasks := make([]task.Task, 0, len(doc.Data.Tasks))
	for _, t := range doc.Data.Tasks {
		newProject, ok := idMap[t.ProjectID]
		if !ok {
			slog.Warn("skipping imported task with unknown project", "task_id", t.ID, "project_id", t.ProjectID)
			continue
		}
		t.ID = uuid.NewString()
		t.ProjectID = newProject
		t.Version = 1
		t.UpdatedAt = now
		t.Tags = task.NormalizeTags(t.Tags)
		tasks = append(tasks, t)
	}

	return s.store.ImportData(ctx, projects, tasks)
}

// importReplace wipes the database and loads the document verbatim,
// IDs included. A current project reference that does not resolve
// inside the document is dropped.
func (s *TransferService) importReplace(ctx context.Context, doc transfer.Document) error {
	known := make(map[string]struct{}, len(doc.Data.Projects))
	for i := range doc.Data.Projects {
		known[doc.Data.Projects[i].ID] = struct{}{}
	}

	state := &domain.AppState{
		CurrentProjectID: doc.Data.CurrentProjectID,
		Theme:            doc.Data.Theme,
	}
	if _, ok := known[state.CurrentProjectID]; !ok {
		state.CurrentProjectID = ""
	}
	if !domain.ValidTheme(state.Theme) {
		state.Theme = domain.ThemeSystem
	}

	tasks := make([]task.Task, 0, len(doc.Data.Tasks))
	for _, t := range doc.Data.Tasks {
		t.Tags = task.NormalizeTags(t.Tags)
		tasks = append(tasks, t)
	}

	return s.store.ReplaceAll(ctx, doc.Data.Projects, tasks, state)
}

// ImportLegacy loads a pre-2.0 snapshot. Legacy imports always replace:
// the snapshot's own projects, current project, and theme are taken
// wholesale. A bare task list with no projects lands in a fresh project
// which becomes the current one.
func (s *TransferService) ImportLegacy(ctx context.Context, doc transfer.LegacyDocument) (*transfer.ValidationResult, error) {
	ctx, span := otel.StartTransferSpan(ctx, "import-legacy", string(transfer.ModeReplace))
	defer span.End()

	res := &transfer.ValidationResult{Valid: true, Tasks: len(doc.Tasks), Projects: len(doc.Projects)}
	for i, t := range doc.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			res.Valid = false
			res.Issues = append(res.Issues, transfer.ValidationIssue{
				Field:   fmt.Sprintf("tasks[%d].title", i),
				Message: "title is required",
			})
		}
	}
	if !res.Valid {
		return res, domain.Validationf("legacy document is invalid")
	}

	now := s.now()
	var (
		projects []project.Project
		state    *domain.AppState
		fallback string
		known    map[string]struct{}
	)
	if len(doc.Projects) == 0 {
		p := project.Project{
			ID:        uuid.NewString(),
			Name:      legacyProjectName,
			IsActive:  true,
			Settings:  project.DefaultSettings(),
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		projects = []project.Project{p}
		state = &domain.AppState{CurrentProjectID: p.ID, Theme: domain.ThemeSystem}
		fallback = p.ID
		res.Projects = 1
	} else {
		known = make(map[string]struct{}, len(doc.Projects))
		projects = make([]project.Project, 0, len(doc.Projects))
		for _, p := range doc.Projects {
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			known[p.ID] = struct{}{}
			p.Settings.DefaultTags = task.NormalizeTags(p.Settings.DefaultTags)
			if p.Version < 1 {
				p.Version = 1
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			p.UpdatedAt = now
			projects = append(projects, p)
		}
		state = &domain.AppState{CurrentProjectID: doc.CurrentProjectID, Theme: doc.Theme}
		if _, ok := known[state.CurrentProjectID]; !ok {
			state.CurrentProjectID = ""
		}
		if !domain.ValidTheme(state.Theme) {
			state.Theme = domain.ThemeSystem
		}
	}

	tasks := make([]task.Task, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if fallback != "" {
			t.ProjectID = fallback
		} else if _, ok := known[t.ProjectID]; !ok {
			slog.Warn("skipping legacy task with unknown project", "task_id", t.ID, "project_id", t.ProjectID)
			continue
		}
		if !t.Status.Valid() {
			t.Status = task.ParseStatus(string(t.Status))
		}
		if !t.Priority.Valid() {
			t.Priority = task.ParsePriority(string(t.Priority))
		}
		t.Tags = task.NormalizeTags(t.Tags)
		if t.Version < 1 {
			t.Version = 1
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		tasks = append(tasks, t)
	}

	if err := s.store.ReplaceAll(ctx, projects, tasks, state); err != nil {
		return res, err
	}

	s.invalidateAll(ctx, projects)
	s.notifyImported(ctx, transfer.ModeReplace, len(projects), len(tasks))
	if s.metrics != nil {
		s.metrics.ImportedTasks.Add(ctx, int64(len(tasks)))
	}
	return res, nil
}

// Validate dry-runs an import document and reports every problem found.
func (s *TransferService) Validate(doc transfer.Document) *transfer.ValidationResult {
	res := &transfer.ValidationResult{
		Valid:    true,
		Version:  doc.Version,
		Projects: len(doc.Data.Projects),
		Tasks:    len(doc.Data.Tasks),
	}
	add := func(field, msg string) {
		res.Valid = false
		res.Issues = append(res.Issues, transfer.ValidationIssue{Field: field, Message: msg})
	}

	if doc.Version != transfer.FormatVersion {
		add("version", fmt.Sprintf("unsupported format version %q, want %q", doc.Version, transfer.FormatVersion))
	}

	known := make(map[string]struct{}, len(doc.Data.Projects))
	for i, p := range doc.Data.Projects {
		field := fmt.Sprintf("data.projects[%d]", i)
		if p.ID == "" {
			add(field+".id", "id is required")
		}
		if strings.TrimSpace(p.Name) == "" {
			add(field+".name", "name is required")
		}
		if _, dup := known[p.ID]; dup {
			add(field+".id", "duplicate project id")
		}
		known[p.ID] = struct{}{}
	}

	for i, t := range doc.Data.Tasks {
		field := fmt.Sprintf("data.tasks[%d]", i)
		if strings.TrimSpace(t.Title) == "" {
			add(field+".title", "title is required")
		}
		if _, ok := known[t.ProjectID]; !ok {
			add(field+".project_id", fmt.Sprintf("references unknown project %q", t.ProjectID))
		}
		if t.Status != "" && !t.Status.Valid() {
			add(field+".status", fmt.Sprintf("invalid status %q", t.Status))
		}
		if t.Priority != "" && !t.Priority.Valid() {
			add(field+".priority", fmt.Sprintf("invalid priority %q", t.Priority))
		}
	}

	if doc.Data.Theme != "" && !domain.ValidTheme(doc.Data.Theme) {
		add("data.theme", fmt.Sprintf("invalid theme %q", doc.Data.Theme))
	}
	return res
}

func (s *TransferService) invalidateAll(ctx context.Context, projects []project.Project) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, "projects:list")
	_ = s.cache.Delete(ctx, "tasks:list:")
	for i := range projects {
		_ = s.cache.Delete(ctx, "tasks:list:"+projects[i].ID)
	}
}

func (s *TransferService) notifyImported(ctx context.Context, mode transfer.Mode, projects, tasks int) {
	payload := messagequeue.DataImportedPayload{Mode: string(mode), Projects: projects, Tasks: tasks}
	if s.queue != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectDataImported, data); err != nil {
				slog.Error("publish import event failed", "mode", mode, "error", err)
			}
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventDataImported, ws.DataImportedEvent(payload))
	}
}
