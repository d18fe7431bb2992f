package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
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

// TaskService handles task business logic: CRUD, the status toggle
// cycle, tags, subtasks, comments, attachments, and time tracking.
// Every mutation invalidates the list cache and fans out change
// notifications over NATS and the websocket hub.
type TaskService struct {
	store    database.Store
	queue    messagequeue.Queue
	hub      *ws.Hub
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *otel.Metrics
	now      func() time.Time
}

// NewTaskService creates a new TaskService. queue, hub, cache, and
// metrics may be nil; the corresponding side effects are skipped.
func NewTaskService(store database.Store, queue messagequeue.Queue, hub *ws.Hub, c cache.Cache, cacheTTL time.Duration, metrics *otel.Metrics) *TaskService {
	return &TaskService{
		store:    store,
		queue:    queue,
		hub:      hub,
		cache:    c,
		cacheTTL: cacheTTL,
		metrics:  metrics,
		now:      time.Now,
	}
}

// List returns the project's tasks matching spec, ordered by its sort
// key. An empty projectID lists across all projects.
func (s *TaskService) List(ctx context.Context, projectID string, spec query.Spec) ([]task.Task, error) {
	ctx, span := otel.StartQuerySpan(ctx, "tasks", projectID)
	defer span.End()

	start := s.now()
	tasks, err := s.cachedList(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := query.ApplyTasksAt(tasks, spec, s.now())
	if s.metrics != nil {
		s.metrics.QueryDuration.Record(ctx, s.now().Sub(start).Seconds())
	}
	return out, nil
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// Create creates a task in the given project, applying the project's
// default settings and task template to fields the request leaves empty.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.Validationf("title is required")
	}
	if req.ProjectID == "" {
		return nil, domain.Validationf("project_id is required")
	}

	p, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &task.Task{
		ID:            uuid.NewString(),
		ProjectID:     req.ProjectID,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Status:        task.StatusTodo,
		Priority:      req.Priority,
		DueDate:       req.DueDate,
		Tags:          req.Tags,
		Subtasks:      []task.Subtask{},
		Comments:      []task.Comment{},
		Attachments:   []task.Attachment{},
		EstimatedTime: req.EstimatedTime,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyProjectDefaults(t, p)
	t.Tags = task.NormalizeTags(t.Tags)

	if !t.Priority.Valid() {
		return nil, domain.Validationf("invalid priority %q", t.Priority)
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, t.ProjectID)
	s.notify(ctx, messagequeue.SubjectTaskCreated, ws.EventTaskCreated, t)
	if s.metrics != nil {
		s.metrics.TasksCreated.Add(ctx, 1)
	}
	return t, nil
}

// applyProjectDefaults fills empty task fields from the project's
// settings and task template.
func applyProjectDefaults(t *task.Task, p *project.Project) {
	if t.Priority == "" {
		t.Priority = p.Settings.DefaultPriority
	}
	if t.Priority == "" {
		t.Priority = task.PriorityLow
	}
	t.Tags = append(t.Tags, p.Settings.DefaultTags...)

	tmpl := p.Settings.TaskTemplate
	if tmpl == nil {
		return
	}
	if tmpl.TitlePrefix != "" && !strings.HasPrefix(t.Title, tmpl.TitlePrefix) {
		t.Title = tmpl.TitlePrefix + t.Title
	}
	if t.Description == "" {
		t.Description = tmpl.DefaultDescription
	}
	t.Tags = append(t.Tags, tmpl.DefaultTags...)
	if t.EstimatedTime == nil && tmpl.DefaultEstimatedTime != nil {
		est := *tmpl.DefaultEstimatedTime
		t.EstimatedTime = &est
	}
}

// Update applies a partial update to a task.
func (s *TaskService) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.Validationf("title must not be empty")
		}
		t.Title = title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, domain.Validationf("invalid status %q", *req.Status)
		}
		t.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, domain.Validationf("invalid priority %q", *req.Priority)
		}
		t.Priority = *req.Priority
	}
	if req.SetDueDate {
		t.DueDate = req.DueDate
	}
	if req.Tags != nil {
		t.Tags = task.NormalizeTags(req.Tags)
	}
	if req.SetEstimate {
		if req.EstimatedTime != nil && *req.EstimatedTime < 0 {
			return nil, domain.Validationf("estimated_time must not be negative")
		}
		t.EstimatedTime = req.EstimatedTime
	}

	return s.saveTask(ctx, t)
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, t.ProjectID)
	s.notify(ctx, messagequeue.SubjectTaskDeleted, ws.EventTaskDeleted, t)
	return nil
}

// Toggle advances a task's status along the cycle
// todo → in-progress → done → todo.
func (s *TaskService) Toggle(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Status = t.Status.Next()
	t, err = s.saveTask(ctx, t)
	if err != nil {
		return nil, err
	}
	if t.Status == task.StatusDone && s.metrics != nil {
		s.metrics.TasksCompleted.Add(ctx, 1)
	}
	return t, nil
}

// AddTag adds a normalized tag to a task. Adding a tag the task already
// carries is a no-op.
func (s *TaskService) AddTag(ctx context.Context, id, tag string) (*task.Task, error) {
	norm := task.NormalizeTag(tag)
	if norm == "" {
		return nil, domain.Validationf("tag must not be empty")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.HasTag(norm) {
		return t, nil
	}
	t.Tags = append(t.Tags, norm)
	return s.saveTask(ctx, t)
}

// RemoveTag removes a tag from a task. Removing an absent tag is a no-op.
func (s *TaskService) RemoveTag(ctx context.Context, id, tag string) (*task.Task, error) {
	norm := task.NormalizeTag(tag)
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.HasTag(norm) {
		return t, nil
	}
	tags := make([]string, 0, len(t.Tags)-1)
	for _, have := range t.Tags {
		if have != norm {
			tags = append(tags, have)
		}
	}
	t.Tags = tags
	return s.saveTask(ctx, t)
}

// AddSubtask appends a checklist item to a task.
func (s *TaskService) AddSubtask(ctx context.Context, id, title string) (*task.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.Validationf("subtask title is required")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Subtasks = append(t.Subtasks, task.Subtask{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: s.now(),
	})
	return s.saveTask(ctx, t)
}

// ToggleSubtask flips a subtask's completed flag.
func (s *TaskService) ToggleSubtask(ctx context.Context, id, subtaskID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			t.Subtasks[i].Completed = !t.Subtasks[i].Completed
			return s.saveTask(ctx, t)
		}
	}
	return nil, fmt.Errorf("subtask %s: %w", subtaskID, domain.ErrNotFound)
}

// DeleteSubtask removes a checklist item from a task.
func (s *TaskService) DeleteSubtask(ctx context.Context, id, subtaskID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
			return s.saveTask(ctx, t)
		}
	}
	return nil, fmt.Errorf("subtask %s: %w", subtaskID, domain.ErrNotFound)
}

// AddComment appends a comment to a task.
func (s *TaskService) AddComment(ctx context.Context, id, text, author string) (*task.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.Validationf("comment text is required")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Comments = append(t.Comments, task.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    author,
		CreatedAt: s.now(),
	})
	return s.saveTask(ctx, t)
}

// DeleteComment removes a comment from a task.
func (s *TaskService) DeleteComment(ctx context.Context, id, commentID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range t.Comments {
		if t.Comments[i].ID == commentID {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			return s.saveTask(ctx, t)
		}
	}
	return nil, fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
}

// AddAttachment records attachment metadata on a task.
func (s *TaskService) AddAttachment(ctx context.Context, id string, att task.Attachment) (*task.Task, error) {
	if strings.TrimSpace(att.Filename) == "" {
		return nil, domain.Validationf("attachment filename is required")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	att.ID = uuid.NewString()
	att.CreatedAt = s.now()
	t.Attachments = append(t.Attachments, att)
	return s.saveTask(ctx, t)
}

// DeleteAttachment removes attachment metadata from a task.
func (s *TaskService) DeleteAttachment(ctx context.Context, id, attachmentID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range t.Attachments {
		if t.Attachments[i].ID == attachmentID {
			t.Attachments = append(t.Attachments[:i], t.Attachments[i+1:]...)
			return s.saveTask(ctx, t)
		}
	}
	return nil, fmt.Errorf("attachment %s: %w", attachmentID, domain.ErrNotFound)
}

// AddTime adds minutes to a task's tracked time.
func (s *TaskService) AddTime(ctx context.Context, id string, minutes int) (*task.Task, error) {
	if minutes <= 0 {
		return nil, domain.Validationf("minutes must be positive")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.TimeSpent += minutes
	return s.saveTask(ctx, t)
}

// ResetTime zeroes a task's accumulated time.
func (s *TaskService) ResetTime(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.TimeSpent = 0
	return s.saveTask(ctx, t)
}

// SetEstimate sets or clears a task's estimated time in minutes.
func (s *TaskService) SetEstimate(ctx context.Context, id string, minutes *int) (*task.Task, error) {
	if minutes != nil && *minutes < 0 {
		return nil, domain.Validationf("estimated_time must not be negative")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.EstimatedTime = minutes
	return s.saveTask(ctx, t)
}

// Stats tallies the project's tasks by status. An empty projectID
// covers all projects.
func (s *TaskService) Stats(ctx context.Context, projectID string) (task.Stats, error) {
	tasks, err := s.cachedList(ctx, projectID)
	if err != nil {
		return task.Stats{}, err
	}
	return task.ComputeStats(tasks), nil
}

// AllTags returns the sorted set of distinct tags across the project's
// tasks. An empty projectID covers all projects.
func (s *TaskService) AllTags(ctx context.Context, projectID string) ([]string, error) {
	tasks, err := s.cachedList(ctx, projectID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for i := range tasks {
		for _, tag := range tasks[i].Tags {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Overdue returns the project's unfinished tasks whose due date lies in
// the past, soonest first.
func (s *TaskService) Overdue(ctx context.Context, projectID string) ([]task.Task, error) {
	tasks, err := s.cachedList(ctx, projectID)
	if err != nil {
		return nil, err
	}
	spec := query.Spec{Due: query.DueOverdue, SortBy: query.SortDueDate, Order: query.OrderAsc}
	overdue := query.ApplyTasksAt(tasks, spec, s.now())
	out := overdue[:0]
	for _, t := range overdue {
		if t.Status != task.StatusDone {
			out = append(out, t)
		}
	}
	return out, nil
}

// saveTask stamps, persists, and broadcasts an updated task.
func (s *TaskService) saveTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	t.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, t.ProjectID)
	s.notify(ctx, messagequeue.SubjectTaskUpdated, ws.EventTaskUpdated, t)
	return t, nil
}

// cachedList fetches the project's raw task list through the query
// cache. Filtering stays outside the cache so every spec shares one
// cached fetch.
func (s *TaskService) cachedList(ctx context.Context, projectID string) ([]task.Task, error) {
	key := "tasks:list:" + projectID
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var tasks []task.Task
			if json.Unmarshal(data, &tasks) == nil {
				if s.metrics != nil {
					s.metrics.CacheHits.Add(ctx, 1)
				}
				return tasks, nil
			}
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Add(ctx, 1)
		}
	}

	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(tasks); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return tasks, nil
}

func (s *TaskService) invalidate(ctx context.Context, projectID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, "tasks:list:"+projectID)
	_ = s.cache.Delete(ctx, "tasks:list:")
	_ = s.cache.Delete(ctx, "projects:list")
}

func (s *TaskService) notify(ctx context.Context, subject, event string, t *task.Task) {
	payload := messagequeue.TaskEventPayload{
		TaskID:    t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Status:    string(t.Status),
	}
	if s.queue != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			if err := s.queue.Publish(ctx, subject, data); err != nil {
				slog.Error("publish task event failed", "subject", subject, "task_id", t.ID, "error", err)
			}
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, event, ws.TaskEvent(payload))
	}
}
