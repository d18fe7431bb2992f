package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruidmap/ruidmap/internal/domain"
	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/query"
	"github.com/ruidmap/ruidmap/internal/domain/task"
)

func seedProject(id, name string) project.Project {
	return project.Project{
		ID:       id,
		Name:     name,
		IsActive: true,
		Settings: project.DefaultSettings(),
		Version:  1,
	}
}

func newTaskService(store *mockStore) (*TaskService, *mockQueue) {
	q := &mockQueue{}
	svc := NewTaskService(store, q, nil, nil, time.Minute, nil)
	return svc, q
}

func TestTaskCreate(t *testing.T) {
	store := &mockStore{projects: []project.Project{seedProject("p1", "Work")}}
	svc, q := newTaskService(store)

	created, err := svc.Create(context.Background(), task.CreateRequest{
		ProjectID: "p1",
		Title:     "  Write report  ",
		Tags:      []string{"Docs", "docs", " URGENT "},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}
	if created.Title != "Write report" {
		t.Errorf("title = %q, want trimmed", created.Title)
	}
	if created.Status != task.StatusTodo {
		t.Errorf("status = %q, want todo", created.Status)
	}
	if created.Priority != task.PriorityMedium {
		t.Errorf("priority = %q, want project default medium", created.Priority)
	}
	if len(created.Tags) != 2 || created.Tags[0] != "docs" || created.Tags[1] != "urgent" {
		t.Errorf("tags = %v, want normalized deduped", created.Tags)
	}
	if created.Version != 1 {
		t.Errorf("version = %d, want 1", created.Version)
	}
	if len(store.tasks) != 1 {
		t.Fatalf("stored %d tasks, want 1", len(store.tasks))
	}
	subjects := q.subjects()
	if len(subjects) != 1 || subjects[0] != "tasks.created" {
		t.Errorf("published %v, want [tasks.created]", subjects)
	}
}

func TestTaskCreateAppliesTemplate(t *testing.T) {
	est := 30
	p := seedProject("p1", "Work")
	p.Settings.DefaultPriority = task.PriorityHigh
	p.Settings.DefaultTags = []string{"work"}
	p.Settings.TaskTemplate = &project.TaskTemplate{
		TitlePrefix:          "[W] ",
		DefaultDescription:   "fill me in",
		DefaultTags:          []string{"templated"},
		DefaultEstimatedTime: &est,
	}
	store := &mockStore{projects: []project.Project{p}}
	svc, _ := newTaskService(store)

	created, err := svc.Create(context.Background(), task.CreateRequest{ProjectID: "p1", Title: "Ship"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Title != "[W] Ship" {
		t.Errorf("title = %q, want template prefix applied", created.Title)
	}
	if created.Description != "fill me in" {
		t.Errorf("description = %q, want template default", created.Description)
	}
	if created.Priority != task.PriorityHigh {
		t.Errorf("priority = %q, want project default high", created.Priority)
	}
	if created.EstimatedTime == nil || *created.EstimatedTime != 30 {
		t.Errorf("estimated_time = %v, want 30", created.EstimatedTime)
	}
	want := map[string]bool{"work": true, "templated": true}
	for _, tag := range created.Tags {
		delete(want, tag)
	}
	if len(want) != 0 {
		t.Errorf("tags = %v, missing defaults %v", created.Tags, want)
	}
}

func TestTaskCreateValidation(t *testing.T) {
	store := &mockStore{projects: []project.Project{seedProject("p1", "Work")}}
	svc, _ := newTaskService(store)

	if _, err := svc.Create(context.Background(), task.CreateRequest{ProjectID: "p1", Title: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank title: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Create(context.Background(), task.CreateRequest{Title: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("missing project: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Create(context.Background(), task.CreateRequest{ProjectID: "ghost", Title: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown project: err = %v, want ErrNotFound", err)
	}
}

func TestTaskUpdatePartial(t *testing.T) {
	store := &mockStore{
		projects: []project.Project{seedProject("p1", "Work")},
		tasks: []task.Task{{
			ID: "t1", ProjectID: "p1", Title: "Old", Description: "keep",
			Status: task.StatusTodo, Priority: task.PriorityLow, Version: 1,
		}},
	}
	svc, _ := newTaskService(store)

	title := "New"
	status := task.StatusDone
	updated, err := svc.Update(context.Background(), "t1", task.UpdateRequest{Title: &title, Status: &status})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "New" || updated.Status != task.StatusDone {
		t.Errorf("got title=%q status=%q", updated.Title, updated.Status)
	}
	if updated.Description != "keep" {
		t.Errorf("description = %q, want untouched", updated.Description)
	}

	bad := task.Status("archived")
	if _, err := svc.Update(context.Background(), "t1", task.UpdateRequest{Status: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("invalid status: err = %v, want ErrValidation", err)
	}
}

func TestTaskUpdateClearsDueDate(t *testing.T) {
	due := time.Now().Add(24 * time.Hour)
	store := &mockStore{tasks: []task.Task{{ID: "t1", ProjectID: "p1", Title: "x", DueDate: &due}}}
	svc, _ := newTaskService(store)

	updated, err := svc.Update(context.Background(), "t1", task.UpdateRequest{SetDueDate: true})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.DueDate != nil {
		t.Errorf("due date = %v, want cleared", updated.DueDate)
	}
}

func TestTaskToggleCycle(t *testing.T) {
	store := &mockStore{tasks: []task.Task{{ID: "t1", ProjectID: "p1", Title: "x", Status: task.StatusTodo}}}
	svc, _ := newTaskService(store)

	want := []task.Status{task.StatusInProgress, task.StatusDone, task.StatusTodo}
	for _, expected := range want {
		got, err := svc.Toggle(context.Background(), "t1")
		if err != nil {
			t.Fatalf("Toggle: %v", err)
		}
		if got.Status != expected {
			t.Fatalf("status = %q, want %q", got.Status, expected)
		}
	}
}

func TestTaskTags(t *testing.T) {
	store := &mockStore{tasks: []task.Task{{ID: "t1", ProjectID: "p1", Title: "x", Tags: []string{"a"}}}}
	svc, _ := newTaskService(store)
	ctx := context.Background()

	got, err := svc.AddTag(ctx, "t1", " B ")
	if err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "b" {
		t.Errorf("tags = %v, want [a b]", got.Tags)
	}

	// Duplicate add is a no-op.
	got, err = svc.AddTag(ctx, "t1", "A")
	if err != nil {
		t.Fatalf("AddTag dup: %v", err)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags = %v, want no duplicate", got.Tags)
	}

	got, err = svc.RemoveTag(ctx, "t1", "a")
	if err != nil {
		t.Fatalf("RemoveTag: %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "b" {
		t.Errorf("tags = %v, want [b]", got.Tags)
	}

	if _, err := svc.AddTag(ctx, "t1", "  "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty tag: err = %v, want ErrValidation", err)
	}
}

func TestTaskSubtasks(t *testing.T) {
	store := &mockStore{tasks: []task.Task{{ID: "t1", ProjectID: "p1", Title: "x"}}}
	svc, _ := newTaskService(store)
	ctx := context.Background()

	got, err := svc.AddSubtask(ctx, "t1", "step one")
	if err != nil {
		t.Fatalf("AddSubtask: %v", err)
	}
	if len(got.Subtasks) != 1 || got.Subtasks[0].Completed {
		t.Fatalf("subtasks = %+v", got.Subtasks)
	}
	subID := got.Subtasks[0].ID

	got, err = svc.ToggleSubtask(ctx, "t1", subID)
	if err != nil {
		t.Fatalf("ToggleSubtask: %v", err)
	}
	if !got.Subtasks[0].Completed {
		t.Error("subtask not completed after toggle")
	}

	if _, err := svc.ToggleSubtask(ctx, "t1", "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown subtask: err = %v, want ErrNotFound", err)
	}

	got, err = svc.DeleteSubtask(ctx, "t1", subID)
	if err != nil {
		t.Fatalf("DeleteSubtask: %v", err)
	}
	if len(got.Subtasks) != 0 {
		t.Errorf("subtasks = %+v, want empty", got.Subtasks)
	}
}

func TestTaskComments(t *testing.T) {
	store := &mockStore{tasks: []task.Task{{ID: "t1", ProjectID: "p1", Title: "x"}}}
	svc, _ := newTaskService(store)
	ctx := context.Background()

	got, err := svc.AddComment(ctx, "t1", "looks good", "alex")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(got.Comments) != 1 || got.Comments[0].Author != "alex" {
		t.Fatalf("comments = %+v", got.Comments)
	}

	if _, err := svc.AddComment(ctx, "t1", "  ", "alex"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty comment: err = %v, want ErrValidation", err)
	}

	got, err = svc.DeleteComment(ctx, "t1", got.Comments[0].ID)
	if err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if len(got.Comments) != 0 {
		t.Errorf("comments = %+v, want empty", got.Comments)
	}
}

func TestTaskTimeTracking(t *testing.T) {
	store := &mockStore{tasks: []task.Task{{ID: "t1", ProjectID: "p1", Title: "x", TimeSpent: 10}}}
	svc, _ := newTaskService(store)
	ctx := context.Background()

	got, err := svc.AddTime(ctx, "t1", 25)
	if err != nil {
		t.Fatalf("AddTime: %v", err)
	}
	if got.TimeSpent != 35 {
		t.Errorf("time_spent = %d, want 35", got.TimeSpent)
	}

	if _, err := svc.AddTime(ctx, "t1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("zero minutes: err = %v, want ErrValidation", err)
	}

	est := 60
	got, err = svc.SetEstimate(ctx, "t1", &est)
	if err != nil {
		t.Fatalf("SetEstimate: %v", err)
	}
	if got.EstimatedTime == nil || *got.EstimatedTime != 60 {
		t.Errorf("estimated_time = %v, want 60", got.EstimatedTime)
	}

	got, err = svc.SetEstimate(ctx, "t1", nil)
	if err != nil {
		t.Fatalf("SetEstimate clear: %v", err)
	}
	if got.EstimatedTime != nil {
		t.Errorf("estimated_time = %v, want cleared", got.EstimatedTime)
	}

	neg := -5
	if _, err := svc.SetEstimate(ctx, "t1", &neg); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("negative estimate: err = %v, want ErrValidation", err)
	}

	got, err = svc.ResetTime(ctx, "t1")
	if err != nil {
		t.Fatalf("ResetTime: %v", err)
	}
	if got.TimeSpent != 0 {
		t.Errorf("time_spent = %d after reset, want 0", got.TimeSpent)
	}

	if _, err := svc.ResetTime(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown task: err = %v, want ErrNotFound", err)
	}
}

func TestTaskDelete(t *testing.T) {
	store := &mockStore{tasks: []task.Task{{ID: "t1", ProjectID: "p1", Title: "x"}}}
	svc, q := newTaskService(store)

	if err := svc.Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.tasks) != 0 {
		t.Errorf("stored %d tasks, want 0", len(store.tasks))
	}
	subjects := q.subjects()
	if len(subjects) != 1 || subjects[0] != "tasks.deleted" {
		t.Errorf("published %v, want [tasks.deleted]", subjects)
	}

	if err := svc.Delete(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown task: err = %v, want ErrNotFound", err)
	}
}

func TestTaskListAppliesSpec(t *testing.T) {
	store := &mockStore{tasks: []task.Task{
		{ID: "t1", ProjectID: "p1", Title: "alpha", Status: task.StatusTodo, Priority: task.PriorityLow},
		{ID: "t2", ProjectID: "p1", Title: "beta", Status: task.StatusDone, Priority: task.PriorityHigh},
		{ID: "t3", ProjectID: "p2", Title: "gamma", Status: task.StatusTodo, Priority: task.PriorityMedium},
	}}
	svc, _ := newTaskService(store)

	got, err := svc.List(context.Background(), "p1", query.Spec{Status: string(task.StatusTodo)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("got %+v, want only t1", got)
	}

	all, err := svc.List(context.Background(), "", query.Spec{SortBy: query.SortTitle, Order: query.OrderAsc})
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 || all[0].Title != "alpha" || all[2].Title != "gamma" {
		t.Errorf("got %d tasks, first=%q", len(all), all[0].Title)
	}
}

func TestTaskListUsesCache(t *testing.T) {
	store := &mockStore{tasks: []task.Task{{ID: "t1", ProjectID: "p1", Title: "x", Status: task.StatusTodo}}}
	c := newMemCache()
	svc := NewTaskService(store, nil, nil, c, time.Minute, nil)
	ctx := context.Background()

	if _, err := svc.List(ctx, "p1", query.Spec{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if c.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", c.sets)
	}

	store.listTasksErr = errors.New("db down")
	if _, err := svc.List(ctx, "p1", query.Spec{}); err != nil {
		t.Fatalf("List from cache: %v", err)
	}
	if c.hits == 0 {
		t.Error("expected a cache hit on second list")
	}

	// A mutation drops the entry, forcing the next list back to the store.
	store.listTasksErr = nil
	if _, err := svc.Toggle(ctx, "t1"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if _, ok := c.entries["tasks:list:p1"]; ok {
		t.Error("cache entry survived invalidation")
	}
}

func TestTaskStats(t *testing.T) {
	store := &mockStore{tasks: []task.Task{
		{ID: "t1", ProjectID: "p1", Status: task.StatusTodo},
		{ID: "t2", ProjectID: "p1", Status: task.StatusDone},
		{ID: "t3", ProjectID: "p1", Status: task.StatusDone},
		{ID: "t4", ProjectID: "p1", Status: task.StatusInProgress},
	}}
	svc, _ := newTaskService(store)

	stats, err := svc.Stats(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 || stats.Todo != 1 || stats.InProgress != 1 || stats.Done != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ProgressPercentage != 50 {
		t.Errorf("progress = %v, want 50", stats.ProgressPercentage)
	}
}

func TestTaskAllTags(t *testing.T) {
	store := &mockStore{tasks: []task.Task{
		{ID: "t1", ProjectID: "p1", Tags: []string{"b", "a"}},
		{ID: "t2", ProjectID: "p1", Tags: []string{"a", "c"}},
	}}
	svc, _ := newTaskService(store)

	tags, err := svc.AllTags(context.Background(), "p1")
	if err != nil {
		t.Fatalf("AllTags: %v", err)
	}
	if len(tags) != 3 || tags[0] != "a" || tags[1] != "b" || tags[2] != "c" {
		t.Errorf("tags = %v, want [a b c]", tags)
	}
}

func TestTaskOverdueExcludesDone(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)
	store := &mockStore{tasks: []task.Task{
		{ID: "t1", ProjectID: "p1", Title: "late", Status: task.StatusTodo, DueDate: &past},
		{ID: "t2", ProjectID: "p1", Title: "late done", Status: task.StatusDone, DueDate: &past},
		{ID: "t3", ProjectID: "p1", Title: "future", Status: task.StatusTodo, DueDate: &future},
		{ID: "t4", ProjectID: "p1", Title: "undated", Status: task.StatusTodo},
	}}
	svc, _ := newTaskService(store)

	got, err := svc.Overdue(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Overdue: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("got %+v, want only t1", got)
	}
}

func TestTaskPublishFailureDoesNotFailMutation(t *testing.T) {
	store := &mockStore{projects: []project.Project{seedProject("p1", "Work")}}
	q := &mockQueue{publishErr: errors.New("nats down")}
	svc := NewTaskService(store, q, nil, nil, time.Minute, nil)

	if _, err := svc.Create(context.Background(), task.CreateRequest{ProjectID: "p1", Title: "x"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(store.tasks) != 1 {
		t.Errorf("stored %d tasks, want 1", len(store.tasks))
	}
}
