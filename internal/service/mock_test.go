package service

import (
	"context"
	"sync"
	"time"

	"github.com/ruidmap/ruidmap/internal/domain"
	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/task"
	"github.com/ruidmap/ruidmap/internal/port/cache"
	"github.com/ruidmap/ruidmap/internal/port/database"
	"github.com/ruidmap/ruidmap/internal/port/messagequeue"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is a minimal in-memory implementation of database.Store for testing.
type mockStore struct {
	projects []project.Project
	tasks    []task.Task
	state    domain.AppState

	// Error hooks. Set these to inject failures.
	listProjectsErr error
	getProjectErr   error
	listTasksErr    error
	getTaskErr      error
	createTaskErr   error
	updateTaskErr   error
	importErr       error
	replaceErr      error
	deleteDoneErr   error
}

func (m *mockStore) ListProjects(_ context.Context) ([]project.Project, error) {
	return m.projects, m.listProjectsErr
}

func (m *mockStore) GetProject(_ context.Context, id string) (*project.Project, error) {
	if m.getProjectErr != nil {
		return nil, m.getProjectErr
	}
	for i := range m.projects {
		if m.projects[i].ID == id {
			p := m.projects[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateProject(_ context.Context, p *project.Project) error {
	for i := range m.projects {
		if m.projects[i].ID == p.ID {
			return domain.ErrConflict
		}
	}
	m.projects = append(m.projects, *p)
	return nil
}

func (m *mockStore) UpdateProject(_ context.Context, p *project.Project) error {
	for i := range m.projects {
		if m.projects[i].ID == p.ID {
			m.projects[i] = *p
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) DeleteProject(_ context.Context, id string) error {
	for i := range m.projects {
		if m.projects[i].ID == id {
			m.projects = append(m.projects[:i], m.projects[i+1:]...)
			kept := m.tasks[:0]
			for _, t := range m.tasks {
				if t.ProjectID != id {
					kept = append(kept, t)
				}
			}
			m.tasks = kept
			if m.state.CurrentProjectID == id {
				m.state.CurrentProjectID = ""
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) CountProjects(_ context.Context) (int, error) {
	return len(m.projects), nil
}

func (m *mockStore) ListTasks(_ context.Context, projectID string) ([]task.Task, error) {
	if m.listTasksErr != nil {
		return nil, m.listTasksErr
	}
	if projectID == "" {
		return m.tasks, nil
	}
	var out []task.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	if m.getTaskErr != nil {
		return nil, m.getTaskErr
	}
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateTask(_ context.Context, t *task.Task) error {
	if m.createTaskErr != nil {
		return m.createTaskErr
	}
	m.tasks = append(m.tasks, *t)
	return nil
}

func (m *mockStore) UpdateTask(_ context.Context, t *task.Task) error {
	if m.updateTaskErr != nil {
		return m.updateTaskErr
	}
	for i := range m.tasks {
		if m.tasks[i].ID == t.ID {
			m.tasks[i] = *t
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) DeleteTask(_ context.Context, id string) error {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) GetAppState(_ context.Context) (*domain.AppState, error) {
	s := m.state
	if s.Theme == "" {
		s.Theme = domain.ThemeSystem
	}
	return &s, nil
}

func (m *mockStore) SetCurrentProject(_ context.Context, projectID string) error {
	if projectID != "" {
		found := false
		for i := range m.projects {
			if m.projects[i].ID == projectID {
				found = true
				break
			}
		}
		if !found {
			return domain.ErrNotFound
		}
	}
	m.state.CurrentProjectID = projectID
	return nil
}

func (m *mockStore) SetTheme(_ context.Context, theme string) error {
	m.state.Theme = theme
	return nil
}

func (m *mockStore) ImportData(_ context.Context, projects []project.Project, tasks []task.Task) error {
	if m.importErr != nil {
		return m.importErr
	}
	m.projects = append(m.projects, projects...)
	m.tasks = append(m.tasks, tasks...)
	return nil
}

func (m *mockStore) ReplaceAll(_ context.Context, projects []project.Project, tasks []task.Task, state *domain.AppState) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.projects = projects
	m.tasks = tasks
	m.state = *state
	return nil
}

func (m *mockStore) DeleteDoneTasksBefore(_ context.Context, projectID string, cutoff time.Time) (int, error) {
	if m.deleteDoneErr != nil {
		return 0, m.deleteDoneErr
	}
	n := 0
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if t.ProjectID == projectID && t.Status == task.StatusDone && t.UpdatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	m.tasks = kept
	return n, nil
}

// Ensure mockQueue implements messagequeue.Queue at compile time.
var _ messagequeue.Queue = (*mockQueue)(nil)

// mockQueue records published messages for assertions.
type mockQueue struct {
	mu        sync.Mutex
	published []publishedMsg

	publishErr error
}

type publishedMsg struct {
	subject string
	data    []byte
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Drain() error { return nil }

func (m *mockQueue) Close() error { return nil }

func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	for i, p := range m.published {
		out[i] = p.subject
	}
	return out
}

// Ensure memCache implements cache.Cache at compile time.
var _ cache.Cache = (*memCache)(nil)

// memCache is a map-backed cache for exercising memoization and
// invalidation.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return data, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
