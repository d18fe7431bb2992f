package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruidmap/ruidmap/internal/domain"
	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/task"
	"github.com/ruidmap/ruidmap/internal/port/database"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const projectColumns = `p.id, p.name, p.description, p.color, p.icon, p.is_active, p.settings, p.version, p.created_at, p.updated_at,
	 (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id) AS task_count`

const taskColumns = `id, project_id, title, description, status, priority, due_date, tags,
	 subtasks, comments, attachments, time_spent, estimated_time, version, created_at, updated_at`

// --- Projects ---

func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects p ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id)

	p, err := scanProject(row)
	if err != nil {
		return nil, notFoundWrap(err, "get project %s", id)
	}
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	if err := insertProject(ctx, s.pool, p); err != nil {
		return err
	}
	return nil
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	settingsJSON, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET name = $2, description = $3, color = $4, icon = $5, is_active = $6,
		 settings = $7, version = version + 1, updated_at = $8
		 WHERE id = $1 AND version = $9`,
		p.ID, p.Name, p.Description, p.Color, p.Icon, p.IsActive, settingsJSON, p.UpdatedAt, p.Version)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project %s: %w", p.ID, domain.ErrConflict)
	}
	p.Version++
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete project %s", id)
}

func (s *Store) CountProjects(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

// --- Tasks ---

func (s *Store) ListTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if projectID == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	return insertTask(ctx, s.pool, t)
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	subtasksJSON, commentsJSON, attachmentsJSON, err := marshalTaskJSON(t)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET title = $2, description = $3, status = $4, priority = $5, due_date = $6,
		 tags = $7, subtasks = $8, comments = $9, attachments = $10, time_spent = $11,
		 estimated_time = $12, version = version + 1, updated_at = $13
		 WHERE id = $1 AND version = $14`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate,
		pgTextArray(t.Tags), subtasksJSON, commentsJSON, attachmentsJSON, t.TimeSpent,
		t.EstimatedTime, t.UpdatedAt, t.Version)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s: %w", t.ID, domain.ErrConflict)
	}
	t.Version++
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete task %s", id)
}

func (s *Store) DeleteDoneTasksBefore(ctx context.Context, projectID string, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tasks WHERE project_id = $1 AND status = 'done' AND updated_at < $2`,
		projectID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive done tasks for %s: %w", projectID, err)
	}
	return int(tag.RowsAffected()), nil
}

// --- App state ---

func (s *Store) GetAppState(ctx context.Context) (*domain.AppState, error) {
	var (
		st        domain.AppState
		projectID *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT current_project_id, theme, updated_at FROM app_state WHERE id`).
		Scan(&projectID, &st.Theme, &st.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get app state")
	}
	if projectID != nil {
		st.CurrentProjectID = *projectID
	}
	return &st, nil
}

func (s *Store) SetCurrentProject(ctx context.Context, projectID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE app_state SET current_project_id = $1, updated_at = now() WHERE id`,
		nullIfEmpty(projectID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("set current project %s: %w", projectID, domain.ErrNotFound)
		}
		return fmt.Errorf("set current project: %w", err)
	}
	return nil
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE app_state SET theme = $1, updated_at = now() WHERE id`, theme); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	return nil
}

// --- Bulk import ---

func (s *Store) ImportData(ctx context.Context, projects []project.Project, tasks []task.Task) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertAll(ctx, tx, projects, tasks); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, projects []project.Project, tasks []task.Task, state *domain.AppState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}

	if err := insertAll(ctx, tx, projects, tasks); err != nil {
		return err
	}

	if state != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE app_state SET current_project_id = $1, theme = $2, updated_at = now() WHERE id`,
			nullIfEmpty(state.CurrentProjectID), state.Theme); err != nil {
			return fmt.Errorf("replace app state: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func insertAll(ctx context.Context, q querier, projects []project.Project, tasks []task.Task) error {
	for i := range projects {
		if err := insertProject(ctx, q, &projects[i]); err != nil {
			return err
		}
	}
	for i := range tasks {
		if err := insertTask(ctx, q, &tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertProject(ctx context.Context, q querier, p *project.Project) error {
	settingsJSON, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO projects (id, name, description, color, icon, is_active, settings, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Description, p.Color, p.Icon, p.IsActive, settingsJSON, p.Version, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create project: id %s already exists: %w", p.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create project %q: %w", p.Name, err)
	}
	return nil
}

func insertTask(ctx context.Context, q querier, t *task.Task) error {
	subtasksJSON, commentsJSON, attachmentsJSON, err := marshalTaskJSON(t)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx,
		`INSERT INTO tasks (id, project_id, title, description, status, priority, due_date, tags,
		 subtasks, comments, attachments, time_spent, estimated_time, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate,
		pgTextArray(t.Tags), subtasksJSON, commentsJSON, attachmentsJSON, t.TimeSpent,
		t.EstimatedTime, t.Version, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("create task %q: project %s: %w", t.Title, t.ProjectID, domain.ErrNotFound)
		}
		return fmt.Errorf("create task %q: %w", t.Title, err)
	}
	return nil
}

func marshalTaskJSON(t *task.Task) (subtasks, comments, attachments []byte, err error) {
	if subtasks, err = json.Marshal(orEmpty(t.Subtasks)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal subtasks: %w", err)
	}
	if comments, err = json.Marshal(orEmpty(t.Comments)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal comments: %w", err)
	}
	if attachments, err = json.Marshal(orEmpty(t.Attachments)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal attachments: %w", err)
	}
	return subtasks, comments, attachments, nil
}

// --- Scanners ---

func scanProject(row scannable) (project.Project, error) {
	var (
		p            project.Project
		settingsJSON []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.Icon, &p.IsActive,
		&settingsJSON, &p.Version, &p.CreatedAt, &p.UpdatedAt, &p.TaskCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, err
		}
		return project.Project{}, fmt.Errorf("scan project: %w", err)
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &p.Settings); err != nil {
			return project.Project{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return p, nil
}

func scanTask(row scannable) (task.Task, error) {
	var (
		t               task.Task
		subtasksJSON    []byte
		commentsJSON    []byte
		attachmentsJSON []byte
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.DueDate, &t.Tags, &subtasksJSON, &commentsJSON, &attachmentsJSON,
		&t.TimeSpent, &t.EstimatedTime, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, err
		}
		return task.Task{}, fmt.Errorf("scan task: %w", err)
	}
	if err := json.Unmarshal(subtasksJSON, &t.Subtasks); err != nil {
		return task.Task{}, fmt.Errorf("unmarshal subtasks: %w", err)
	}
	if err := json.Unmarshal(commentsJSON, &t.Comments); err != nil {
		return task.Task{}, fmt.Errorf("unmarshal comments: %w", err)
	}
	if err := json.Unmarshal(attachmentsJSON, &t.Attachments); err != nil {
		return task.Task{}, fmt.Errorf("unmarshal attachments: %w", err)
	}
	return t, nil
}

var _ database.Store = (*Store)(nil)
