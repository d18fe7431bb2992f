package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ruidmap/ruidmap/internal/adapter/ws"
	"github.com/ruidmap/ruidmap/internal/domain"
	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/port/database"
	"github.com/ruidmap/ruidmap/internal/port/messagequeue"
)

// StateService manages the single-row application state shared by all
// clients: the currently selected project and the UI theme.
type StateService struct {
	store database.Store
	queue messagequeue.Queue
	hub   *ws.Hub
}

// NewStateService creates a new StateService. queue and hub may be nil.
func NewStateService(store database.Store, queue messagequeue.Queue, hub *ws.Hub) *StateService {
	return &StateService{store: store, queue: queue, hub: hub}
}

// Get returns the application state.
func (s *StateService) Get(ctx context.Context) (*domain.AppState, error) {
	return s.store.GetAppState(ctx)
}

// Current returns the currently selected project, or ErrNotFound when
// no project is selected.
func (s *StateService) Current(ctx context.Context) (*project.Project, error) {
	state, err := s.store.GetAppState(ctx)
	if err != nil {
		return nil, err
	}
	if state.CurrentProjectID == "" {
		return nil, fmt.Errorf("no current project: %w", domain.ErrNotFound)
	}
	return s.store.GetProject(ctx, state.CurrentProjectID)
}

// Switch selects a project as current. An empty id clears the
// selection.
func (s *StateService) Switch(ctx context.Context, id string) error {
	var p *project.Project
	if id != "" {
		var err error
		p, err = s.store.GetProject(ctx, id)
		if err != nil {
			return err
		}
	}
	if err := s.store.SetCurrentProject(ctx, id); err != nil {
		return err
	}

	payload := messagequeue.ProjectEventPayload{ProjectID: id}
	if p != nil {
		payload.Name = p.Name
	}
	if s.queue != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectProjectSwitched, data); err != nil {
				slog.Error("publish project switch failed", "project_id", id, "error", err)
			}
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventProjectSwitched, ws.ProjectEvent(payload))
	}
	return nil
}

// SetTheme stores the UI theme and broadcasts the change.
func (s *StateService) SetTheme(ctx context.Context, theme string) error {
	if !domain.ValidTheme(theme) {
		return domain.Validationf("invalid theme %q", theme)
	}
	if err := s.store.SetTheme(ctx, theme); err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventThemeChanged, ws.ThemeEvent{Theme: theme})
	}
	return nil
}
