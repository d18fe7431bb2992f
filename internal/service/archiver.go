package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ruidmap/ruidmap/internal/adapter/otel"
	"github.com/ruidmap/ruidmap/internal/adapter/ws"
	"github.com/ruidmap/ruidmap/internal/config"
	"github.com/ruidmap/ruidmap/internal/port/cache"
	"github.com/ruidmap/ruidmap/internal/port/database"
	"github.com/ruidmap/ruidmap/internal/port/messagequeue"
)

// Archiver periodically removes stale done tasks from projects that
// opted into auto-archiving. A task is stale once its last update is
// older than the configured retention.
type Archiver struct {
	store     database.Store
	queue     messagequeue.Queue
	hub       *ws.Hub
	cache     cache.Cache
	metrics   *otel.Metrics
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// NewArchiver creates an Archiver from the archive config. queue, hub,
// cache, and metrics may be nil.
func NewArchiver(store database.Store, queue messagequeue.Queue, hub *ws.Hub, c cache.Cache, metrics *otel.Metrics, cfg config.Archive) *Archiver {
	return &Archiver{
		store:     store,
		queue:     queue,
		hub:       hub,
		cache:     c,
		metrics:   metrics,
		schedule:  cfg.Schedule,
		retention: cfg.Retention,
		now:       time.Now,
	}
}

// Start schedules the sweep and begins running it.
func (a *Archiver) Start(ctx context.Context) error {
	a.cron = cron.New()
	_, err := a.cron.AddFunc(a.schedule, func() {
		if _, err := a.Sweep(ctx); err != nil {
			slog.Error("archive sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	a.cron.Start()
	slog.Info("archiver started", "schedule", a.schedule, "retention", a.retention)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (a *Archiver) Stop() {
	if a.cron == nil {
		return
	}
	<-a.cron.Stop().Done()
}

// Sweep runs one archive pass over every project with auto-archive
// enabled and returns the total number of tasks removed.
func (a *Archiver) Sweep(ctx context.Context) (int, error) {
	ctx, span := otel.StartArchiveSpan(ctx)
	defer span.End()

	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := a.now().Add(-a.retention)
	total := 0
	for i := range projects {
		p := &projects[i]
		if !p.Settings.AutoArchiveDone {
			continue
		}
		n, err := a.store.DeleteDoneTasksBefore(ctx, p.ID, cutoff)
		if err != nil {
			slog.Error("archive sweep project failed", "project_id", p.ID, "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		total += n
		slog.Info("archived done tasks", "project_id", p.ID, "archived", n)
		a.invalidate(ctx, p.ID)
		a.notify(ctx, p.ID, n)
		if a.metrics != nil {
			a.metrics.TasksArchived.Add(ctx, int64(n))
		}
	}
	return total, nil
}

func (a *Archiver) invalidate(ctx context.Context, projectID string) {
	if a.cache == nil {
		return
	}
	_ = a.cache.Delete(ctx, "tasks:list:"+projectID)
	_ = a.cache.Delete(ctx, "tasks:list:")
	_ = a.cache.Delete(ctx, "projects:list")
}

func (a *Archiver) notify(ctx context.Context, projectID string, archived int) {
	payload := messagequeue.TasksArchivedPayload{ProjectID: projectID, Archived: archived}
	if a.queue != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			if err := a.queue.Publish(ctx, messagequeue.SubjectTasksArchived, data); err != nil {
				slog.Error("publish archive event failed", "project_id", projectID, "error", err)
			}
		}
	}
	if a.hub != nil {
		a.hub.BroadcastEvent(ctx, ws.EventTasksArchived, ws.TasksArchivedEvent(payload))
	}
}
