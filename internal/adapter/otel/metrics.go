package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "ruidmap"

// Metrics holds all ruidmap metric instruments.
type Metrics struct {
	TasksCreated   metric.Int64Counter
	TasksCompleted metric.Int64Counter
	TasksArchived  metric.Int64Counter
	ImportedTasks  metric.Int64Counter
	CacheHits      metric.Int64Counter
	CacheMisses    metric.Int64Counter
	QueryDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksCreated, err = meter.Int64Counter("ruidmap.tasks.created",
		metric.WithDescription("Number of tasks created"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("ruidmap.tasks.completed",
		metric.WithDescription("Number of tasks moved to done"))
	if err != nil {
		return nil, err
	}

	m.TasksArchived, err = meter.Int64Counter("ruidmap.tasks.archived",
		metric.WithDescription("Number of done tasks removed by auto-archive sweeps"))
	if err != nil {
		return nil, err
	}

	m.ImportedTasks, err = meter.Int64Counter("ruidmap.import.tasks",
		metric.WithDescription("Number of tasks loaded by imports"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("ruidmap.cache.hits",
		metric.WithDescription("Query cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("ruidmap.cache.misses",
		metric.WithDescription("Query cache misses"))
	if err != nil {
		return nil, err
	}

	m.QueryDuration, err = meter.Float64Histogram("ruidmap.query.duration_seconds",
		metric.WithDescription("Filtered task query duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
