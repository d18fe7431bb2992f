// Package query implements the client-side filter/sort engine shared by
// every surface that renders a task or project list. Apply is a pure
// function: it never mutates its inputs and the same inputs always produce
// the same output order.
package query

import (
	"slices"
	"strings"
	"time"

	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/task"
)

// All disables an equality filter.
const All = "all"

// SortKey selects the comparator used for ordering.
type SortKey string

const (
	SortCreated  SortKey = "created"
	SortUpdated  SortKey = "updated"
	SortTitle    SortKey = "title"
	SortPriority SortKey = "priority"
	SortDueDate  SortKey = "due-date"
)

// SortOrder selects the sort direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Spec is the filter/sort specification supplied by a UI surface for a
// single query. The zero value is a no-op: all filters inactive, default
// ordering (created, descending).
type Spec struct {
	Search   string    `json:"search"`
	Status   string    `json:"status"`   // one task.Status, "" or "all"
	Priority string    `json:"priority"` // one task.Priority, "" or "all"
	Tag      string    `json:"tag"`      // one tag, "" or "all"
	Due      DueBucket `json:"due"`      // one bucket, "" or "all"
	SortBy   SortKey   `json:"sort_by"`
	Order    SortOrder `json:"order"`
}

func (s Spec) sortKey() SortKey {
	if s.SortBy == "" {
		return SortCreated
	}
	return s.SortBy
}

func (s Spec) descending() bool {
	// Descending is the default: boards show newest first.
	return s.Order != OrderAsc
}

func active(filter string) bool {
	return filter != "" && filter != All
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

// ApplyTasks returns the tasks matching spec, ordered by its sort key.
// Due-date buckets are evaluated relative to time.Now.
func ApplyTasks(items []task.Task, spec Spec) []task.Task {
	return ApplyTasksAt(items, spec, time.Now())
}

// ApplyTasksAt is ApplyTasks with an explicit evaluation time for the
// due-date buckets. All predicates are AND-combined; the sort is stable, so
// records that compare equal keep their relative input order.
func ApplyTasksAt(items []task.Task, spec Spec, now time.Time) []task.Task {
	term := strings.ToLower(strings.TrimSpace(spec.Search))
	tag := task.NormalizeTag(spec.Tag)

	out := make([]task.Task, 0, len(items))
	for i := range items {
		t := &items[i]
		if term != "" && !taskMatchesSearch(t, term) {
			continue
		}
		if active(spec.Status) && string(t.Status) != spec.Status {
			continue
		}
		if active(spec.Priority) && string(t.Priority) != spec.Priority {
			continue
		}
		if active(spec.Tag) && !t.HasTag(tag) {
			continue
		}
		if active(string(spec.Due)) {
			if t.DueDate == nil || !spec.Due.Contains(*t.DueDate, now) {
				continue
			}
		}
		out = append(out, *t)
	}

	key := spec.sortKey()
	desc := spec.descending()
	slices.SortStableFunc(out, func(a, b task.Task) int {
		return compareTasks(&a, &b, key, desc)
	})
	return out
}

// taskMatchesSearch reports whether any searchable field of t contains term
// (already lowercased) as a substring.
func taskMatchesSearch(t *task.Task, term string) bool {
	if containsFold(t.Title, term) || containsFold(t.Description, term) {
		return true
	}
	for _, tg := range t.Tags {
		if containsFold(tg, term) {
			return true
		}
	}
	return false
}

// compareTasks orders a against b under the given key and direction.
// For the due-date key, tasks without a due date sort after dated ones
// regardless of direction; among themselves they compare equal, leaving the
// stable sort to preserve their input order.
func compareTasks(a, b *task.Task, key SortKey, desc bool) int {
	if key == SortDueDate {
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return directed(a.DueDate.Compare(*b.DueDate), desc)
	}

	var c int
	switch key {
	case SortTitle:
		c = strings.Compare(a.Title, b.Title)
	case SortPriority:
		c = a.Priority.Rank() - b.Priority.Rank()
	case SortUpdated:
		c = a.UpdatedAt.Compare(b.UpdatedAt)
	default: // SortCreated
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	return directed(c, desc)
}

func directed(c int, desc bool) int {
	if desc {
		return -c
	}
	return c
}

// ApplyProjects returns the projects matching spec, ordered by its sort
// key. Status, priority, tag, and due filters do not apply to projects and
// are ignored; the priority and due-date sort keys compare all projects
// equal, so the stable sort preserves input order under them.
func ApplyProjects(items []project.Project, spec Spec) []project.Project {
	term := strings.ToLower(strings.TrimSpace(spec.Search))

	out := make([]project.Project, 0, len(items))
	for i := range items {
		p := &items[i]
		if term != "" && !containsFold(p.Name, term) && !containsFold(p.Description, term) {
			continue
		}
		out = append(out, *p)
	}

	key := spec.sortKey()
	desc := spec.descending()
	slices.SortStableFunc(out, func(a, b project.Project) int {
		var c int
		switch key {
		case SortTitle:
			c = strings.Compare(a.Name, b.Name)
		case SortUpdated:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case SortPriority, SortDueDate:
			return 0
		default: // SortCreated
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		return directed(c, desc)
	})
	return out
}
