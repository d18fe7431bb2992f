package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Health)

	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"2.0"}`))
		})

		// Projects
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/current", h.GetCurrentProject)
		r.Get("/projects/{id}", handleGet(h.Projects.Get, "project not found"))
		r.Put("/projects/{id}", handleUpdate(defaultBodyLimit, h.Projects.Update, "project not found"))
		r.Delete("/projects/{id}", handleDelete(h.Projects.Delete, "project not found"))
		r.Post("/projects/{id}/switch", h.SwitchProject)
		r.Get("/projects/{id}/stats", h.ProjectStats)

		// Tasks (nested under projects)
		r.Get("/projects/{id}/tasks", h.ListTasks)
		r.Post("/projects/{id}/tasks", h.CreateTask)
		r.Get("/projects/{id}/tags", h.ListTags)

		// Tasks (direct access)
		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/stats", h.TaskStats)
		r.Get("/tasks/tags", h.ListTags)
		r.Get("/tasks/overdue", h.ListOverdueTasks)
		r.Get("/tasks/{id}", handleGet(h.Tasks.Get, "task not found"))
		r.Put("/tasks/{id}", handleUpdate(defaultBodyLimit, h.Tasks.Update, "task not found"))
		r.Delete("/tasks/{id}", handleDelete(h.Tasks.Delete, "task not found"))
		r.Post("/tasks/{id}/toggle", handleAction(h.Tasks.Toggle, "task not found"))

		// Tags on a task
		r.Post("/tasks/{id}/tags", h.AddTaskTag)
		r.Delete("/tasks/{id}/tags/{tag}", h.RemoveTaskTag)

		// Subtasks
		r.Post("/tasks/{id}/subtasks", h.AddSubtask)
		r.Post("/tasks/{id}/subtasks/{subtaskId}/toggle", h.ToggleSubtask)
		r.Delete("/tasks/{id}/subtasks/{subtaskId}", handleChildDelete("subtaskId", h.Tasks.DeleteSubtask, "subtask not found"))

		// Comments
		r.Post("/tasks/{id}/comments", h.AddComment)
		r.Delete("/tasks/{id}/comments/{commentId}", handleChildDelete("commentId", h.Tasks.DeleteComment, "comment not found"))

		// Attachments
		r.Post("/tasks/{id}/attachments", h.AddAttachment)
		r.Delete("/tasks/{id}/attachments/{attachmentId}", handleChildDelete("attachmentId", h.Tasks.DeleteAttachment, "attachment not found"))

		// Time tracking
		r.Post("/tasks/{id}/time", h.AddTaskTime)
		r.Delete("/tasks/{id}/time", handleAction(h.Tasks.ResetTime, "task not found"))
		r.Put("/tasks/{id}/estimate", h.SetTaskEstimate)

		// App state
		r.Get("/state", h.GetState)
		r.Put("/state/theme", h.SetTheme)

		// Export / import
		r.Get("/export", h.ExportData)
		r.Post("/import", h.ImportData)
		r.Post("/import/legacy", h.ImportLegacyData)
		r.Post("/import/validate", h.ValidateImport)
	})
}
