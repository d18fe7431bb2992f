package http

import (
	"net/http"

	"github.com/ruidmap/ruidmap/internal/adapter/ws"
	"github.com/ruidmap/ruidmap/internal/domain/project"
	"github.com/ruidmap/ruidmap/internal/domain/task"
	"github.com/ruidmap/ruidmap/internal/domain/transfer"
	"github.com/ruidmap/ruidmap/internal/port/messagequeue"
	"github.com/ruidmap/ruidmap/internal/service"
)

// Request body limits.
const (
	defaultBodyLimit = 1 << 20  // 1 MiB for regular payloads
	importBodyLimit  = 64 << 20 // 64 MiB for full-database imports
)

// Handlers bundles the services exposed over HTTP.
type Handlers struct {
	Tasks    *service.TaskService
	Projects *service.ProjectService
	State    *service.StateService
	Transfer *service.TransferService
	Hub      *ws.Hub
	Queue    messagequeue.Queue
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Projects.List(r.Context(), parseSpec(r))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if projects == nil {
		projects = []project.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[project.CreateRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	p, err := h.Projects.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) GetCurrentProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.State.Current(r.Context())
	if err != nil {
		writeDomainError(w, err, "no current project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) SwitchProject(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.State.Switch(r.Context(), id); err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ProjectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Projects.Stats(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// ListTasks serves both the global and the project-scoped task list.
// The project comes from the URL parameter when nested, otherwise from
// the project_id query parameter.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "id")
	if projectID == "" {
		projectID = r.URL.Query().Get("project_id")
	}
	tasks, err := h.Tasks.List(r.Context(), projectID, parseSpec(r))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	if id := urlParam(r, "id"); id != "" {
		req.ProjectID = id
	}
	t, err := h.Tasks.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) TaskStats(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "id")
	if projectID == "" {
		projectID = r.URL.Query().Get("project_id")
	}
	stats, err := h.Tasks.Stats(r.Context(), projectID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "id")
	if projectID == "" {
		projectID = r.URL.Query().Get("project_id")
	}
	tags, err := h.Tasks.AllTags(r.Context(), projectID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *Handlers) ListOverdueTasks(w http.ResponseWriter, r *http.Request) {
	projectID := urlParam(r, "id")
	if projectID == "" {
		projectID = r.URL.Query().Get("project_id")
	}
	tasks, err := h.Tasks.Overdue(r.Context(), projectID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type tagRequest struct {
	Tag string `json:"tag"`
}

func (h *Handlers) AddTaskTag(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tagRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	t, err := h.Tasks.AddTag(r.Context(), urlParam(r, "id"), req.Tag)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) RemoveTaskTag(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.RemoveTag(r.Context(), urlParam(r, "id"), urlParam(r, "tag"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type subtaskRequest struct {
	Title string `json:"title"`
}

func (h *Handlers) AddSubtask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[subtaskRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	t, err := h.Tasks.AddSubtask(r.Context(), urlParam(r, "id"), req.Title)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.ToggleSubtask(r.Context(), urlParam(r, "id"), urlParam(r, "subtaskId"))
	if err != nil {
		writeDomainError(w, err, "subtask not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type commentRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[commentRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	t, err := h.Tasks.AddComment(r.Context(), urlParam(r, "id"), req.Text, req.Author)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) AddAttachment(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.Attachment](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	t, err := h.Tasks.AddAttachment(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type timeRequest struct {
	Minutes int `json:"minutes"`
}

func (h *Handlers) AddTaskTime(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[timeRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	t, err := h.Tasks.AddTime(r.Context(), urlParam(r, "id"), req.Minutes)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type estimateRequest struct {
	Minutes *int `json:"minutes"`
}

func (h *Handlers) SetTaskEstimate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[estimateRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	t, err := h.Tasks.SetEstimate(r.Context(), urlParam(r, "id"), req.Minutes)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ---------------------------------------------------------------------------
// App state
// ---------------------------------------------------------------------------

func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.State.Get(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (h *Handlers) SetTheme(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[themeRequest](w, r, defaultBodyLimit)
	if !ok {
		return
	}
	if err := h.State.SetTheme(r.Context(), req.Theme); err != nil {
		writeDomainError(w, err, "state not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Export / import
// ---------------------------------------------------------------------------

func (h *Handlers) ExportData(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Transfer.Export(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="ruidmap-export.json"`)
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handlers) ImportData(w http.ResponseWriter, r *http.Request) {
	doc, ok := readJSON[transfer.Document](w, r, importBodyLimit)
	if !ok {
		return
	}
	mode := transfer.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = transfer.ModeMerge
	}
	res, err := h.Transfer.Import(r.Context(), doc, mode)
	if err != nil {
		if res != nil && len(res.Issues) > 0 {
			writeJSON(w, http.StatusBadRequest, res)
			return
		}
		writeDomainError(w, err, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) ImportLegacyData(w http.ResponseWriter, r *http.Request) {
	doc, ok := readJSON[transfer.LegacyDocument](w, r, importBodyLimit)
	if !ok {
		return
	}
	res, err := h.Transfer.ImportLegacy(r.Context(), doc)
	if err != nil {
		if res != nil && len(res.Issues) > 0 {
			writeJSON(w, http.StatusBadRequest, res)
			return
		}
		writeDomainError(w, err, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) ValidateImport(w http.ResponseWriter, r *http.Request) {
	doc, ok := readJSON[transfer.Document](w, r, importBodyLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Transfer.Validate(doc))
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

type healthResponse struct {
	Status      string `json:"status"`
	NATS        bool   `json:"nats"`
	Connections int    `json:"ws_connections"`
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	res := healthResponse{Status: "ok"}
	if h.Queue != nil {
		res.NATS = h.Queue.IsConnected()
	}
	if h.Hub != nil {
		res.Connections = h.Hub.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, res)
}
