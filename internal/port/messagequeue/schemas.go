package messagequeue

// TaskEventPayload is the schema for tasks.created, tasks.updated, and
// tasks.deleted messages.
type TaskEventPayload struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

// ProjectEventPayload is the schema for projects.created, projects.updated,
// projects.deleted, and projects.switched messages.
type ProjectEventPayload struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// DataImportedPayload is the schema for data.imported messages.
type DataImportedPayload struct {
	Mode     string `json:"mode"`
	Projects int    `json:"projects"`
	Tasks    int    `json:"tasks"`
}

// TasksArchivedPayload is the schema for tasks.archived messages.
type TasksArchivedPayload struct {
	ProjectID string `json:"project_id"`
	Archived  int    `json:"archived"`
}
