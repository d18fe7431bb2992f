package domain

import "time"

// Theme names accepted by the app state endpoints.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// ValidTheme reports whether s is a recognized theme name.
func ValidTheme(s string) bool {
	return s == ThemeLight || s == ThemeDark || s == ThemeSystem
}

// AppState is the single-row application state shared by every client:
// which project is selected and which theme the UI renders with.
type AppState struct {
	CurrentProjectID string    `json:"current_project_id,omitempty"`
	Theme            string    `json:"theme"`
	UpdatedAt        time.Time `json:"updated_at"`
}
