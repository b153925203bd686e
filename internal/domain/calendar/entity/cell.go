package entity

import "time"

// ViewMode is the calendar layout a grid is built for
type ViewMode string

const (
	ViewMonth ViewMode = "month"
	ViewWeek  ViewMode = "week"
	ViewDay   ViewMode = "day"
)

// ParseViewMode parses a view mode, defaulting to month when empty
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "":
		return ViewMonth, nil
	case ViewMonth, ViewWeek, ViewDay:
		return ViewMode(s), nil
	default:
		return "", ErrInvalidViewMode
	}
}

// Cell is a single day of a calendar grid
type Cell struct {
	Date            time.Time `json:"-"`
	Key             string    `json:"date"` // YYYY-MM-DD
	IsCurrentPeriod bool      `json:"is_current_period"`
	IsToday         bool      `json:"is_today"`
	Posts           []Post    `json:"posts"`
}

// DateRange is an inclusive range of civil dates
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DroppedPost reports a post that could not be placed because its dates are malformed
type DroppedPost struct {
	ID     PostID `json:"id"`
	Reason string `json:"reason"`
}
