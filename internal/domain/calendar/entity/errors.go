package entity

import "errors"

// Domain errors for the calendar
var (
	ErrInvalidViewMode      = errors.New("invalid view mode, use month, week or day")
	ErrInvalidReferenceDate = errors.New("invalid reference date, use YYYY-MM-DD")
	ErrInvalidPostDate      = errors.New("post has no parseable scheduled_at or created_at")
	ErrInvalidPostStatus    = errors.New("invalid post status")
)
