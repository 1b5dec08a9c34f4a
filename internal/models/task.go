package models

import (
	"time"
	"unicode/utf8"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// DescriptionLimit is the maximum stored description length, in characters.
const DescriptionLimit = 500

// DateLayout is the accepted format for start and due dates.
const DateLayout = "2006-01-02"

var TaskStatuses = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          int64
	Username    string
	StartDate   string
	DueDate     string
	Title       string
	Description string
	Status      TaskStatus
	CreatedAt   time.Time
}

// StatusCounts holds the number of a user's tasks per status.
type StatusCounts struct {
	Pending    int
	InProgress int
	Completed  int
}

// TruncateDescription cuts s to DescriptionLimit characters and reports
// whether anything was removed.
func TruncateDescription(s string) (string, bool) {
	if utf8.RuneCountInString(s) <= DescriptionLimit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:DescriptionLimit]), true
}

// ValidDateRange parses both dates and reports whether due is on or after start.
func ValidDateRange(start, due string) (bool, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return false, err
	}
	d, err := time.Parse(DateLayout, due)
	if err != nil {
		return false, err
	}
	return !d.Before(s), nil
}
