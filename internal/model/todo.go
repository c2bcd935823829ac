package model

import (
	"errors"
	"fmt"
	"strings"
)

// Status names the lane a todo belongs to.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "inProgress"
	StatusCompleted  Status = "completed"
)

// Statuses returns every lane id in board order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// Valid reports whether s is one of the three lane ids.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Title is the human-readable lane heading.
func (s Status) Title() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

// ParseStatus resolves a lane id. The exact ids are accepted along with a
// few spellings that are convenient on the command line.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "todo":
		return StatusPending, true
	case "inprogress", "in-progress", "in_progress", "progress", "doing":
		return StatusInProgress, true
	case "completed", "done":
		return StatusCompleted, true
	}
	return "", false
}

// Todo is the domain model for a card on the board.
type Todo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Status      Status `json:"status"`
	OwnerID     int    `json:"userId"`
}

var ErrEmptyTitle = errors.New("title must not be empty")

// WithStatus returns a copy of t placed in lane s. Completed always follows
// the lane, so the two fields never disagree.
func (t Todo) WithStatus(s Status) Todo {
	t.Status = s
	t.Completed = s == StatusCompleted
	return t
}

// Consistent reports whether Completed agrees with Status.
func (t Todo) Consistent() bool {
	return t.Completed == (t.Status == StatusCompleted)
}

func (t Todo) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	return nil
}

// Lane is one column of the board.
type Lane struct {
	ID    Status `json:"id"`
	Title string `json:"title"`
	Todos []Todo `json:"todos"`
}
