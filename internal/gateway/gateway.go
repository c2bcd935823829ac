// Package gateway talks to the remote todo API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/idilsaglam/kanban/internal/model"
)

// Gateway is the remote store the board reconciles against.
type Gateway interface {
	FetchAll(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, t model.Todo) (Record, error)
	Update(ctx context.Context, t model.Todo) (Record, error)
	Delete(ctx context.Context, id string) error
}

// NetworkError is the only failure the gateway reports: the request did not
// reach the API, or the API answered with a non-success status.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// ID is a record id. The API may send it as a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*id = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := sonic.ConfigStd.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
	default:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("decode id %s: %w", raw, err)
		}
		*id = ID(raw)
	}
	return nil
}

// MarshalJSON writes canonical integer ids as numbers, everything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return sonic.ConfigStd.Marshal(string(id))
}

// Record is a todo as the API stores it. dummyjson names the text field
// "todo"; other backends use "title". Both are sent, either is accepted.
type Record struct {
	ID          ID     `json:"id,omitempty"`
	Label       string `json:"todo,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	UserID      int    `json:"userId"`
}

func (r Record) Text() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Label
}

// AsTodo converts the record into a board todo placed in lane s.
func (r Record) AsTodo(s model.Status) model.Todo {
	return model.Todo{
		ID:          string(r.ID),
		Title:       r.Text(),
		Description: r.Description,
		OwnerID:     r.UserID,
	}.WithStatus(s)
}

// FromTodo builds the request payload for t.
func FromTodo(t model.Todo) Record {
	return Record{
		ID:          ID(t.ID),
		Label:       t.Title,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		UserID:      t.OwnerID,
	}
}

// ListResponse is the paginated envelope of GET /todos.
type ListResponse struct {
	Todos []Record `json:"todos"`
	Total int      `json:"total"`
	Skip  int      `json:"skip"`
	Limit int      `json:"limit"`
}
