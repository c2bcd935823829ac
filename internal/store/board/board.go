// Package board holds the in-memory board: every todo partitioned into one
// of three lanes by status.
package board

import (
	"errors"
	"fmt"

	"github.com/idilsaglam/kanban/internal/model"
)

var (
	ErrNotFound    = errors.New("todo not found")
	ErrUnknownLane = errors.New("unknown lane")
)

// Board is not safe for concurrent use. Callers serialize access.
type Board struct {
	lanes map[model.Status][]model.Todo
}

func New() *Board {
	b := &Board{}
	b.reset()
	return b
}

func (b *Board) reset() {
	b.lanes = make(map[model.Status][]model.Todo, 3)
	for _, s := range model.Statuses() {
		b.lanes[s] = nil
	}
}

// AllTodos returns every todo, lane by lane in board order.
func (b *Board) AllTodos() []model.Todo {
	out := make([]model.Todo, 0, b.Len())
	for _, s := range model.Statuses() {
		out = append(out, b.lanes[s]...)
	}
	return out
}

func (b *Board) Len() int {
	n := 0
	for _, s := range model.Statuses() {
		n += len(b.lanes[s])
	}
	return n
}

// ReplaceAll rebuilds the lanes from todos, partitioning on Status.
// Completed is re-derived from Status and the first occurrence of an id wins.
func (b *Board) ReplaceAll(todos []model.Todo) {
	b.reset()
	seen := make(map[string]bool, len(todos))
	for _, t := range todos {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		t = normalize(t)
		b.lanes[t.Status] = append(b.lanes[t.Status], t)
	}
}

// MoveTodo takes id out of lane from and appends it to lane to. A todo that
// is not in from is left untouched and ErrNotFound is returned.
func (b *Board) MoveTodo(id string, from, to model.Status) (model.Todo, error) {
	if !from.Valid() || !to.Valid() {
		return model.Todo{}, fmt.Errorf("move %s: %w", id, ErrUnknownLane)
	}
	idx := indexOf(b.lanes[from], id)
	if idx < 0 {
		return model.Todo{}, fmt.Errorf("move %s from %s: %w", id, from, ErrNotFound)
	}
	if from == to {
		return b.lanes[from][idx], nil
	}
	t := b.lanes[from][idx].WithStatus(to)
	b.lanes[from] = removeAt(b.lanes[from], idx)
	b.lanes[to] = append(b.lanes[to], t)
	return t, nil
}

// Upsert inserts or replaces a todo. A replacement that stays in its lane
// keeps its position; one that changes lane goes to the end of the new lane.
func (b *Board) Upsert(t model.Todo) {
	t = normalize(t)
	if cur, ok := b.LaneOf(t.ID); ok {
		idx := indexOf(b.lanes[cur], t.ID)
		if cur == t.Status {
			b.lanes[cur][idx] = t
			return
		}
		b.lanes[cur] = removeAt(b.lanes[cur], idx)
	}
	b.lanes[t.Status] = append(b.lanes[t.Status], t)
}

// Remove deletes id from whichever lane holds it.
func (b *Board) Remove(id string) bool {
	s, ok := b.LaneOf(id)
	if !ok {
		return false
	}
	b.lanes[s] = removeAt(b.lanes[s], indexOf(b.lanes[s], id))
	return true
}

func (b *Board) Find(id string) (model.Todo, bool) {
	s, ok := b.LaneOf(id)
	if !ok {
		return model.Todo{}, false
	}
	return b.lanes[s][indexOf(b.lanes[s], id)], true
}

// LaneOf reports the lane currently holding id.
func (b *Board) LaneOf(id string) (model.Status, bool) {
	for _, s := range model.Statuses() {
		if indexOf(b.lanes[s], id) >= 0 {
			return s, true
		}
	}
	return "", false
}

// Lanes returns a copy of the board safe to hand to renderers.
func (b *Board) Lanes() []model.Lane {
	out := make([]model.Lane, 0, 3)
	for _, s := range model.Statuses() {
		todos := make([]model.Todo, len(b.lanes[s]))
		copy(todos, b.lanes[s])
		out = append(out, model.Lane{ID: s, Title: s.Title(), Todos: todos})
	}
	return out
}

func normalize(t model.Todo) model.Todo {
	s := t.Status
	if !s.Valid() {
		s = model.StatusPending
		if t.Completed {
			s = model.StatusCompleted
		}
	}
	return t.WithStatus(s)
}

func indexOf(todos []model.Todo, id string) int {
	for i := range todos {
		if todos[i].ID == id {
			return i
		}
	}
	return -1
}

func removeAt(todos []model.Todo, i int) []model.Todo {
	out := make([]model.Todo, 0, len(todos)-1)
	out = append(out, todos[:i]...)
	return append(out, todos[i+1:]...)
}
