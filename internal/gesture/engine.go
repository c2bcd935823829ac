// Package gesture tracks a single drag gesture and moves the dragged todo
// between lanes while it hovers.
package gesture

import (
	"errors"
	"fmt"

	"github.com/idilsaglam/kanban/internal/model"
)

var (
	ErrGestureInFlight = errors.New("a drag is already in progress")
	ErrUnknownTodo     = errors.New("drag source is not on the board")
)

// TargetKind says what a drag is hovering over.
type TargetKind int

const (
	TargetTodo TargetKind = iota
	TargetLane
)

func (k TargetKind) String() string {
	if k == TargetLane {
		return "lane"
	}
	return "todo"
}

// Board is the part of the store the engine needs.
type Board interface {
	LaneOf(id string) (model.Status, bool)
	MoveTodo(id string, from, to model.Status) (model.Todo, error)
	Find(id string) (model.Todo, bool)
}

type state int

const (
	idle state = iota
	dragging
)

// Engine is the Idle/Dragging state machine. It is not safe for concurrent
// use; the owner serializes events.
type Engine struct {
	board Board

	state    state
	todoID   string
	origin   model.Status
	resolved bool
}

func New(b Board) *Engine {
	return &Engine{board: b}
}

// Start begins a gesture on todoID. A start while another gesture is in
// flight is rejected and leaves that gesture untouched.
func (e *Engine) Start(todoID string) error {
	if e.state == dragging {
		return ErrGestureInFlight
	}
	t, ok := e.board.Find(todoID)
	if !ok {
		return fmt.Errorf("start %s: %w", todoID, ErrUnknownTodo)
	}
	e.state = dragging
	e.todoID = todoID
	e.origin = t.Status
	e.resolved = false
	return nil
}

// Over handles a hover on a todo or a lane drop zone. It reports whether the
// dragged todo changed lane. Targets that do not resolve to a lane, and
// hovers outside a gesture, are ignored.
func (e *Engine) Over(targetID string, kind TargetKind) (bool, error) {
	if e.state != dragging {
		return false, nil
	}
	dest, ok := e.resolve(targetID, kind)
	if !ok {
		return false, nil
	}
	e.resolved = true

	cur, ok := e.board.LaneOf(e.todoID)
	if !ok {
		// Removed from under us, e.g. by a resync.
		return false, fmt.Errorf("over %s: %w", e.todoID, ErrUnknownTodo)
	}
	if cur == dest {
		return false, nil
	}
	if _, err := e.board.MoveTodo(e.todoID, cur, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) resolve(targetID string, kind TargetKind) (model.Status, bool) {
	switch kind {
	case TargetTodo:
		return e.board.LaneOf(targetID)
	case TargetLane:
		s := model.Status(targetID)
		return s, s.Valid()
	}
	return "", false
}

// End finishes the gesture. The final todo is returned for persistence only
// if some hover resolved to a lane; live moves are kept either way.
func (e *Engine) End() (model.Todo, bool) {
	if e.state != dragging {
		return model.Todo{}, false
	}
	resolved, id := e.resolved, e.todoID
	e.clear()
	if !resolved {
		return model.Todo{}, false
	}
	cur, ok := e.board.Find(id)
	if !ok {
		return model.Todo{}, false
	}
	return cur, true
}

// Cancel abandons the gesture without persisting and puts the todo back in
// the lane it started from.
func (e *Engine) Cancel() bool {
	if e.state != dragging {
		return false
	}
	id, origin := e.todoID, e.origin
	e.clear()
	cur, ok := e.board.LaneOf(id)
	if !ok || cur == origin {
		return false
	}
	_, err := e.board.MoveTodo(id, cur, origin)
	return err == nil
}

// Active reports the dragged todo and the lane it came from.
func (e *Engine) Active() (todoID string, origin model.Status, ok bool) {
	if e.state != dragging {
		return "", "", false
	}
	return e.todoID, e.origin, true
}

func (e *Engine) clear() {
	e.state = idle
	e.todoID = ""
	e.origin = ""
	e.resolved = false
}
