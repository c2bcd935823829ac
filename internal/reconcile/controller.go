// Package reconcile applies board intents locally and reconciles them with
// the remote todo API.
//
// Local mutations happen synchronously, in event order, under a single lock.
// Every gateway call runs in its own goroutine and applies its outcome when
// it completes; calls are neither serialized per todo nor cancelled, so two
// calls touching the same todo may finish in either order and the last
// response processed wins. Create, edit and delete are client-authoritative:
// a failed call only produces a warning. Persisting a drag is
// server-authoritative: a failed call reloads the whole board.
package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/kanban/internal/gateway"
	"github.com/idilsaglam/kanban/internal/gesture"
	"github.com/idilsaglam/kanban/internal/model"
	"github.com/idilsaglam/kanban/internal/notify"
	"github.com/idilsaglam/kanban/internal/store/board"
)

// localIDBase is above every id the remote API hands out in practice.
const localIDBase = 200

type Options struct {
	// OwnerID is stamped on todos created from this board.
	OwnerID int
	Sink    notify.Sink
	Logger  log.FieldLogger
}

// Snapshot is a read-only copy of the board for rendering.
type Snapshot struct {
	Lanes []model.Lane
	// Loading is true while a fetch is in flight.
	Loading bool
	// Loaded is true once a fetch succeeded or the seed board was installed.
	Loaded bool
	// LoadErr is the error of the most recent fetch, cleared by a success.
	LoadErr error
	// Dragging is the id of the todo being dragged, if any.
	Dragging   string
	DragOrigin model.Status
}

// Controller exclusively owns the board and the gesture engine.
type Controller struct {
	gw      gateway.Gateway
	sink    notify.Sink
	logger  log.FieldLogger
	ownerID int
	ctx     context.Context

	mu          sync.Mutex
	board       *board.Board
	engine      *gesture.Engine
	loaded      bool
	loading     int
	loadErr     error
	nextLocalID int

	wg      sync.WaitGroup
	changes chan struct{}
}

// New returns a controller with an empty board. ctx is handed to every
// gateway call.
func New(ctx context.Context, gw gateway.Gateway, opts Options) *Controller {
	if opts.Sink == nil {
		opts.Sink = notify.NewRecorder(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.OwnerID == 0 {
		opts.OwnerID = 1
	}
	b := board.New()
	return &Controller{
		gw:          gw,
		sink:        opts.Sink,
		logger:      opts.Logger,
		ownerID:     opts.OwnerID,
		ctx:         ctx,
		board:       b,
		engine:      gesture.New(b),
		nextLocalID: localIDBase,
		changes:     make(chan struct{}, 1),
	}
}

// Changes signals that the snapshot may have changed. Signals coalesce.
func (c *Controller) Changes() <-chan struct{} { return c.changes }

// Wait blocks until every gateway call started so far, and any call those
// started, has completed.
func (c *Controller) Wait() { c.wg.Wait() }

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Lanes:   c.board.Lanes(),
		Loading: c.loading > 0,
		Loaded:  c.loaded,
		LoadErr: c.loadErr,
	}
	if id, origin, ok := c.engine.Active(); ok {
		s.Dragging, s.DragOrigin = id, origin
	}
	return s
}

// LoadAll replaces the board with the remote todos.
func (c *Controller) LoadAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadAllLocked()
}

func (c *Controller) loadAllLocked() {
	c.loading++
	c.changed()
	c.spawn(func(ctx context.Context) {
		recs, err := c.gw.FetchAll(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.loading--
		defer c.changed()

		if err != nil {
			c.loadErr = err
			if !c.loaded {
				c.board.ReplaceAll(model.Seed())
				c.loaded = true
				c.logger.WithError(err).Warn("initial load failed, showing seed board")
			} else {
				c.logger.WithError(err).Warn("load failed, keeping current board")
			}
			c.notify(notify.Error, "Failed to load todos. Please try again later.")
			return
		}
		c.board.ReplaceAll(partition(recs))
		c.loaded = true
		c.loadErr = nil
		c.logger.WithField("count", len(recs)).Debug("board loaded")
	})
}

// partition assigns lanes to fetched records: completed records go to the
// completed lane, every record at fetch index i%3 == 1 goes in progress, the
// rest are pending.
func partition(recs []gateway.Record) []model.Todo {
	out := make([]model.Todo, 0, len(recs))
	for i, r := range recs {
		s := model.StatusPending
		switch {
		case r.Completed:
			s = model.StatusCompleted
		case i%3 == 1:
			s = model.StatusInProgress
		}
		out = append(out, r.AsTodo(s))
	}
	return out
}

// Add creates a pending todo. The todo always lands on the board: when the
// API fails it gets a locally generated id.
func (c *Controller) Add(title, description string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.ErrEmptyTitle
	}
	draft := model.Todo{
		Title:       title,
		Description: strings.TrimSpace(description),
		OwnerID:     c.ownerID,
	}.WithStatus(model.StatusPending)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.WithField("title", title).Debug("add requested")
	c.spawn(func(ctx context.Context) {
		rec, err := c.gw.Create(ctx, draft)

		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.changed()

		t := draft
		switch {
		case err != nil:
			t.ID = c.localID()
			c.logger.WithError(err).WithField("id", t.ID).Warn("create failed, keeping todo locally")
			c.notify(notify.Warning, fmt.Sprintf("Could not reach the server; %q was added locally.", title))
		default:
			t = mergeCreated(draft, rec)
			if _, taken := c.board.Find(t.ID); taken {
				c.logger.WithField("id", t.ID).Warn("server returned an id already on the board")
				t.ID = c.localID()
			}
			c.notify(notify.Success, "Todo added successfully!")
		}
		c.board.Upsert(t)
	})
	return nil
}

// mergeCreated takes the id from the created record and forces the todo
// into the pending lane whatever the record says.
func mergeCreated(draft model.Todo, rec gateway.Record) model.Todo {
	t := draft
	t.ID = string(rec.ID)
	if text := rec.Text(); text != "" {
		t.Title = text
	}
	if rec.Description != "" {
		t.Description = rec.Description
	}
	if rec.UserID != 0 {
		t.OwnerID = rec.UserID
	}
	return t.WithStatus(model.StatusPending)
}

// localID must be called with c.mu held.
func (c *Controller) localID() string {
	for {
		c.nextLocalID++
		id := strconv.Itoa(c.nextLocalID)
		if _, taken := c.board.Find(id); !taken {
			return id
		}
	}
}

// Edit replaces title and description at once and keeps the edit even if
// the API rejects it.
func (c *Controller) Edit(id, title, description string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.ErrEmptyTitle
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.board.Find(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, board.ErrNotFound)
	}
	t.Title = title
	t.Description = strings.TrimSpace(description)
	c.board.Upsert(t)
	c.changed()

	c.spawn(func(ctx context.Context) {
		rec, err := c.gw.Update(ctx, t)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.logger.WithError(err).WithField("id", id).Warn("update failed, keeping local edit")
			c.notify(notify.Warning, fmt.Sprintf("Could not save %q to the server; the change is kept locally.", title))
			return
		}
		if cur, ok := c.board.Find(id); ok {
			if text := rec.Text(); text != "" {
				cur.Title = text
			}
			if rec.Description != "" {
				cur.Description = rec.Description
			}
			c.board.Upsert(cur)
			c.changed()
		}
		c.notify(notify.Success, "Todo updated successfully!")
	})
	return nil
}

// Delete removes the todo at once; an API failure only warns.
func (c *Controller) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.board.Remove(id) {
		return fmt.Errorf("delete %s: %w", id, board.ErrNotFound)
	}
	c.changed()

	c.spawn(func(ctx context.Context) {
		err := c.gw.Delete(ctx, id)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.logger.WithError(err).WithField("id", id).Warn("delete failed on server")
			c.notify(notify.Warning, "Could not delete the todo on the server; it was removed locally.")
			return
		}
		c.notify(notify.Success, "Todo deleted successfully!")
	})
	return nil
}

// DragStart begins a gesture. It fails while another gesture is in flight.
func (c *Controller) DragStart(todoID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.engine.Start(todoID); err != nil {
		return err
	}
	c.changed()
	return nil
}

// DragOver reports whether the hover moved the dragged todo to another lane.
func (c *Controller) DragOver(targetID string, kind gesture.TargetKind) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	moved, err := c.engine.Over(targetID, kind)
	if moved {
		c.logger.WithFields(log.Fields{"target": targetID, "kind": kind}).Debug("live move")
		c.changed()
	}
	return moved, err
}

// DragEnd finishes the gesture and persists the dragged todo if the gesture
// resolved a destination.
func (c *Controller) DragEnd() (model.Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.engine.End()
	c.changed()
	if ok {
		c.persistMoveLocked(t)
	}
	return t, ok
}

// DragCancel abandons the gesture and puts the todo back where it started.
func (c *Controller) DragCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.Cancel()
	c.changed()
}

// PersistMove saves a moved todo. On failure the board is reloaded from the
// API, discarding local moves.
func (c *Controller) PersistMove(t model.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistMoveLocked(t)
}

func (c *Controller) persistMoveLocked(t model.Todo) {
	c.spawn(func(ctx context.Context) {
		_, err := c.gw.Update(ctx, t)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.logger.WithError(err).WithFields(log.Fields{"id": t.ID, "status": t.Status}).Warn("move not saved, resyncing")
			c.notify(notify.Error, "Failed to update todo status. Reloading the board.")
			c.loadAllLocked()
			return
		}
		c.notify(notify.Success, "Todo status updated!")
	})
}

func (c *Controller) spawn(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

// notify must be called with c.mu held.
func (c *Controller) notify(level notify.Level, msg string) {
	c.sink.Notify(notify.Notification{Level: level, Message: msg, At: time.Now()})
}

func (c *Controller) changed() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}
