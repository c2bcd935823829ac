package reconcile

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/idilsaglam/kanban/internal/gateway"
	"github.com/idilsaglam/kanban/internal/gesture"
	"github.com/idilsaglam/kanban/internal/model"
	"github.com/idilsaglam/kanban/internal/notify"
	"github.com/idilsaglam/kanban/internal/store/board"
)

var errDown = &gateway.NetworkError{Op: "test", Err: errors.New("connection refused")}

type stubGateway struct {
	fetchFn  func(ctx context.Context) ([]gateway.Record, error)
	createFn func(ctx context.Context, t model.Todo) (gateway.Record, error)
	updateFn func(ctx context.Context, t model.Todo) (gateway.Record, error)
	deleteFn func(ctx context.Context, id string) error

	mu      sync.Mutex
	fetches int
	creates []model.Todo
	updates []model.Todo
	deletes []string
}

func (s *stubGateway) FetchAll(ctx context.Context) ([]gateway.Record, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	if s.fetchFn == nil {
		return nil, errors.New("unexpected FetchAll call")
	}
	return s.fetchFn(ctx)
}

func (s *stubGateway) Create(ctx context.Context, t model.Todo) (gateway.Record, error) {
	s.mu.Lock()
	s.creates = append(s.creates, t)
	s.mu.Unlock()
	if s.createFn == nil {
		return gateway.Record{}, errors.New("unexpected Create call")
	}
	return s.createFn(ctx, t)
}

func (s *stubGateway) Update(ctx context.Context, t model.Todo) (gateway.Record, error) {
	s.mu.Lock()
	s.updates = append(s.updates, t)
	s.mu.Unlock()
	if s.updateFn == nil {
		return gateway.Record{}, errors.New("unexpected Update call")
	}
	return s.updateFn(ctx, t)
}

func (s *stubGateway) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, id)
	s.mu.Unlock()
	if s.deleteFn == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFn(ctx, id)
}

func (s *stubGateway) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *stubGateway) updateCalls() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Todo(nil), s.updates...)
}

func echoUpdate(_ context.Context, t model.Todo) (gateway.Record, error) {
	return gateway.FromTodo(t), nil
}

func fetchRecords(recs []gateway.Record) func(context.Context) ([]gateway.Record, error) {
	return func(context.Context) ([]gateway.Record, error) {
		return append([]gateway.Record(nil), recs...), nil
	}
}

func sampleRecords() []gateway.Record {
	return []gateway.Record{
		{ID: "1", Label: "zero", UserID: 7},
		{ID: "2", Label: "one", UserID: 7},
		{ID: "3", Label: "two", Completed: true, UserID: 7},
		{ID: "4", Label: "three", UserID: 7},
		{ID: "5", Label: "four", UserID: 7},
		{ID: "6", Label: "five", Completed: true, UserID: 7},
		{ID: "7", Label: "six", UserID: 7},
	}
}

func newController(t *testing.T, gw gateway.Gateway) (*Controller, *notify.Recorder) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	rec := notify.NewRecorder(0)
	c := New(context.Background(), gw, Options{Sink: rec, Logger: logger})
	return c, rec
}

func loaded(t *testing.T, gw *stubGateway) (*Controller, *notify.Recorder) {
	t.Helper()
	if gw.fetchFn == nil {
		gw.fetchFn = fetchRecords(sampleRecords())
	}
	c, rec := newController(t, gw)
	c.LoadAll()
	c.Wait()
	checkInvariants(t, c)
	return c, rec
}

// checkInvariants verifies that lanes partition the board by status and that
// completed agrees with the lane of every todo.
func checkInvariants(t *testing.T, c *Controller) {
	t.Helper()
	seen := map[string]bool{}
	for _, lane := range c.Snapshot().Lanes {
		for _, td := range lane.Todos {
			if seen[td.ID] {
				t.Fatalf("todo %s appears twice", td.ID)
			}
			seen[td.ID] = true
			if td.Status != lane.ID {
				t.Fatalf("todo %s with status %s sits in lane %s", td.ID, td.Status, lane.ID)
			}
			if td.Completed != (td.Status == model.StatusCompleted) {
				t.Fatalf("todo %s: completed=%v status=%s", td.ID, td.Completed, td.Status)
			}
		}
	}
}

func laneOf(t *testing.T, c *Controller, id string) model.Status {
	t.Helper()
	found := model.Status("")
	for _, lane := range c.Snapshot().Lanes {
		for _, td := range lane.Todos {
			if td.ID == id {
				if found != "" {
					t.Fatalf("todo %s in lanes %s and %s", id, found, lane.ID)
				}
				found = lane.ID
			}
		}
	}
	return found
}

func ids(lanes []model.Lane, s model.Status) []string {
	for _, lane := range lanes {
		if lane.ID == s {
			out := []string{}
			for _, td := range lane.Todos {
				out = append(out, td.ID)
			}
			return out
		}
	}
	return nil
}

func findTodo(c *Controller, id string) (model.Todo, bool) {
	for _, lane := range c.Snapshot().Lanes {
		for _, td := range lane.Todos {
			if td.ID == id {
				return td, true
			}
		}
	}
	return model.Todo{}, false
}

func TestLoadAllPartitionsByFetchOrder(t *testing.T) {
	c, _ := loaded(t, &stubGateway{})
	snap := c.Snapshot()

	if got := ids(snap.Lanes, model.StatusPending); !reflect.DeepEqual(got, []string{"1", "4", "7"}) {
		t.Fatalf("pending = %v", got)
	}
	if got := ids(snap.Lanes, model.StatusInProgress); !reflect.DeepEqual(got, []string{"2", "5"}) {
		t.Fatalf("in progress = %v", got)
	}
	if got := ids(snap.Lanes, model.StatusCompleted); !reflect.DeepEqual(got, []string{"3", "6"}) {
		t.Fatalf("completed = %v", got)
	}
	if !snap.Loaded || snap.Loading || snap.LoadErr != nil {
		t.Fatalf("unexpected load state: %+v", snap)
	}
	if td, _ := findTodo(c, "2"); td.Title != "one" || td.OwnerID != 7 {
		t.Fatalf("record not converted: %+v", td)
	}
}

func TestLoadAllFallsBackToSeed(t *testing.T) {
	gw := &stubGateway{fetchFn: func(context.Context) ([]gateway.Record, error) { return nil, errDown }}
	c, rec := newController(t, gw)
	c.LoadAll()
	c.Wait()

	snap := c.Snapshot()
	total := 0
	for _, lane := range snap.Lanes {
		total += len(lane.Todos)
	}
	if total != 7 {
		t.Fatalf("expected the 7 seed todos, got %d", total)
	}
	if !reflect.DeepEqual(ids(snap.Lanes, model.StatusInProgress), []string{"2", "6", "7"}) {
		t.Fatalf("seed lanes not preserved: %v", ids(snap.Lanes, model.StatusInProgress))
	}
	if snap.LoadErr == nil || !snap.Loaded {
		t.Fatalf("expected retryable load error with board shown: %+v", snap)
	}
	if rec.Count(notify.Error) != 1 {
		t.Fatalf("expected one error notification, got %+v", rec.All())
	}
	checkInvariants(t, c)
}

func TestLoadAllFailureKeepsPriorState(t *testing.T) {
	gw := &stubGateway{}
	c, _ := loaded(t, gw)
	before := c.Snapshot().Lanes

	gw.fetchFn = func(context.Context) ([]gateway.Record, error) { return nil, errDown }
	c.LoadAll()
	c.Wait()

	snap := c.Snapshot()
	if !reflect.DeepEqual(before, snap.Lanes) {
		t.Fatal("failed reload replaced the board")
	}
	if snap.LoadErr == nil {
		t.Fatal("expected load error")
	}

	gw.fetchFn = fetchRecords(sampleRecords()[:2])
	c.LoadAll()
	c.Wait()
	if snap := c.Snapshot(); snap.LoadErr != nil {
		t.Fatalf("successful retry should clear the error: %v", snap.LoadErr)
	}
}

func TestAddForcesPending(t *testing.T) {
	gw := &stubGateway{createFn: func(_ context.Context, t model.Todo) (gateway.Record, error) {
		return gateway.Record{ID: "255", Label: t.Title, Completed: true, UserID: 1}, nil
	}}
	c, rec := loaded(t, gw)

	if err := c.Add("  Buy milk ", "2 litres"); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.Wait()

	td, ok := findTodo(c, "255")
	if !ok {
		t.Fatal("created todo missing")
	}
	if td.Status != model.StatusPending || td.Completed || td.Title != "Buy milk" || td.Description != "2 litres" {
		t.Fatalf("unexpected todo: %+v", td)
	}
	if got := gw.creates[0]; got.Status != model.StatusPending || got.Completed || got.OwnerID != 1 {
		t.Fatalf("unexpected create payload: %+v", got)
	}
	if rec.Count(notify.Success) != 1 {
		t.Fatalf("expected success notification, got %+v", rec.All())
	}
	checkInvariants(t, c)
}

func TestAddFailureUsesLocalIDs(t *testing.T) {
	gw := &stubGateway{createFn: func(context.Context, model.Todo) (gateway.Record, error) {
		return gateway.Record{}, errDown
	}}
	gw.fetchFn = fetchRecords(append(sampleRecords(), gateway.Record{ID: "202", Label: "taken"}))
	c, rec := loaded(t, gw)

	if err := c.Add("Buy milk", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.Wait()
	if err := c.Add("Walk dog", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.Wait()

	first, ok := findTodo(c, "201")
	if !ok || first.Title != "Buy milk" || laneOf(t, c, "201") != model.StatusPending {
		t.Fatalf("first local todo wrong: %+v ok=%v", first, ok)
	}
	second, ok := findTodo(c, "203")
	if !ok || second.Title != "Walk dog" {
		t.Fatalf("local id should skip the taken 202: %+v ok=%v", second, ok)
	}
	if rec.Count(notify.Warning) != 2 {
		t.Fatalf("expected 2 warnings, got %+v", rec.All())
	}
	checkInvariants(t, c)
}

func TestAddRejectsEmptyTitle(t *testing.T) {
	gw := &stubGateway{}
	c, _ := loaded(t, gw)
	if err := c.Add("   ", "x"); !errors.Is(err, model.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	c.Wait()
	if len(gw.creates) != 0 {
		t.Fatal("gateway should not be called")
	}
}

func TestAddWithCollidingServerIDGetsLocalID(t *testing.T) {
	gw := &stubGateway{createFn: func(_ context.Context, t model.Todo) (gateway.Record, error) {
		return gateway.Record{ID: "3", Label: t.Title}, nil
	}}
	c, _ := loaded(t, gw)
	if err := c.Add("Dup", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.Wait()
	if td, _ := findTodo(c, "3"); td.Title != "two" {
		t.Fatalf("existing todo overwritten: %+v", td)
	}
	if td, ok := findTodo(c, "201"); !ok || td.Title != "Dup" {
		t.Fatalf("expected local id for colliding create: %+v", td)
	}
	checkInvariants(t, c)
}

func TestEditKeepsLocalChangeOnFailure(t *testing.T) {
	gw := &stubGateway{updateFn: func(context.Context, model.Todo) (gateway.Record, error) {
		return gateway.Record{}, errDown
	}}
	c, rec := loaded(t, gw)

	if err := c.Edit("3", "Renamed", "notes"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	// Applied before the API answers.
	if td, _ := findTodo(c, "3"); td.Title != "Renamed" {
		t.Fatalf("edit not applied synchronously: %+v", td)
	}
	c.Wait()

	td, _ := findTodo(c, "3")
	if td.Title != "Renamed" || td.Description != "notes" || td.Status != model.StatusCompleted || !td.Completed {
		t.Fatalf("unexpected todo after failed edit: %+v", td)
	}
	sent := gw.updateCalls()
	if len(sent) != 1 || sent[0].Status != model.StatusCompleted || !sent[0].Completed || sent[0].Title != "Renamed" {
		t.Fatalf("update must carry the full todo: %+v", sent)
	}
	if rec.Count(notify.Warning) != 1 {
		t.Fatalf("expected one warning, got %+v", rec.All())
	}
	if gw.fetchCount() != 1 {
		t.Fatal("a failed edit must not resync")
	}
	checkInvariants(t, c)
}

func TestEditValidation(t *testing.T) {
	c, _ := loaded(t, &stubGateway{})
	if err := c.Edit("404", "x", ""); !errors.Is(err, board.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.Edit("1", " ", ""); !errors.Is(err, model.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestDeleteIsLocalFirst(t *testing.T) {
	gw := &stubGateway{deleteFn: func(context.Context, string) error { return errDown }}
	c, rec := loaded(t, gw)

	if err := c.Delete("4"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c.Wait()
	if _, ok := findTodo(c, "4"); ok {
		t.Fatal("todo should be gone")
	}
	if rec.Count(notify.Warning) != 1 {
		t.Fatalf("expected warning, got %+v", rec.All())
	}
	if err := c.Delete("4"); !errors.Is(err, board.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	checkInvariants(t, c)
}

func TestDragAcrossLanesPersistsOnce(t *testing.T) {
	gw := &stubGateway{updateFn: echoUpdate}
	c, rec := loaded(t, gw)

	if err := c.DragStart("1"); err != nil {
		t.Fatalf("drag start: %v", err)
	}
	if moved, err := c.DragOver(string(model.StatusInProgress), gesture.TargetLane); !moved || err != nil {
		t.Fatalf("over in progress: moved=%v err=%v", moved, err)
	}
	checkInvariants(t, c)
	if snap := c.Snapshot(); snap.Dragging != "1" || snap.DragOrigin != model.StatusPending {
		t.Fatalf("snapshot should show the gesture: %+v", snap)
	}
	if moved, err := c.DragOver("3", gesture.TargetTodo); !moved || err != nil {
		t.Fatalf("over completed todo: moved=%v err=%v", moved, err)
	}
	checkInvariants(t, c)
	if len(gw.updateCalls()) != 0 {
		t.Fatal("hovering must not call the API")
	}

	final, ok := c.DragEnd()
	if !ok || final.Status != model.StatusCompleted {
		t.Fatalf("unexpected drag end: %+v ok=%v", final, ok)
	}
	c.Wait()

	sent := gw.updateCalls()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(sent))
	}
	if sent[0].ID != "1" || sent[0].Status != model.StatusCompleted || !sent[0].Completed {
		t.Fatalf("unexpected update payload: %+v", sent[0])
	}
	if got := laneOf(t, c, "1"); got != model.StatusCompleted {
		t.Fatalf("todo should be in completed only, found in %s", got)
	}
	if rec.Count(notify.Success) != 1 {
		t.Fatalf("expected success notification, got %+v", rec.All())
	}
	checkInvariants(t, c)
}

func TestDragWithoutDestinationDoesNotPersist(t *testing.T) {
	gw := &stubGateway{updateFn: echoUpdate}
	c, _ := loaded(t, gw)

	if err := c.DragStart("1"); err != nil {
		t.Fatalf("drag start: %v", err)
	}
	if moved, _ := c.DragOver("nowhere", gesture.TargetLane); moved {
		t.Fatal("unresolvable target moved the todo")
	}
	if _, ok := c.DragEnd(); ok {
		t.Fatal("nothing should persist")
	}
	c.Wait()
	if n := len(gw.updateCalls()); n != 0 {
		t.Fatalf("expected no update, got %d", n)
	}
}

func TestDragStartWhileDraggingIsRejected(t *testing.T) {
	c, _ := loaded(t, &stubGateway{})
	if err := c.DragStart("1"); err != nil {
		t.Fatalf("drag start: %v", err)
	}
	if err := c.DragStart("2"); !errors.Is(err, gesture.ErrGestureInFlight) {
		t.Fatalf("expected ErrGestureInFlight, got %v", err)
	}
	c.DragCancel()
	if err := c.DragStart("2"); err != nil {
		t.Fatalf("start after cancel: %v", err)
	}
}

func TestDragCancelRestoresLane(t *testing.T) {
	gw := &stubGateway{}
	c, _ := loaded(t, gw)
	_ = c.DragStart("1")
	c.DragOver("completed", gesture.TargetLane)
	c.DragCancel()
	c.Wait()
	if got := laneOf(t, c, "1"); got != model.StatusPending {
		t.Fatalf("cancel should restore pending, got %s", got)
	}
	if len(gw.updateCalls()) != 0 {
		t.Fatal("cancel must not persist")
	}
	checkInvariants(t, c)
}

func TestPersistMoveFailureResyncsOnce(t *testing.T) {
	gw := &stubGateway{updateFn: func(context.Context, model.Todo) (gateway.Record, error) {
		return gateway.Record{}, errDown
	}}
	c, rec := loaded(t, gw)
	if gw.fetchCount() != 1 {
		t.Fatalf("expected initial fetch, got %d", gw.fetchCount())
	}

	server := []gateway.Record{
		{ID: "1", Label: "zero"},
		{ID: "9", Label: "new on server"},
	}
	gw.fetchFn = fetchRecords(server)

	_ = c.DragStart("1")
	c.DragOver("completed", gesture.TargetLane)
	if got := laneOf(t, c, "1"); got != model.StatusCompleted {
		t.Fatalf("live move missing: %s", got)
	}
	c.DragEnd()
	c.Wait()

	if got := gw.fetchCount(); got != 2 {
		t.Fatalf("expected exactly one resync fetch, got %d total fetches", got-1)
	}
	snap := c.Snapshot()
	if !reflect.DeepEqual(ids(snap.Lanes, model.StatusPending), []string{"1"}) ||
		!reflect.DeepEqual(ids(snap.Lanes, model.StatusInProgress), []string{"9"}) ||
		len(ids(snap.Lanes, model.StatusCompleted)) != 0 {
		t.Fatalf("board not replaced by resync: %+v", snap.Lanes)
	}
	if rec.Count(notify.Error) != 1 {
		t.Fatalf("expected one error notification, got %+v", rec.All())
	}
	checkInvariants(t, c)
}

func TestDirectPersistMove(t *testing.T) {
	gw := &stubGateway{updateFn: echoUpdate}
	c, _ := loaded(t, gw)
	td, _ := findTodo(c, "2")
	c.PersistMove(td)
	c.Wait()
	if sent := gw.updateCalls(); len(sent) != 1 || sent[0].ID != "2" {
		t.Fatalf("unexpected updates: %+v", sent)
	}
	if gw.fetchCount() != 1 {
		t.Fatal("successful persist must not resync")
	}
}

func TestLateEditResponseDoesNotResurrectDeletedTodo(t *testing.T) {
	release := make(chan struct{})
	gw := &stubGateway{
		updateFn: func(ctx context.Context, t model.Todo) (gateway.Record, error) {
			<-release
			return gateway.FromTodo(t), nil
		},
		deleteFn: func(context.Context, string) error { return nil },
	}
	c, _ := loaded(t, gw)

	if err := c.Edit("5", "Edited", ""); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := c.Delete("5"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	close(release)
	c.Wait()

	if _, ok := findTodo(c, "5"); ok {
		t.Fatal("late edit response brought the todo back")
	}
	checkInvariants(t, c)
}

func TestEditResponseMergesReturnedFields(t *testing.T) {
	gw := &stubGateway{updateFn: func(_ context.Context, t model.Todo) (gateway.Record, error) {
		return gateway.Record{ID: gateway.ID(t.ID), Label: "Server title", Description: "server notes"}, nil
	}}
	c, _ := loaded(t, gw)
	if err := c.Edit("1", "Local title", ""); err != nil {
		t.Fatalf("edit: %v", err)
	}
	c.Wait()
	td, _ := findTodo(c, "1")
	if td.Title != "Server title" || td.Description != "server notes" || td.Status != model.StatusPending {
		t.Fatalf("response not merged: %+v", td)
	}
}

func TestChangesSignal(t *testing.T) {
	c, _ := loaded(t, &stubGateway{})
	// Drain anything left from loading.
	select {
	case <-c.Changes():
	default:
	}
	_ = c.DragStart("1")
	select {
	case <-c.Changes():
	default:
		t.Fatal("expected a change signal")
	}
}
