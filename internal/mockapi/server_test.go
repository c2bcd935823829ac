package mockapi

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/idilsaglam/kanban/internal/gateway"
	"github.com/idilsaglam/kanban/internal/model"
)

func newServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Logger == nil {
		logger, _ := test.NewNullLogger()
		opts.Logger = logger
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListServesSeedWithPagination(t *testing.T) {
	s := newServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/todos?limit=3&skip=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp gateway.ListResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != len(model.Seed()) || resp.Skip != 2 || len(resp.Todos) != 3 {
		t.Fatalf("unexpected page: total=%d skip=%d n=%d", resp.Total, resp.Skip, len(resp.Todos))
	}
	if resp.Todos[0].ID != "3" || resp.Todos[0].Text() != "Fix login bug" {
		t.Fatalf("unexpected first record: %+v", resp.Todos[0])
	}

	if rec := do(t, s, http.MethodGet, "/todos?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	s := newServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/todos/add", `{"todo":"Buy milk","completed":false,"userId":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	var created gateway.Record
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID != "8" || created.Title != "Buy milk" || created.UserID != 5 {
		t.Fatalf("unexpected created record: %+v", created)
	}

	rec = do(t, s, http.MethodPut, "/todos/8", `{"completed":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", rec.Code, rec.Body.String())
	}
	var updated gateway.Record
	_ = sonic.Unmarshal(rec.Body.Bytes(), &updated)
	if !updated.Completed || updated.Title != "Buy milk" {
		t.Fatalf("update should merge fields: %+v", updated)
	}

	rec = do(t, s, http.MethodDelete, "/todos/8", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"isDeleted":true`) {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodGet, "/todos/8", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateRequiresText(t *testing.T) {
	s := newServer(t, Options{})
	if rec := do(t, s, http.MethodPost, "/todos/add", `{"completed":false}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnknownIDIs404(t *testing.T) {
	s := newServer(t, Options{})
	if rec := do(t, s, http.MethodPut, "/todos/999", `{"completed":true}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestFailRateInjectsOutage(t *testing.T) {
	s := newServer(t, Options{FailRate: 1, Rand: rand.New(rand.NewPCG(1, 2))})
	if rec := do(t, s, http.MethodGet, "/todos", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestPersistsToDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.json")
	s := newServer(t, Options{DataPath: path})
	if rec := do(t, s, http.MethodPost, "/todos/add", `{"title":"Persist me"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}

	reopened := newServer(t, Options{DataPath: path})
	recs := reopened.Records()
	if len(recs) != len(model.Seed())+1 {
		t.Fatalf("expected %d records after reload, got %d", len(model.Seed())+1, len(recs))
	}
	if recs[len(recs)-1].Text() != "Persist me" {
		t.Fatalf("unexpected last record: %+v", recs[len(recs)-1])
	}
}

func TestGatewayRoundTrip(t *testing.T) {
	s := newServer(t, Options{})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	logger, _ := test.NewNullLogger()
	gw := gateway.NewHTTPClient(srv.URL+"/todos", gateway.WithLogger(logger))
	ctx := context.Background()

	created, err := gw.Create(ctx, model.Todo{Title: "From client", Status: model.StatusPending, OwnerID: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	moved := created.AsTodo(model.StatusCompleted)
	if _, err := gw.Update(ctx, moved); err != nil {
		t.Fatalf("update: %v", err)
	}
	recs, err := gw.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	last := recs[len(recs)-1]
	if last.ID != created.ID || !last.Completed {
		t.Fatalf("update not visible: %+v", last)
	}
	if err := gw.Delete(ctx, string(created.ID)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := gw.Delete(ctx, string(created.ID)); !gateway.IsNetworkError(err) {
		t.Fatalf("second delete should fail with NetworkError, got %v", err)
	}
}
