// Package mockapi serves an in-memory todo API shaped like dummyjson's
// /todos endpoints, for local development and tests.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/kanban/internal/gateway"
	"github.com/idilsaglam/kanban/internal/model"
	"github.com/idilsaglam/kanban/internal/store/jsonstore"
)

type Options struct {
	// DataPath persists records to a JSON file when set.
	DataPath string
	// FailRate is the probability in [0,1] that a request fails with 503.
	FailRate float64
	// Seed replaces the built-in records when no data file exists yet.
	Seed   []gateway.Record
	Logger log.FieldLogger
	// Rand drives failure injection; defaults to a time-seeded source.
	Rand *rand.Rand
}

type Server struct {
	mu       sync.Mutex
	records  []gateway.Record
	nextID   int
	dataPath string
	failRate float64
	rng      *rand.Rand
	logger   log.FieldLogger
	echo     *echo.Echo
}

func New(opts Options) (*Server, error) {
	s := &Server{
		dataPath: opts.DataPath,
		failRate: opts.FailRate,
		rng:      opts.Rand,
		logger:   opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.StandardLogger()
	}
	if s.rng == nil {
		now := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(now, now>>1))
	}

	var recs []gateway.Record
	if s.dataPath != "" {
		loaded, err := jsonstore.Load[gateway.Record](s.dataPath)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", s.dataPath, err)
		}
		recs = loaded
	}
	if len(recs) == 0 {
		recs = opts.Seed
	}
	if len(recs) == 0 {
		for _, t := range model.Seed() {
			recs = append(recs, gateway.FromTodo(t))
		}
	}
	for _, r := range recs {
		s.records = append(s.records, normalize(r))
		if n, err := strconv.Atoi(string(r.ID)); err == nil && n >= s.nextID {
			s.nextID = n + 1
		}
	}
	if s.nextID == 0 {
		s.nextID = 1
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(s.chaos)
	s.Register(e)
	s.echo = e
	return s, nil
}

// Register mounts the /todos routes on e.
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/todos")
	g.GET("", s.list)
	g.GET("/:id", s.get)
	g.POST("/add", s.create)
	g.PUT("/:id", s.update)
	g.PATCH("/:id", s.update)
	g.DELETE("/:id", s.remove)
}

// Handler exposes the server for httptest or a custom listener.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start(addr string) error {
	s.logger.WithField("addr", addr).Info("mock todo API listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Records returns a copy of the stored records.
func (s *Server) Records() []gateway.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gateway.Record(nil), s.records...)
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) chaos(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.failRate <= 0 {
			return next(c)
		}
		s.mu.Lock()
		fail := s.rng.Float64() < s.failRate
		s.mu.Unlock()
		if fail {
			s.logger.WithFields(log.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
			}).Debug("injecting failure")
			return c.JSON(http.StatusServiceUnavailable, messageResponse{Message: "simulated outage"})
		}
		return next(c)
	}
}

func (s *Server) list(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	}
	skip, err := intParam(c, "skip")
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	}

	s.mu.Lock()
	total := len(s.records)
	start := min(skip, total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	page := append([]gateway.Record{}, s.records[start:end]...)
	s.mu.Unlock()

	return c.JSON(http.StatusOK, gateway.ListResponse{Todos: page, Total: total, Skip: skip, Limit: len(page)})
}

func (s *Server) get(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(c.Param("id"))
	if i < 0 {
		return notFound(c)
	}
	return c.JSON(http.StatusOK, s.records[i])
}

// patch carries optional fields of a create or update body.
type patch struct {
	Label       *string `json:"todo"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	UserID      *int    `json:"userId"`
}

func (p patch) text() (string, bool) {
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		return *p.Title, true
	}
	if p.Label != nil && strings.TrimSpace(*p.Label) != "" {
		return *p.Label, true
	}
	return "", false
}

func (p patch) apply(r gateway.Record) gateway.Record {
	if text, ok := p.text(); ok {
		r.Title, r.Label = text, text
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Completed != nil {
		r.Completed = *p.Completed
	}
	if p.UserID != nil {
		r.UserID = *p.UserID
	}
	return r
}

func (s *Server) create(c echo.Context) error {
	var p patch
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid body"})
	}
	if _, ok := p.text(); !ok {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Todo is required"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := p.apply(gateway.Record{ID: gateway.ID(strconv.Itoa(s.nextID)), UserID: 1})
	s.nextID++
	s.records = append(s.records, r)
	if err := s.persist(); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (s *Server) update(c echo.Context) error {
	var p patch
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(c.Param("id"))
	if i < 0 {
		return notFound(c)
	}
	s.records[i] = p.apply(s.records[i])
	if err := s.persist(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.records[i])
}

type deletedRecord struct {
	gateway.Record
	IsDeleted bool      `json:"isDeleted"`
	DeletedOn time.Time `json:"deletedOn"`
}

func (s *Server) remove(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(c.Param("id"))
	if i < 0 {
		return notFound(c)
	}
	r := s.records[i]
	s.records = append(s.records[:i:i], s.records[i+1:]...)
	if err := s.persist(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deletedRecord{Record: r, IsDeleted: true, DeletedOn: time.Now().UTC()})
}

// persist must be called with s.mu held.
func (s *Server) persist() error {
	if s.dataPath == "" {
		return nil
	}
	if err := jsonstore.Save(s.dataPath, s.records); err != nil {
		s.logger.WithError(err).Error("persist todos")
		return echo.NewHTTPError(http.StatusInternalServerError, "persist failed")
	}
	return nil
}

func (s *Server) indexOf(id string) int {
	for i := range s.records {
		if string(s.records[i].ID) == id {
			return i
		}
	}
	return -1
}

func normalize(r gateway.Record) gateway.Record {
	text := r.Text()
	r.Title, r.Label = text, text
	return r
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, messageResponse{
		Message: fmt.Sprintf("Todo with id '%s' not found", c.Param("id")),
	})
}

func intParam(c echo.Context, name string) (int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
