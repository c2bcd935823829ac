package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/idilsaglam/kanban/internal/model"
)

const (
	DefaultBaseURL = "https://dummyjson.com/todos"

	instrumentationName = "github.com/idilsaglam/kanban/internal/gateway"
	requestIDHeader     = "X-Request-Id"
)

// HTTPClient implements Gateway against a dummyjson-style REST API rooted at
// baseURL (GET base, POST base/add, PUT base/{id}, DELETE base/{id}).
type HTTPClient struct {
	baseURL    string
	token      string
	limit      int
	httpClient *http.Client
	logger     log.FieldLogger
	tracer     trace.Tracer
}

type Option func(*HTTPClient)

// WithToken sends an Authorization bearer header on every request.
func WithToken(token string) Option {
	return func(c *HTTPClient) { c.token = token }
}

// WithLimit asks FetchAll for at most n records; 0 keeps the server default.
func WithLimit(n int) Option {
	return func(c *HTTPClient) { c.limit = n }
}

// WithTimeout bounds each request. Zero, the default, never times out.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

func WithLogger(l log.FieldLogger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *HTTPClient) { c.tracer = tp.Tracer(instrumentationName) }
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     log.StandardLogger(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) FetchAll(ctx context.Context) ([]Record, error) {
	path := ""
	if c.limit > 0 {
		path = "?" + url.Values{"limit": {strconv.Itoa(c.limit)}}.Encode()
	}
	var raw []byte
	if err := c.do(ctx, "fetch", http.MethodGet, path, "", nil, &raw); err != nil {
		return nil, err
	}
	// Accept both the paginated envelope and a bare array.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var recs []Record
		if err := sonic.ConfigStd.Unmarshal(trimmed, &recs); err != nil {
			return nil, &NetworkError{Op: "fetch", Err: fmt.Errorf("decoding response: %w", err)}
		}
		return recs, nil
	}
	var resp ListResponse
	if err := sonic.ConfigStd.Unmarshal(raw, &resp); err != nil {
		return nil, &NetworkError{Op: "fetch", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return resp.Todos, nil
}

func (c *HTTPClient) Create(ctx context.Context, t model.Todo) (Record, error) {
	body := FromTodo(t)
	body.ID = ""
	var rec Record
	if err := c.do(ctx, "create", http.MethodPost, "/add", "", body, &rec); err != nil {
		return Record{}, err
	}
	if rec.ID == "" {
		return Record{}, &NetworkError{Op: "create", Err: fmt.Errorf("response carries no id")}
	}
	return rec, nil
}

func (c *HTTPClient) Update(ctx context.Context, t model.Todo) (Record, error) {
	var rec Record
	if err := c.do(ctx, "update", http.MethodPut, "/"+url.PathEscape(t.ID), t.ID, FromTodo(t), &rec); err != nil {
		return Record{}, err
	}
	if rec.ID == "" {
		rec.ID = ID(t.ID)
	}
	return rec, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, "/"+url.PathEscape(id), id, nil, nil)
}

// do performs one request. out may be a *[]byte to receive the raw body or
// any value to decode into; nil discards the body.
func (c *HTTPClient) do(ctx context.Context, op, method, path, todoID string, body, out any) (err error) {
	reqID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("request.id", reqID),
		))
	if todoID != "" {
		span.SetAttributes(attribute.String("todo.id", todoID))
	}
	entry := c.logger.WithFields(log.Fields{"op": op, "request_id": reqID, "todo_id": todoID})
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			entry.WithError(err).Warn("gateway call failed")
		} else {
			entry.WithField("elapsed", time.Since(start)).Debug("gateway call ok")
		}
		span.End()
	}()

	var bodyReader io.Reader
	if body != nil {
		data, merr := sonic.ConfigStd.Marshal(body)
		if merr != nil {
			return &NetworkError{Op: op, Err: fmt.Errorf("marshaling request body: %w", merr)}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, rerr := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if rerr != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("creating request: %w", rerr)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, derr := c.httpClient.Do(req)
	if derr != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("performing request: %w", derr)}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, ioerr := io.ReadAll(resp.Body)
	if ioerr != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", ioerr)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet(respBody))}
	}

	switch dst := out.(type) {
	case nil:
	case *[]byte:
		*dst = respBody
	default:
		if len(bytes.TrimSpace(respBody)) == 0 {
			return nil
		}
		if uerr := sonic.ConfigStd.Unmarshal(respBody, dst); uerr != nil {
			return &NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", uerr)}
		}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
