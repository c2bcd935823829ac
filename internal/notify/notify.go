// Package notify carries user-facing success and failure messages from the
// board controller to whatever displays them.
package notify

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Level int

const (
	Success Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "success"
}

type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Sink receives notifications. Implementations must not call back into the
// controller that emitted them.
type Sink interface {
	Notify(n Notification)
}

// Recorder keeps the most recent notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewRecorder keeps at most limit entries; limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if r.limit > 0 && len(r.items) > r.limit {
		r.items = append([]Notification(nil), r.items[len(r.items)-r.limit:]...)
	}
}

// All returns a copy of the recorded notifications, oldest first.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Latest returns the newest notification, if any.
func (r *Recorder) Latest() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Count returns how many recorded notifications have the given level.
func (r *Recorder) Count(l Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.Level == l {
			n++
		}
	}
	return n
}

// LogSink writes notifications to a logrus logger.
type LogSink struct {
	Logger log.FieldLogger
}

func (s LogSink) Notify(n Notification) {
	entry := s.Logger.WithField("level_hint", n.Level.String())
	switch n.Level {
	case Error:
		entry.Error(n.Message)
	case Warning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

// Multi fans a notification out to several sinks.
type Multi []Sink

func (m Multi) Notify(n Notification) {
	for _, s := range m {
		s.Notify(n)
	}
}
