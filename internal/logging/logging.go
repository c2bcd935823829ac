// Package logging configures the logrus logger shared by the board.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

type Options struct {
	Level  string
	Format string // text | json
	// File receives log output when set; otherwise Fallback does.
	File     string
	Fallback io.Writer
}

// DefaultFile is where the board logs while the TUI owns the terminal.
func DefaultFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".kanban", "board.log"), nil
}

// New builds a logger from opts. The returned close func releases the log
// file, if one was opened.
func New(opts Options) (*log.Logger, func() error, error) {
	logger := log.New()
	noop := func() error { return nil }

	level := log.InfoLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, noop, err
		}
		level = l
	}
	logger.SetLevel(level)

	switch opts.Format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, noop, fmt.Errorf("unknown log format %q", opts.Format)
	}

	if opts.File == "" {
		out := opts.Fallback
		if out == nil {
			out = os.Stderr
		}
		logger.SetOutput(out)
		return logger, noop, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
		return nil, noop, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, noop, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f.Close, nil
}
