// Package logging wraps charmbracelet/log behind the small interface the
// rest of voicecore depends on, so components never import the concrete
// logger directly.
package logging

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the structured logging contract shared by every component.
// It mirrors the shape used throughout the pipeline: a message plus
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Used by tests and by components
// constructed without an explicit logger.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{}) {}
func (NoOpLogger) Info(string, ...interface{})  {}
func (NoOpLogger) Warn(string, ...interface{})  {}
func (NoOpLogger) Error(string, ...interface{}) {}

// charmLogger adapts *charmlog.Logger to the Logger interface.
type charmLogger struct {
	l *charmlog.Logger
}

// New builds the default process logger: charmbracelet/log's default
// text formatter writing to stderr, with timestamps and the component
// name as prefix.
func New(component string) Logger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          component,
	})
	return &charmLogger{l: l}
}

func (c *charmLogger) Debug(msg string, args ...interface{}) { c.l.Debug(msg, args...) }
func (c *charmLogger) Info(msg string, args ...interface{})  { c.l.Info(msg, args...) }
func (c *charmLogger) Warn(msg string, args ...interface{})  { c.l.Warn(msg, args...) }
func (c *charmLogger) Error(msg string, args ...interface{}) { c.l.Error(msg, args...) }
