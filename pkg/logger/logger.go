// Package logger adapts slog to the printf-style logger interfaces expected by
// embedded third-party components.
package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Printf forwards printf-style calls to a component-scoped slog.Logger.
// It satisfies badger.Logger.
type Printf struct {
	log *slog.Logger
}

// New returns a Printf adapter tagged with component.
func New(base *slog.Logger, component string) *Printf {
	if base == nil {
		base = slog.Default()
	}
	return &Printf{log: base.With("component", component)}
}

func (p *Printf) Errorf(format string, args ...interface{}) {
	p.log.Error(clean(format, args))
}

func (p *Printf) Warningf(format string, args ...interface{}) {
	p.log.Warn(clean(format, args))
}

func (p *Printf) Infof(format string, args ...interface{}) {
	p.log.Info(clean(format, args))
}

func (p *Printf) Debugf(format string, args ...interface{}) {
	p.log.Debug(clean(format, args))
}

// Cron satisfies cron.Logger, whose methods take alternating key/value pairs.
type Cron struct {
	log *slog.Logger
}

// NewCron returns a cron.Logger backed by slog.
func NewCron(base *slog.Logger) *Cron {
	if base == nil {
		base = slog.Default()
	}
	return &Cron{log: base.With("component", "cron")}
}

func (c *Cron) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c *Cron) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

func clean(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
