package persistence

import (
	phuslulog "github.com/phuslu/log"

	"github.com/sushrut141/dharmadb/config"
)

// phuslooger adapts a *phuslulog.Logger to config.Logger so the orchestrator
// depends only on the narrow interface config declares, not on phuslu/log
// directly.
type phuslooger struct {
	l *phuslulog.Logger
}

// NewLogger wraps l as a config.Logger.
func NewLogger(l *phuslulog.Logger) config.Logger {
	return phuslooger{l: l}
}

// DefaultLogger returns a config.Logger writing structured entries to
// stderr at Info level, the same default phuslu/log.DefaultLogger carries.
func DefaultLogger() config.Logger {
	return NewLogger(&phuslulog.DefaultLogger)
}

func (p phuslooger) Info() config.Event  { return phusloogerEvent{e: p.l.Info()} }
func (p phuslooger) Warn() config.Event  { return phusloogerEvent{e: p.l.Warn()} }
func (p phuslooger) Error() config.Event { return phusloogerEvent{e: p.l.Error()} }

type phusloogerEvent struct {
	e *phuslulog.Entry
}

func (ev phusloogerEvent) Str(key, val string) config.Event {
	ev.e.Str(key, val)
	return ev
}

func (ev phusloogerEvent) Int(key string, val int) config.Event {
	ev.e.Int(key, val)
	return ev
}

func (ev phusloogerEvent) Int64(key string, val int64) config.Event {
	ev.e.Int64(key, val)
	return ev
}

func (ev phusloogerEvent) Err(err error) config.Event {
	ev.e.Err(err)
	return ev
}

func (ev phusloogerEvent) Msg(msg string) {
	ev.e.Msg(msg)
}
