// Package golog is a leveled logger with support for structured context pairs.
package golog

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents a log level (CRIT, ERR, ...)
type Level int32

// Log levels
const (
	CRIT  Level = iota // For panics (code bugs)
	ERR                // General errors (e.g. errors from upstream services)
	WARN               // Correctable but inconsistent state
	INFO               // Request logs, lifecycle events
	DEBUG              // Normally turned off but can help to track down issues
)

// Levels maps log level to a string
var Levels = map[Level]string{
	CRIT:  "CRIT",
	ERR:   "ERR",
	WARN:  "WARN",
	INFO:  "INFO",
	DEBUG: "DEBUG",
}

func (l Level) String() string {
	if s := Levels[l]; s != "" {
		return s
	}
	return strconv.Itoa(int(l))
}

type Logger interface {
	Context(ctx ...interface{}) Logger

	SetLevel(l Level) Level
	Level() Level
	// L returns true if the current level is greater than or equal to 'l'
	L(l Level) bool

	SetHandler(h Handler)
	Handler() Handler

	Logf(calldepth int, l Level, format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Handler writes formatted log entries to their destination.
type Handler interface {
	Log(e *Entry) error
}

// Entry is a single log event.
type Entry struct {
	Time time.Time
	Lvl  Level
	Msg  string
	Ctx  []interface{}
	Src  string
}

type logger struct {
	mu  sync.Mutex
	ctx []interface{}
	hnd Handler
	lvl Level
}

// DefaultHandler writes logfmt entries to stdout/stderr.
var DefaultHandler = IOHandler(os.Stdout, os.Stderr, LogfmtFormatter())

var defaultL = &logger{
	hnd: DefaultHandler,
	lvl: INFO,
}

// Default returns the process-wide logger.
func Default() Logger {
	return defaultL
}

// Context returns a logger with the provided key/value pairs attached to
// every entry.
func Context(ctx ...interface{}) Logger {
	return defaultL.Context(ctx...)
}

func (l *logger) SetLevel(lvl Level) Level {
	return Level(atomic.SwapInt32((*int32)(&l.lvl), int32(lvl)))
}

func (l *logger) Level() Level {
	return Level(atomic.LoadInt32((*int32)(&l.lvl)))
}

func (l *logger) L(lvl Level) bool {
	return l.Level() >= lvl
}

func (l *logger) SetHandler(h Handler) {
	l.mu.Lock()
	l.hnd = h
	l.mu.Unlock()
}

func (l *logger) Handler() Handler {
	l.mu.Lock()
	h := l.hnd
	l.mu.Unlock()
	return h
}

func (l *logger) Context(ctx ...interface{}) Logger {
	if len(l.ctx) != 0 {
		ctx = append(append([]interface{}(nil), l.ctx...), ctx...)
	}
	return &logger{
		ctx: ctx,
		hnd: l.Handler(),
		lvl: l.Level(),
	}
}

func (l *logger) Logf(calldepth int, lvl Level, format string, args ...interface{}) {
	if !l.L(lvl) {
		return
	}
	e := &Entry{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  fmt.Sprintf(format, args...),
		Ctx:  l.ctx,
	}
	if calldepth > 0 {
		if _, file, line, ok := runtime.Caller(calldepth); ok {
			e.Src = fmt.Sprintf("%s:%d", shortPath(file), line)
		}
	}
	l.Handler().Log(e)
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.Logf(2, CRIT, format, args...)
	os.Exit(255)
}

func (l *logger) Criticalf(format string, args ...interface{}) {
	l.Logf(2, CRIT, format, args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.Logf(2, ERR, format, args...)
}

func (l *logger) Warningf(format string, args ...interface{}) {
	l.Logf(2, WARN, format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.Logf(-1, INFO, format, args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.Logf(-1, DEBUG, format, args...)
}

// shortPath trims a source path to its last two elements.
func shortPath(file string) string {
	depth := 0
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			depth++
			if depth == 2 {
				return file[i+1:]
			}
		}
	}
	return file
}

func Logf(calldepth int, lvl Level, format string, args ...interface{}) {
	defaultL.Logf(calldepth, lvl, format, args...)
}

// LogDepthf logs at the given call depth relative to the caller.
func LogDepthf(calldepth int, lvl Level, format string, args ...interface{}) {
	if calldepth > 0 {
		calldepth += 2
	}
	defaultL.Logf(calldepth, lvl, format, args...)
}

func Fatalf(format string, args ...interface{}) {
	defaultL.Fatalf(format, args...)
}

func Criticalf(format string, args ...interface{}) {
	defaultL.Logf(2, CRIT, format, args...)
}

func Errorf(format string, args ...interface{}) {
	defaultL.Logf(2, ERR, format, args...)
}

func Warningf(format string, args ...interface{}) {
	defaultL.Logf(2, WARN, format, args...)
}

func Infof(format string, args ...interface{}) {
	defaultL.Logf(-1, INFO, format, args...)
}

func Debugf(format string, args ...interface{}) {
	defaultL.Logf(-1, DEBUG, format, args...)
}

// SetLevel sets the level of the default logger.
func SetLevel(l Level) Level {
	return defaultL.SetLevel(l)
}

// SetHandler sets the handler of the default logger.
func SetHandler(h Handler) {
	defaultL.SetHandler(h)
}
