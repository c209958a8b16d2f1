// Package logging provides the categorized, level-filtered logger
// handle spec.md §9 asks for ("global thread-local logger with runtime
// category lookup... a process-wide registry initialized once;
// individual sites get a cached category handle on first use").
//
// polyrpc keeps the teacher's plain standard-library `log` register
// (server/server.go and the middleware package both call log.Println
// directly) rather than adopting a third-party logging framework — no
// example repo in the pack pulls one in for a project this size, so a
// small wrapper around *log.Logger is the idiomatic match here.
package logging

import (
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Level is a coarse severity filter. The fast path for a disabled
// level is a single atomic load, per spec.md's concurrency note for
// this component.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// globalLevel gates every category's fast path. SetLevel is expected to
// run at startup (from cmd/ config), not on a hot path.
var globalLevel atomic.Int32

func init() {
	globalLevel.Store(int32(LevelInfo))
}

// SetLevel changes the process-wide filter level.
func SetLevel(l Level) { globalLevel.Store(int32(l)) }

// Category is a cached, named logging handle. Components obtain one
// via Get and hold onto it (a package-level var, typically) rather than
// looking it up per call.
type Category struct {
	name   string
	logger *log.Logger
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Category{}
)

// Get returns the Category for name, creating it on first use. The
// registry is read-mostly; registration only happens the first time a
// given category name is requested.
func Get(name string) *Category {
	registryMu.Lock()
	defer registryMu.Unlock()
	if c, ok := registry[name]; ok {
		return c
	}
	c := &Category{
		name:   name,
		logger: log.New(os.Stderr, "["+name+"] ", log.LstdFlags),
	}
	registry[name] = c
	return c
}

func (c *Category) enabled(l Level) bool {
	return int32(l) >= globalLevel.Load()
}

func (c *Category) log(l Level, format string, args []any) {
	if !c.enabled(l) {
		return
	}
	if len(args) == 0 {
		c.logger.Printf("%s %s", l, format)
		return
	}
	c.logger.Printf("%s "+format, append([]any{l}, args...)...)
}

func (c *Category) Debugf(format string, args ...any) { c.log(LevelDebug, format, args) }
func (c *Category) Infof(format string, args ...any)  { c.log(LevelInfo, format, args) }
func (c *Category) Warnf(format string, args ...any)  { c.log(LevelWarn, format, args) }
func (c *Category) Errorf(format string, args ...any) { c.log(LevelError, format, args) }
