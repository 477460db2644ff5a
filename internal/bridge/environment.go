package bridge

import (
	"errors"
	"log/slog"

	"github.com/roach88/kvbridge/internal/engine"
)

// Opener opens an engine session. engine.Open is the default; tests
// substitute openers that wrap or fake the engine.
type Opener func(source string, cfg engine.Config) (engine.Session, engine.Status)

// Options configures an Environment. Zero values select the defaults.
type Options struct {
	// Open opens engine sessions. Defaults to engine.Open.
	Open Opener

	// Storage is passed to Open for every connection.
	Storage engine.Config

	// MaxBuffer bounds a single two-call read. Defaults to DefaultMaxBuffer.
	MaxBuffer int64

	// MaxCallbackDepth bounds nested callbacks. Defaults to
	// DefaultMaxCallbackDepth.
	MaxCallbackDepth int

	// IDs generates handle IDs. Defaults to UUIDv7Generator.
	IDs IDGenerator

	// Logger receives handle lifecycle and callback diagnostics. Defaults
	// to slog.Default().
	Logger *slog.Logger
}

// Environment is the root factory. It creates connections and owns the
// handle registry and the host call stack shared by every callback.
//
// An Environment and everything created from it must be used from a
// single goroutine.
type Environment struct {
	open      bool
	opener    Opener
	storage   engine.Config
	maxBuffer int64
	maxDepth  int
	log       *slog.Logger
	reg       *Registry
	stack     []frame
}

// New creates an open Environment.
func New(opts Options) *Environment {
	e := &Environment{
		open:      true,
		opener:    opts.Open,
		storage:   opts.Storage,
		maxBuffer: opts.MaxBuffer,
		maxDepth:  opts.MaxCallbackDepth,
		log:       opts.Logger,
	}
	if e.opener == nil {
		e.opener = engine.Open
	}
	if e.maxBuffer <= 0 {
		e.maxBuffer = DefaultMaxBuffer
	}
	if e.maxDepth <= 0 {
		e.maxDepth = DefaultMaxCallbackDepth
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	ids := opts.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	e.reg = newRegistry(ids)
	return e
}

// Close marks the environment closed. It returns false if it was already
// closed. Open connections are unaffected.
func (e *Environment) Close() bool {
	if !e.open {
		return false
	}
	e.open = false
	return true
}

// String renders the environment as "environment (open)" or
// "environment (closed)".
func (e *Environment) String() string {
	if e.open {
		return "environment (open)"
	}
	return "environment (closed)"
}

// Registry returns the handle registry.
func (e *Environment) Registry() *Registry {
	return e.reg
}

// Connect opens (creating if absent) the database named by source in
// read-write mode. engine.MemorySource opens a private in-memory database.
func (e *Environment) Connect(source string) (*Connection, error) {
	if !e.open {
		return nil, newError(CodeHandleClosed, "connect", nil, "environment is closed")
	}

	cfg := e.storage
	if cfg.Logger == nil {
		cfg.Logger = e.log
	}
	sess, st := e.opener(source, cfg)
	if st != engine.OK {
		var msg string
		if sess != nil {
			msg = sess.ErrLog()
			if cst := sess.Close(); cst != engine.OK {
				e.log.Warn("release of failed session failed",
					"source", source, "status", cst.String())
			}
		}
		return nil, engineError("connect", nil, msg)
	}

	c := &Connection{env: e, sess: sess}
	c.h = e.reg.add(KindConnection, nil, c)
	e.log.Debug("connection opened", "handle", c.h.id, "source", source)
	return c, nil
}

// Sweep reclaims every live handle, children before parents. It returns
// the joined reclamation errors.
func (e *Environment) Sweep() error {
	live := e.reg.live()
	var errs []error
	for i := len(live) - 1; i >= 0; i-- {
		switch obj := live[i].obj.(type) {
		case *Cursor:
			errs = append(errs, obj.Reclaim())
		case *VM:
			errs = append(errs, obj.Reclaim())
		case *Connection:
			errs = append(errs, obj.Reclaim())
		}
	}
	return errors.Join(errs...)
}
