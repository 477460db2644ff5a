package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/kvbridge/internal/store"
)

// MemorySource opens a private in-memory session.
const MemorySource = ":mem:"

// Match selects how Cursor.Seek compares keys.
type Match = store.Match

// Seek match modes.
const (
	MatchExact = store.MatchExact
	MatchLE    = store.MatchLE
	MatchGE    = store.MatchGE
)

// Session is one open engine database.
type Session interface {
	// Close commits pending writes and releases the database. Closing a
	// session that failed to open only releases what was allocated.
	Close() Status
	// ErrLog returns the diagnostic text of the most recent failure.
	ErrLog() string

	Commit() Status
	Rollback() Status

	Store(key, data []byte) Status
	Append(key, data []byte) Status
	// Fetch copies the value of key into buf and sets *n to the number of
	// bytes copied. With a nil buf it only sets *n to the value length.
	// The fetch consumer registered for key runs when buf is non-nil.
	Fetch(key, buf []byte, n *int64) Status
	Delete(key []byte) Status
	// FetchCallback registers fn for key; a nil fn removes the
	// registration.
	FetchCallback(key []byte, fn Consumer, userData any) Status

	CursorInit() (Cursor, Status)
	CursorRelease(c Cursor) Status

	Compile(src string) (VM, Status)
	CompileFile(path string) (VM, Status)
	VMRelease(vm VM) Status
}

// Config tunes the storage behind a session.
type Config struct {
	Codec       string
	BusyTimeout int
	DisableWAL  bool
	// Logger receives engine diagnostics. Nil discards them.
	Logger *slog.Logger
}

type fetchConsumer struct {
	fn       Consumer
	userData any
}

type session struct {
	store     *store.Store
	log       *slog.Logger
	errLog    string
	consumers map[string]fetchConsumer
	cursors   int
	vms       int
	closed    bool
}

// Open opens (creating if absent) the session at source in read-write
// mode. On failure the returned session is still non-nil so the caller can
// read its error log; the caller must Close it.
func Open(source string, cfg Config) (Session, Status) {
	s := &session{consumers: make(map[string]fetchConsumer), log: cfg.Logger}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}

	path := source
	if source == MemorySource {
		path = store.MemoryPath
	}
	if path == "" {
		s.closed = true
		s.logf("open: empty source name")
		return s, Invalid
	}

	st, err := store.Open(path, store.Options{
		Codec:       cfg.Codec,
		BusyTimeout: cfg.BusyTimeout,
		DisableWAL:  cfg.DisableWAL,
	})
	if err != nil {
		s.closed = true
		s.logf("open %s: %v", source, err)
		return s, IOErr
	}
	s.store = st
	return s, OK
}

func (s *session) logf(format string, args ...any) {
	s.errLog = fmt.Sprintf(format, args...)
}

func (s *session) ErrLog() string {
	return s.errLog
}

func (s *session) Close() Status {
	if s.store == nil {
		s.closed = true
		return OK
	}
	if s.cursors > 0 || s.vms > 0 {
		s.log.Debug("closing session with live children",
			"cursors", s.cursors, "vms", s.vms)
	}
	err := s.store.Close()
	s.store = nil
	s.closed = true
	s.consumers = nil
	if err != nil {
		s.logf("close: %v", err)
		return IOErr
	}
	return OK
}

func (s *session) usable(op string) bool {
	if s.closed {
		s.logf("%s: session is closed", op)
		return false
	}
	return true
}

func (s *session) Commit() Status {
	if !s.usable("commit") {
		return Invalid
	}
	if err := s.store.Commit(); err != nil {
		s.logf("%v", err)
		return IOErr
	}
	return OK
}

func (s *session) Rollback() Status {
	if !s.usable("rollback") {
		return Invalid
	}
	if err := s.store.Rollback(); err != nil {
		s.logf("%v", err)
		return IOErr
	}
	return OK
}

func (s *session) checkKey(op string, key []byte) Status {
	if !s.usable(op) {
		return Invalid
	}
	if len(key) == 0 {
		s.logf("%s: empty key", op)
		return Invalid
	}
	return OK
}

func (s *session) Store(key, data []byte) Status {
	if st := s.checkKey("kv_store", key); st != OK {
		return st
	}
	if err := s.store.Put(context.Background(), key, data); err != nil {
		s.logf("kv_store: %v", err)
		return IOErr
	}
	return OK
}

func (s *session) Append(key, data []byte) Status {
	if st := s.checkKey("kv_append", key); st != OK {
		return st
	}
	if err := s.store.Append(context.Background(), key, data); err != nil {
		s.logf("kv_append: %v", err)
		return IOErr
	}
	return OK
}

func (s *session) Fetch(key, buf []byte, n *int64) Status {
	if st := s.checkKey("kv_fetch", key); st != OK {
		return st
	}
	value, found, err := s.store.Get(context.Background(), key)
	if err != nil {
		s.logf("kv_fetch: %v", err)
		return IOErr
	}
	if !found {
		return NotFound
	}
	if buf == nil {
		*n = int64(len(value))
		return OK
	}
	*n = int64(copy(buf, value))

	// Copy the registration: the consumer may replace or clear it.
	if c, ok := s.consumers[string(key)]; ok {
		if st := c.fn(value, c.userData); st == Abort {
			s.logf("kv_fetch: consumer aborted")
			return Abort
		}
	}
	return OK
}

func (s *session) Delete(key []byte) Status {
	if st := s.checkKey("kv_delete", key); st != OK {
		return st
	}
	deleted, err := s.store.Delete(context.Background(), key)
	if err != nil {
		s.logf("kv_delete: %v", err)
		return IOErr
	}
	if !deleted {
		return NotFound
	}
	return OK
}

func (s *session) FetchCallback(key []byte, fn Consumer, userData any) Status {
	if st := s.checkKey("kv_fetch_callback", key); st != OK {
		return st
	}
	if fn == nil {
		delete(s.consumers, string(key))
		return OK
	}
	s.consumers[string(key)] = fetchConsumer{fn: fn, userData: userData}
	return OK
}

func (s *session) CursorInit() (Cursor, Status) {
	if !s.usable("cursor_init") {
		return nil, Invalid
	}
	s.cursors++
	return &cursor{s: s}, OK
}

func (s *session) CursorRelease(c Cursor) Status {
	cur, ok := c.(*cursor)
	if !ok || cur.s != s {
		s.logf("cursor_release: cursor does not belong to this session")
		return Invalid
	}
	if cur.released {
		s.logf("cursor_release: cursor already released")
		return Invalid
	}
	cur.released = true
	cur.key = nil
	s.cursors--
	return OK
}

func (s *session) Compile(src string) (VM, Status) {
	return s.compile(func() (*vm, error) { return compileSource(s, src) })
}

func (s *session) CompileFile(path string) (VM, Status) {
	return s.compile(func() (*vm, error) { return compileFile(s, path) })
}

func (s *session) compile(build func() (*vm, error)) (VM, Status) {
	if !s.usable("compile") {
		return nil, Invalid
	}
	v, err := build()
	if err != nil {
		s.logf("%v", err)
		return nil, CompileErr
	}
	s.vms++
	return v, OK
}

func (s *session) VMRelease(v VM) Status {
	m, ok := v.(*vm)
	if !ok || m.s != s {
		s.logf("vm_release: vm does not belong to this session")
		return Invalid
	}
	if m.released {
		s.logf("vm_release: vm already released")
		return Invalid
	}
	m.released = true
	m.result = nil
	m.out = nil
	m.outData = nil
	s.vms--
	return OK
}
