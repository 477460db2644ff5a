package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kvbridge/internal/engine"
	"github.com/roach88/kvbridge/internal/testutil"
)

func newEnv(t *testing.T, opts Options) *Environment {
	t.Helper()
	if opts.IDs == nil {
		opts.IDs = NewSequenceGenerator("h")
	}
	if opts.Logger == nil {
		opts.Logger, _ = testutil.CaptureLogger()
	}
	env := New(opts)
	t.Cleanup(func() { env.Sweep() })
	return env
}

func connect(t *testing.T, env *Environment) *Connection {
	t.Helper()
	c, err := env.Connect(engine.MemorySource)
	require.NoError(t, err)
	return c
}

func mustStore(t *testing.T, c *Connection, key, value string) {
	t.Helper()
	ok, err := c.KVStore([]byte(key), []byte(value))
	require.NoError(t, err)
	require.True(t, ok)
}

// wrappedSession decorates a real engine session to simulate engine
// behavior that the default engine never shows.
type wrappedSession struct {
	engine.Session

	// silent makes ErrLog return "".
	silent bool

	// failCursorRelease makes CursorRelease report IOErr after releasing.
	failCursorRelease bool

	// failCursorMoves makes every cursor positioning call report IOErr.
	failCursorMoves bool

	closes  int
	failLog string
}

func (s *wrappedSession) ErrLog() string {
	if s.silent {
		return ""
	}
	if s.failLog != "" {
		return s.failLog
	}
	return s.Session.ErrLog()
}

func (s *wrappedSession) CursorInit() (engine.Cursor, engine.Status) {
	c, st := s.Session.CursorInit()
	if st != engine.OK || !s.failCursorMoves {
		return c, st
	}
	return &failingCursor{Cursor: c, s: s}, st
}

func (s *wrappedSession) CursorRelease(c engine.Cursor) engine.Status {
	if fc, ok := c.(*failingCursor); ok {
		c = fc.Cursor
	}
	st := s.Session.CursorRelease(c)
	if s.failCursorRelease {
		return engine.IOErr
	}
	return st
}

func (s *wrappedSession) Close() engine.Status {
	s.closes++
	return s.Session.Close()
}

func wrapOpener(w *wrappedSession) Opener {
	return func(source string, cfg engine.Config) (engine.Session, engine.Status) {
		sess, st := engine.Open(source, cfg)
		w.Session = sess
		return w, st
	}
}

// failingCursor reports a storage failure from every positioning call.
type failingCursor struct {
	engine.Cursor
	s *wrappedSession
}

func (c *failingCursor) fail() engine.Status {
	c.s.failLog = "disk I/O error"
	return engine.IOErr
}

func (c *failingCursor) Seek([]byte, engine.Match) engine.Status { return c.fail() }
func (c *failingCursor) First() engine.Status { return c.fail() }
func (c *failingCursor) Last() engine.Status { return c.fail() }
func (c *failingCursor) Next() engine.Status { return c.fail() }
func (c *failingCursor) Prev() engine.Status { return c.fail() }
func (c *failingCursor) Valid() bool { return false }
