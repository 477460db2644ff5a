package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kvbridge/internal/testutil"
)

func openMem(t *testing.T) Session {
	t.Helper()
	s, st := Open(MemorySource, Config{})
	require.Equal(t, OK, st, s.ErrLog())
	t.Cleanup(func() { s.Close() })
	return s
}

// fetch runs the two-call protocol against s.
func fetch(t *testing.T, s Session, key string) ([]byte, Status) {
	t.Helper()
	var n int64
	if st := s.Fetch([]byte(key), nil, &n); st != OK {
		return nil, st
	}
	buf := make([]byte, n)
	st := s.Fetch([]byte(key), buf, &n)
	return buf[:n], st
}

func TestOpen_EmptySource(t *testing.T) {
	s, st := Open("", Config{})
	require.NotNil(t, s)
	assert.Equal(t, Invalid, st)
	assert.Contains(t, s.ErrLog(), "empty source")
	assert.Equal(t, OK, s.Close())
}

func TestOpen_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "db")
	s, st := Open(path, Config{})
	require.NotNil(t, s)
	assert.Equal(t, IOErr, st)
	assert.NotEmpty(t, s.ErrLog())
	assert.Equal(t, OK, s.Close())
}

func TestSession_StoreFetchDelete(t *testing.T) {
	s := openMem(t)

	require.Equal(t, OK, s.Store([]byte("a"), []byte("1")))
	got, st := fetch(t, s, "a")
	require.Equal(t, OK, st)
	assert.Equal(t, []byte("1"), got)

	assert.Equal(t, OK, s.Delete([]byte("a")))
	_, st = fetch(t, s, "a")
	assert.Equal(t, NotFound, st)
	assert.Equal(t, NotFound, s.Delete([]byte("a")))
}

func TestSession_Append(t *testing.T) {
	s := openMem(t)

	require.Equal(t, OK, s.Append([]byte("log"), []byte("ab")))
	require.Equal(t, OK, s.Append([]byte("log"), []byte("cd")))
	got, st := fetch(t, s, "log")
	require.Equal(t, OK, st)
	assert.Equal(t, []byte("abcd"), got)
}

func TestSession_EmptyKey(t *testing.T) {
	s := openMem(t)

	assert.Equal(t, Invalid, s.Store(nil, []byte("x")))
	assert.Contains(t, s.ErrLog(), "empty key")
}

func TestSession_FetchConsumer(t *testing.T) {
	s := openMem(t)
	require.Equal(t, OK, s.Store([]byte("k"), []byte("v\x00w")))

	var calls int
	var seen []byte
	var seenData any
	require.Equal(t, OK, s.FetchCallback([]byte("k"), func(data []byte, userData any) Status {
		calls++
		seen = append([]byte(nil), data...)
		seenData = userData
		return OK
	}, "ud"))

	// The length probe does not invoke the consumer.
	var n int64
	require.Equal(t, OK, s.Fetch([]byte("k"), nil, &n))
	assert.Equal(t, 0, calls)
	assert.Equal(t, int64(3), n)

	buf := make([]byte, n)
	require.Equal(t, OK, s.Fetch([]byte("k"), buf, &n))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []byte("v\x00w"), seen)
	assert.Equal(t, "ud", seenData)

	require.Equal(t, OK, s.FetchCallback([]byte("k"), nil, nil))
	_, st := fetch(t, s, "k")
	require.Equal(t, OK, st)
	assert.Equal(t, 1, calls)
}

func TestSession_FetchConsumerAbort(t *testing.T) {
	s := openMem(t)
	require.Equal(t, OK, s.Store([]byte("k"), []byte("v")))
	require.Equal(t, OK, s.FetchCallback([]byte("k"), func([]byte, any) Status { return Abort }, nil))

	_, st := fetch(t, s, "k")
	assert.Equal(t, Abort, st)
	assert.Contains(t, s.ErrLog(), "aborted")
}

func TestSession_ClosedRejectsCalls(t *testing.T) {
	s, st := Open(MemorySource, Config{})
	require.Equal(t, OK, st)
	require.Equal(t, OK, s.Close())

	assert.Equal(t, Invalid, s.Store([]byte("a"), []byte("1")))
	assert.Contains(t, s.ErrLog(), "closed")
	_, st = s.CursorInit()
	assert.Equal(t, Invalid, st)
	_, st = s.Compile(`x: 1`)
	assert.Equal(t, Invalid, st)
}

func TestSession_CloseCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	s, st := Open(path, Config{})
	require.Equal(t, OK, st)
	require.Equal(t, OK, s.Store([]byte("a"), []byte("1")))
	require.Equal(t, OK, s.Close())

	s, st = Open(path, Config{})
	require.Equal(t, OK, st)
	defer s.Close()
	got, st := fetch(t, s, "a")
	require.Equal(t, OK, st)
	assert.Equal(t, []byte("1"), got)
}

func TestSession_Rollback(t *testing.T) {
	s := openMem(t)

	require.Equal(t, OK, s.Store([]byte("kept"), []byte("1")))
	require.Equal(t, OK, s.Commit())
	require.Equal(t, OK, s.Store([]byte("dropped"), []byte("2")))
	require.Equal(t, OK, s.Rollback())

	_, st := fetch(t, s, "kept")
	assert.Equal(t, OK, st)
	_, st = fetch(t, s, "dropped")
	assert.Equal(t, NotFound, st)
}

func TestSession_CloseLogsLiveChildren(t *testing.T) {
	log, buf := testutil.CaptureLogger()
	s, st := Open(MemorySource, Config{Logger: log})
	require.Equal(t, OK, st, s.ErrLog())

	_, st = s.CursorInit()
	require.Equal(t, OK, st)
	require.Equal(t, OK, s.Close())

	assert.Contains(t, buf.String(), "closing session with live children")
	assert.Contains(t, buf.String(), "cursors=1")
}

func TestSession_ReleaseForeignChildren(t *testing.T) {
	a := openMem(t)
	b := openMem(t)

	c, st := a.CursorInit()
	require.Equal(t, OK, st)
	assert.Equal(t, Invalid, b.CursorRelease(c))
	assert.Equal(t, OK, a.CursorRelease(c))
	assert.Equal(t, Invalid, a.CursorRelease(c))

	v, st := a.Compile(`x: 1`)
	require.Equal(t, OK, st)
	assert.Equal(t, Invalid, b.VMRelease(v))
	assert.Equal(t, OK, a.VMRelease(v))
	assert.Equal(t, Invalid, a.VMRelease(v))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "NOTFOUND", NotFound.String())
	assert.Equal(t, "STATUS(99)", Status(99).String())
}
