package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileVM(t *testing.T, c *Connection, src string) *VM {
	t.Helper()
	vm, err := c.Compile(src)
	require.NoError(t, err)
	return vm
}

func TestVM_ExecAppliesEffects(t *testing.T) {
	env := newEnv(t, Options{})
	c := seededConn(t, env, "stale", "x")
	vm := compileVM(t, c, `
		store: {
			greeting: "hello"
			count:    "3"
		}
		delete: ["stale"]
	`)

	ok, err := vm.Exec()
	require.NoError(t, err)
	assert.True(t, ok)

	_, v, err := c.KVFetch([]byte("greeting"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
	found, _, err := c.KVFetch([]byte("stale"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVM_OutputCallback(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `
		name:   "kv"
		output: ["hello, \(name)", '\x00\x01']
	`)

	type delivery struct {
		data     string
		n        int
		userData any
		depth    int
	}
	var got []delivery
	ok, err := vm.SetOutputCallback(func(data []byte, n int, userData any) error {
		got = append(got, delivery{string(data), n, userData, env.Depth()})
		return nil
	}, 7)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = vm.Exec()
	require.NoError(t, err)
	assert.Equal(t, []delivery{
		{"hello, kv", 9, 7, 1},
		{"\x00\x01", 2, 7, 1},
	}, got)
	assert.Equal(t, 0, env.Depth())
	assert.NoError(t, vm.CallbackErr())

	// Clearing the callback stops deliveries.
	_, err = vm.SetOutputCallback(nil, nil)
	require.NoError(t, err)
	_, err = vm.Exec()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestVM_OutputCallbackFailure(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `output: ["a", "b", "c"]`)

	var calls int
	_, err := vm.SetOutputCallback(func(data []byte, _ int, _ any) error {
		calls++
		if string(data) == "b" {
			return errors.New("host failure")
		}
		return nil
	}, nil)
	require.NoError(t, err)

	ok, err := vm.Exec()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
	assert.ErrorContains(t, vm.CallbackErr(), "host failure")

	// The next Exec starts with a clean slate.
	_, err = vm.SetOutputCallback(func([]byte, int, any) error { return nil }, nil)
	require.NoError(t, err)
	_, err = vm.Exec()
	require.NoError(t, err)
	assert.NoError(t, vm.CallbackErr())
}

func TestVM_ReleaseFromOwnCallbackIsBusy(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `output: "x"`)

	var releaseErr, closeErr error
	_, err := vm.SetOutputCallback(func([]byte, int, any) error {
		_, releaseErr = vm.Release()
		_, closeErr = c.Close()
		return nil
	}, nil)
	require.NoError(t, err)

	_, err = vm.Exec()
	require.NoError(t, err)
	assert.True(t, IsBusy(releaseErr))
	assert.True(t, IsBusy(closeErr))

	ok, err := vm.Release()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVM_ResetFromOwnCallbackIsBusy(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `
		x: 7
		output: "x"
	`)

	var resetErr error
	_, err := vm.SetOutputCallback(func([]byte, int, any) error {
		_, resetErr = vm.Reset()
		return nil
	}, nil)
	require.NoError(t, err)

	ok, err := vm.Exec()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, IsBusy(resetErr))

	n, err := vm.Int("x")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	ok, err = vm.Reset()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVM_ExecRejectsEmptyStoreKey(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `store: {"": "x"}`)

	ok, err := vm.Exec()
	assert.False(t, ok)
	assert.True(t, IsEngineError(err))
	assert.Contains(t, err.Error(), "empty key")

	cur, err := c.CreateCursor()
	require.NoError(t, err)
	ok, err = cur.FirstEntry()
	assert.False(t, ok)
	assert.True(t, IsEngineError(err))
	assert.False(t, cur.IsValidEntry())
}

func TestVM_TypedGetters(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `
		n:     41 + 1
		big:   8589934592
		ratio: 0.25
		ok:    n > 40
		name:  "kv"
	`)
	_, err := vm.Exec()
	require.NoError(t, err)

	n, err := vm.Int("n")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	big, err := vm.Int64("big")
	require.NoError(t, err)
	assert.Equal(t, int64(8589934592), big)

	ratio, err := vm.Double("ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.25, ratio)

	asDouble, err := vm.Double("n")
	require.NoError(t, err)
	assert.Equal(t, 42.0, asDouble)

	b, err := vm.Bool("ok")
	require.NoError(t, err)
	assert.True(t, b)

	s, err := vm.StringVar("name")
	require.NoError(t, err)
	assert.Equal(t, "kv", s)

	x, err := vm.ExtractVariable("name")
	require.NoError(t, err)
	assert.Equal(t, "string", x.Kind())
}

func TestVM_ExtractFailsFast(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `name: "kv"`)

	// Before execution there is nothing to extract.
	_, err := vm.Int("name")
	assert.True(t, IsEngineError(err))

	_, err = vm.Exec()
	require.NoError(t, err)

	_, err = vm.Int("missing")
	assert.True(t, IsEngineError(err))
	assert.Contains(t, err.Error(), `variable "missing" not found`)

	_, err = vm.Int("name")
	assert.True(t, IsEngineError(err))
	assert.Contains(t, err.Error(), "not int")

	_, err = vm.Bool("name")
	assert.True(t, IsEngineError(err))
}

func TestVM_BindResetReexec(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `
		limit: int
		twice: limit * 2
	`)

	_, err := vm.Exec()
	assert.True(t, IsEngineError(err), "unbound variable must fail")

	_, err = vm.Bind("limit", 5)
	require.NoError(t, err)
	_, err = vm.Exec()
	require.NoError(t, err)
	n, err := vm.Int("twice")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	ok, err := vm.Reset()
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = vm.Int("twice")
	assert.True(t, IsEngineError(err))

	_, err = vm.Bind("limit", 8)
	require.NoError(t, err)
	_, err = vm.Exec()
	require.NoError(t, err)
	n, err = vm.Int("twice")
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestVM_ReleaseTwice(t *testing.T) {
	env := newEnv(t, Options{})
	c := connect(t, env)
	vm := compileVM(t, c, `x: 1`)

	ok, err := vm.Release()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = vm.Release()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = vm.Exec()
	assert.True(t, IsHandleClosed(err))

	ok, err = c.Close()
	require.NoError(t, err)
	assert.True(t, ok)
}
