package testutil

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedIDs_InOrder(t *testing.T) {
	ids := NewFixedIDs("a", "b")

	assert.Equal(t, "a", ids.Generate())
	assert.Equal(t, 1, ids.Remaining())
	assert.Equal(t, "b", ids.Generate())
	assert.Equal(t, 0, ids.Remaining())
}

func TestFixedIDs_PanicsWhenExhausted(t *testing.T) {
	ids := NewFixedIDs("only")
	ids.Generate()

	assert.PanicsWithValue(t, "FixedIDs: all IDs exhausted", func() {
		ids.Generate()
	})
}

func TestFixedIDs_ThreadSafe(t *testing.T) {
	all := make([]string, 100)
	for i := range all {
		all[i] = "id"
	}
	ids := NewFixedIDs(all...)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ids.Generate()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, ids.Remaining())
}

func TestWriteScript(t *testing.T) {
	path := WriteScript(t, "s.cue", "x: 1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x: 1", string(data))
}

func TestTempDB_DoesNotExist(t *testing.T) {
	_, err := os.Stat(TempDB(t))
	assert.True(t, os.IsNotExist(err))
}

func TestCaptureLogger(t *testing.T) {
	log, buf := CaptureLogger()
	log.Debug("hello", "k", "v")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}
