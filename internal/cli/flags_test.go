package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kvbridge/internal/bridge"
)

func TestSeekModeValue(t *testing.T) {
	var v seekModeValue
	assert.Equal(t, "exact", v.String())
	assert.Equal(t, "mode", v.Type())

	require.NoError(t, v.Set("GE"))
	assert.Equal(t, bridge.SeekGE, v.mode)
	assert.Equal(t, "ge", v.String())

	assert.Error(t, v.Set("sideways"))
	assert.Equal(t, bridge.SeekGE, v.mode, "a rejected value leaves the flag unchanged")
}

func TestCodecValue(t *testing.T) {
	var v codecValue
	assert.Equal(t, "", v.String())

	require.NoError(t, v.Set("ZSTD"))
	assert.Equal(t, "zstd", v.String())

	err := v.Set("gzip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")
	assert.Equal(t, "zstd", v.String())
}
