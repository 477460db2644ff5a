package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/script_effects.yaml")
	require.NoError(t, err)

	assert.Equal(t, "script_effects", sc.Name)
	assert.Len(t, sc.Steps, 9)
	assert.Equal(t, ":mem:", sc.source())
	assert.Equal(t, filepath.Join("testdata", "scripts", "effects.cue"),
		filepath.Clean(sc.resolve(sc.Steps[2].File)))
	assert.Equal(t, "/abs/x.cue", sc.resolve("/abs/x.cue"))
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: typo
description: "misspelled field"
step:
  - op: connect
`), 0o644))

	_, err := LoadScenario(path)
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "description: d\nsteps: [{op: connect}]",
			want: "name is required",
		},
		{
			name: "missing description",
			doc:  "name: n\nsteps: [{op: connect}]",
			want: "description is required",
		},
		{
			name: "no steps",
			doc:  "name: n\ndescription: d",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			doc:  "name: n\ndescription: d\nsteps: [{op: teleport}]",
			want: `unknown op "teleport"`,
		},
		{
			name: "missing on",
			doc:  "name: n\ndescription: d\nsteps: [{op: kv_fetch, key: a}]",
			want: "kv_fetch requires on",
		},
		{
			name: "bad callback",
			doc:  "name: n\ndescription: d\nsteps: [{op: kv_fetch_callback, on: db, callback: shout}]",
			want: `unknown callback mode "shout"`,
		},
		{
			name: "compile without script",
			doc:  "name: n\ndescription: d\nsteps: [{op: compile, on: db}]",
			want: "compile requires script",
		},
		{
			name: "bind without value",
			doc:  "name: n\ndescription: d\nsteps: [{op: vm_bind, on: vm, key: x}]",
			want: "vm_bind requires bind",
		},
		{
			name: "negative limit",
			doc:  "name: n\ndescription: d\nmax_buffer: -1\nsteps: [{op: connect}]",
			want: "limits must be non-negative",
		},
		{
			name: "unknown assertion",
			doc:  "name: n\ndescription: d\nsteps: [{op: connect}]\nassertions: [{type: vibes}]",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "final_state without key",
			doc:  "name: n\ndescription: d\nsteps: [{op: connect}]\nassertions: [{type: final_state, on: db}]",
			want: "on and key are required",
		},
		{
			name: "trace_order without ops",
			doc:  "name: n\ndescription: d\nsteps: [{op: connect}]\nassertions: [{type: trace_order}]",
			want: "ops list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
