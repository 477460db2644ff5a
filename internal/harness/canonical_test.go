package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", map[string]any{"b": 1, "a": true, "c": "x"}, `{"a":true,"b":1,"c":"x"}`},
		{"nested", map[string]any{"z": []any{int64(1), "two"}}, `{"z":[1,"two"]}`},
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"control characters", "a\x00b\n", `"a\u0000b\n"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash kept", `\u2028`, `"\\u2028"`},
		// U+1F600 sorts after U+FF61 by UTF-8 bytes but before it by UTF-16
		// code units.
		{"utf16 order", map[string]any{"\uff61": 2, "\U0001F600": 1}, "{\"\U0001F600\":1,\"\uff61\":2}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.ErrorContains(t, err, "null is forbidden")

	_, err = MarshalCanonical(map[string]any{"f": 0.5})
	assert.ErrorContains(t, err, "floats are forbidden")

	_, err = MarshalCanonical(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")
}

func TestMarshalTrace(t *testing.T) {
	value := "v"
	result := NewResult()
	result.Trace = append(result.Trace,
		TraceEvent{Seq: 1, Type: EventOp, Op: "kv_fetch", On: "db", Key: "k", Found: ptr(true), Value: &value},
		TraceEvent{Seq: 2, Type: EventCallback, Op: "fetch_callback", On: "db", Data: ptr(""), N: 0},
	)

	got, err := MarshalTrace("t", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"t","trace":[`+
			`{"found":true,"key":"k","on":"db","op":"kv_fetch","seq":1,"type":"op","value":"v"},`+
			`{"data":"","n":0,"on":"db","op":"fetch_callback","seq":2,"type":"callback"}]}`,
		string(got))
}
