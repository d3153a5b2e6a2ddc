package bbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain object", `noise {"a": 1, "b": [1,2]} trailing`, `{"a": 1, "b": [1,2]}`, true},
		{"array first", `text [1, 2, {"x": "}"}] tail`, `[1, 2, {"x": "}"}]`, true},
		{"no json", "nothing here", "", false},
		{"escaped quote in string", `{"a": "esc\"aped"}`, `{"a": "esc\"aped"}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FirstJSONObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestSafeJSONUnmarshal(t *testing.T) {
	var m map[string]any
	assert.True(t, SafeJSONUnmarshal(`{"a":1}`, &m))
	assert.False(t, SafeJSONUnmarshal(`not json`, &m))
}
