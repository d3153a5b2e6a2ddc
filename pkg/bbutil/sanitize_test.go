package bbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"strips control chars", "a\x00b\x1fc", "abc"},
		{"normalizes crlf", "a\r\nb", "a\nb"},
		{"normalizes lone cr", "a\rb", "a\nb"},
		{"leaves tab and newline", "a\tb\nc", "a\tb\nc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeText(tc.in))
		})
	}
}

func TestSafeFormat(t *testing.T) {
	out := SafeFormat("Hello {name}, json: {not_a_key}", map[string]string{"name": "World"})
	assert.Equal(t, "Hello World, json: {not_a_key}", out)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "hello-world", Slug("Hello World!!", "fallback"))
	assert.Equal(t, "fallback", Slug("###", "fallback"))
}

func TestEnsureHeader(t *testing.T) {
	ok, patch := EnsureHeader("## Analysis\n\nbody", "Analysis")
	assert.True(t, ok)
	assert.Nil(t, patch)

	ok, patch = EnsureHeader("no headers here", "Analysis")
	assert.False(t, ok)
	assert.Equal(t, "2", patch["level"])
	assert.Equal(t, "Analysis", patch["title"])
}
