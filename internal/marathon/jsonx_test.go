package marathon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading prose", "Here you go:\n```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"unclosed fence", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"whitespace", "  {\"a\": 1}  \n", `{"a": 1}`},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripFences(tc.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "abcdef", truncate("abcdef", 10))
	assert.Equal(t, "abcdef", truncate("abcdef", 0), "zero budget means no cap")
	assert.Equal(t, "abcdef", truncate("abcdef", -1))
}
