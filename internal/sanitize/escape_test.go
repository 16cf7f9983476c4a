package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "SELECT name FROM users", want: "SELECT name FROM users"},
		{name: "script tag", in: "<script>", want: "&lt;script&gt;"},
		{name: "ampersand", in: "a && b", want: "a &amp;&amp; b"},
		{name: "quotes", in: `say "hi" it's`, want: "say &quot;hi&quot; it&#039;s"},
		{name: "all five", in: `&<>"'`, want: "&amp;&lt;&gt;&quot;&#039;"},
		{name: "unicode untouched", in: "naïve → ü", want: "naïve → ü"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in))
		})
	}
}

func TestEscape_NotIdempotent(t *testing.T) {
	once := Escape("<b>")
	assert.Equal(t, "&amp;lt;b&amp;gt;", Escape(once))
}
