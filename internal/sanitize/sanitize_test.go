package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "I like hiking", "I like hiking"},
		{"accents and emoji", "Amélie 🌸", "Amélie 🌸"},
		{"tags removed", "<b>bold</b> and <script>alert(1)</script>text", "bold and text"},
		{"entities kept as characters", "Tom &amp; Jerry <3", "Tom & Jerry <3"},
		{"control characters", "a\x00b\x07c", "abc"},
		{"blank lines collapsed", "line one\n\n\n\n  line two  ", "line one\n\nline two"},
		{"inner spaces collapsed", "too    many\t spaces", "too many spaces"},
		{"only whitespace", "  \n\t ", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Text(tt.input))
		})
	}
}

func TestLine(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Kofi Mensah", Line("  Kofi\n\nMensah "))
	assert.Equal(t, "Kofi", Line("<i>Kofi</i>"))
}

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no markup", "Users: 3", "Users: 3"},
		{"report lines kept", "📊 <b>Bot statistics</b>\n\nUsers: <b>3</b>\nMatches: <b>1</b>", "📊 Bot statistics\n\nUsers: 3\nMatches: 1"},
		{"entities decoded once", "<i>Tom &amp; Jerry</i> &lt;3", "Tom & Jerry <3"},
		{"spacing untouched", "a  <b>b</b>\t c", "a  b\t c"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripMarkup(tt.input))
		})
	}
}
