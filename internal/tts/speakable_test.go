package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakableAbbreviations(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"the link does 100 Mbps", "the link does 100 megabits per second"},
		{"copied 2 GB in 4 s", "copied 2 gigabytes in 4 s"},
		{"disk reads at 550 MBps", "disk reads at 550 megabytes per second"},
		{"use the API, e.g. the REST one", "use the A P I, for example the REST one"},
		{"latency was 20 ms", "latency was 20 milliseconds"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Speakable(tt.in))
	}
}

func TestSpeakableLongestFormWins(t *testing.T) {
	// MBps must not be read as "megabytes ps"
	got := Speakable("10 MBps and 5 MB")
	assert.Equal(t, "10 megabytes per second and 5 megabytes", got)
}

func TestSpeakableStripsMarkdown(t *testing.T) {
	in := "## Result\nRun `make test` first.\nSee [the docs](https://example.com) for **details**.\n```go\nfmt.Println(\"hi\")\n```"
	got := Speakable(in)

	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "`")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "https://example.com")
	assert.Contains(t, got, "Run make test first.")
	assert.Contains(t, got, "See the docs for details.")
}

func TestSpeakableWhitespace(t *testing.T) {
	assert.Equal(t, "a b", Speakable("  a \t  b  "))
	assert.Equal(t, "", Speakable("   "))
	assert.Equal(t, "", Speakable("```\n```"))
}

func TestSpeakablePlainTextUntouched(t *testing.T) {
	in := "The quick brown fox jumps over the lazy dog."
	assert.Equal(t, in, Speakable(in))
}
