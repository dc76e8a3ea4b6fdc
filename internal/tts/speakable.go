package tts

import (
	"regexp"
	"strings"
)

// Written forms that sound wrong when read out verbatim. Order matters:
// longer forms first so "MBps" never matches as "MB".
var abbreviations = []struct {
	written string
	spoken  string
}{
	{"MBps", "megabytes per second"},
	{"Mbps", "megabits per second"},
	{"GBps", "gigabytes per second"},
	{"Gbps", "gigabits per second"},
	{"KBps", "kilobytes per second"},
	{"Kbps", "kilobits per second"},
	{"KiB/s", "kilobytes per second"},
	{"MiB/s", "megabytes per second"},
	{"TB", "terabytes"},
	{"GB", "gigabytes"},
	{"MB", "megabytes"},
	{"KB", "kilobytes"},
	{"GHz", "gigahertz"},
	{"MHz", "megahertz"},
	{"ms", "milliseconds"},
	{"CPU", "C P U"},
	{"GPU", "G P U"},
	{"RAM", "ram"},
	{"API", "A P I"},
	{"HTTP", "H T T P"},
	{"URL", "U R L"},
	{"JSON", "jason"},
	{"YAML", "yaml"},
	{"e.g.", "for example"},
	{"i.e.", "that is"},
	{"etc.", "et cetera"},
	{"vs.", "versus"},
}

var (
	abbrevRes  []*regexp.Regexp
	fenceRe    = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?|```")
	inlineRe   = regexp.MustCompile("`([^`]*)`")
	linkRe     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	emphasisRe = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	spaceRe    = regexp.MustCompile(`[ \t]+`)
)

func init() {
	for _, a := range abbreviations {
		pat := `\b` + regexp.QuoteMeta(a.written)
		// no trailing \b after "." — there is no word boundary between
		// punctuation and a space
		if last := a.written[len(a.written)-1]; last != '.' {
			pat += `\b`
		}
		abbrevRes = append(abbrevRes, regexp.MustCompile(pat))
	}
}

// Speakable rewrites model output so a synthesis voice reads it
// naturally: markdown markers go away and terse technical abbreviations
// are replaced with their spoken forms.
func Speakable(text string) string {
	text = stripMarkdown(text)
	for i, re := range abbrevRes {
		text = re.ReplaceAllString(text, abbreviations[i].spoken)
	}
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func stripMarkdown(text string) string {
	text = fenceRe.ReplaceAllString(text, "")
	text = inlineRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = emphasisRe.ReplaceAllString(text, "$2")
	text = headingRe.ReplaceAllString(text, "")
	return text
}
