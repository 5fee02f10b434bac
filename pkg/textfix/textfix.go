// Package textfix repairs common markdown defects in AI-generated replies.
package textfix

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// fixup is one ordered rewrite. Later fixups see the output of earlier ones.
type fixup struct {
	name  string
	apply func(string) string
}

var fixups = []fixup{
	{"valid-utf8", validUTF8},
	{"line-endings", normalizeLineEndings},
	{"trailing-space", trimTrailingSpace},
	{"heading-space", replace(`(?m)^(#{2,6})([^#\s])`, "$1 $2")},
	{"empty-emphasis", removeEmptyEmphasis},
	{"escaped-bold", replace(`\\\*\\\*`, "**")},
	{"padded-bold", tightenPaddedBold},
	{"empty-link", replace(`\[([^\]\n]+)\]\(\s*\)`, "$1")},
	{"angle-link", replace(`\[([^\]\n]+)\]\(<([^>\s]+)>\)`, "[$1]($2)")},
	{"unbalanced-bold", dropUnbalancedBold},
	{"blank-lines", replace(`\n{3,}`, "\n\n")},
	{"outer-space", strings.TrimSpace},
}

// Normalize applies every fixup in order. It never fails; text it cannot
// repair is returned as plain text.
func Normalize(text string) string {
	for _, f := range fixups {
		text = f.apply(text)
	}
	return text
}

func replace(pattern string, repl string) func(string) string {
	re := regexp.MustCompile(pattern)
	return func(s string) string {
		return re.ReplaceAllString(s, repl)
	}
}

// validUTF8 replaces each run of invalid bytes with U+FFFD, so every later
// step and the reveal see the same runes the transcript stores.
func validUTF8(text string) string {
	return strings.ToValidUTF8(text, "\uFFFD")
}

func normalizeLineEndings(text string) string {
	return strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
}

var standaloneUnderscores = regexp.MustCompile(`(?m)(^|[ \t])_{2,4}([ \t]|$)`)

func removeEmptyEmphasis(text string) string {
	text = strings.ReplaceAll(text, "****", "")
	return standaloneUnderscores.ReplaceAllString(text, "$1")
}

// dropUnbalancedBold removes the last ** on any line with an odd number of
// bold markers.
func dropUnbalancedBold(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.Count(line, "**")%2 == 0 {
			continue
		}
		idx := strings.LastIndex(line, "**")
		lines[i] = strings.TrimRight(line[:idx]+line[idx+2:], " \t")
	}
	return strings.Join(lines, "\n")
}

// trimTrailingSpace strips trailing blanks from every line but keeps a markdown
// hard break (two or more spaces after text, before another line) as exactly
// two spaces.
func trimTrailingSpace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		hardBreak := i < len(lines)-1 && trimmed != "" && strings.HasSuffix(line, "  ")
		if hardBreak {
			trimmed += "  "
		}
		lines[i] = trimmed
	}
	return strings.Join(lines, "\n")
}

var paddedBold = regexp.MustCompile(`\*\*[ \t]*([^*\n]+?)[ \t]*\*\*`)

// tightenPaddedBold rewrites "** x **" as "**x**" unless the markers read as
// the exponent operator, as in "3 ** 2" or "x ** 2".
func tightenPaddedBold(text string) string {
	var b strings.Builder
	last := 0
	for _, m := range paddedBold.FindAllStringSubmatchIndex(text, -1) {
		inner := text[m[2]:m[3]]
		if looksLikeExponent(text[:m[0]], inner) {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString("**")
		b.WriteString(inner)
		b.WriteString("**")
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func looksLikeExponent(before string, inner string) bool {
	if before = strings.TrimRight(before, " \t"); before != "" {
		if r, _ := utf8.DecodeLastRuneInString(before); unicode.IsDigit(r) || r == ')' {
			return true
		}
	}
	r, _ := utf8.DecodeRuneInString(inner)
	return unicode.IsDigit(r)
}
