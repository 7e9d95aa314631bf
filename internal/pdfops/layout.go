package pdfops

import (
	"strconv"
	"strings"
	"unicode"
)

// block is one paragraph recovered from extracted page text.
type block struct {
	Text    string
	Heading bool
}

// pageBlocks turns raw page text into paragraphs. Blank lines separate
// paragraphs; wrapped lines inside one are joined.
func pageBlocks(raw string, pageNum int) []block {
	var (
		out     []block
		current []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		text := joinWrapped(current)
		out = append(out, block{Text: text, Heading: looksLikeHeading(text, len(current))})
		current = current[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if isPageNumber(trimmed, pageNum) || isNoise(trimmed) {
			continue
		}
		current = append(current, trimmed)
	}
	flush()
	return out
}

// joinWrapped merges lines of one paragraph. A trailing hyphen before a
// lowercase continuation is treated as a word break.
func joinWrapped(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i == 0 {
			b.WriteString(l)
			continue
		}
		prev := lines[i-1]
		if strings.HasSuffix(prev, "-") && startsLower(l) {
			s := b.String()
			b.Reset()
			b.WriteString(strings.TrimSuffix(s, "-"))
			b.WriteString(l)
			continue
		}
		b.WriteByte(' ')
		b.WriteString(l)
	}
	return b.String()
}

// looksLikeHeading: a short single line without closing punctuation.
func looksLikeHeading(text string, lines int) bool {
	if lines != 1 || len(text) > 80 || len(strings.Fields(text)) > 10 {
		return false
	}
	last := text[len(text)-1]
	if strings.ContainsRune(".,;:!?", rune(last)) {
		return false
	}
	first := []rune(text)[0]
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return false
	}
	return strings.IndexFunc(text, unicode.IsLetter) >= 0
}

func isPageNumber(line string, pageNum int) bool {
	n := strconv.Itoa(pageNum)
	if line == n {
		return true
	}
	for _, p := range []string{"Page " + n, "- " + n + " -", "[" + n + "]"} {
		if strings.EqualFold(line, p) {
			return true
		}
	}
	return false
}

// isNoise reports lines made only of punctuation or symbols.
func isNoise(line string) bool {
	return strings.IndexFunc(line, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) < 0
}

func startsLower(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}
