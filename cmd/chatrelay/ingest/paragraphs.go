package ingestcmder

import "strings"

// Paragraphs splits text on blank lines, joining the lines of each
// paragraph with single spaces. Whitespace-only paragraphs are dropped.
func Paragraphs(text string) []string {
	var (
		out     []string
		current []string
	)

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return out
}
