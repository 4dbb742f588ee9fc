package extract

import (
	"regexp"
	"strings"
)

// Pandoc's markdown writer emits constructs that add noise to diffs:
// fenced div wrappers around lists, {.underline} spans, and simple tables
// whose column alignment shifts with cell width. Postprocess rewrites all
// three into stable equivalents.

var (
	fencedDivOpen  = regexp.MustCompile(`(?m)^:::[ \t]*\{[^}]*\}[ \t]*$\n?`)
	fencedDivClose = regexp.MustCompile(`(?m)^:::[ \t]*$\n?`)
	underlineSpan  = regexp.MustCompile(`\[([^\]]+)\]\{\.underline\}`)
	dashRun        = regexp.MustCompile(`-{2,}`)
	dashGroup      = regexp.MustCompile(`^-{2,}$`)
)

// Postprocess applies all cleanup steps to pandoc markdown output.
func Postprocess(markdown string) string {
	out := stripFencedDivs(markdown)
	out = cleanUnderlineSpans(out)
	out = simpleTablesToPipe(out)

	return out
}

// stripFencedDivs removes ::: fenced div wrappers, keeping their content.
func stripFencedDivs(text string) string {
	text = fencedDivOpen.ReplaceAllString(text, "")

	return fencedDivClose.ReplaceAllString(text, "")
}

// cleanUnderlineSpans converts [text]{.underline} to <u>text</u>.
func cleanUnderlineSpans(text string) string {
	return underlineSpan.ReplaceAllString(text, "<u>$1</u>")
}

// simpleTablesToPipe converts pandoc simple tables (header, dash separator,
// body rows) into pipe tables.
func simpleTablesToPipe(text string) string {
	lines := strings.Split(text, "\n")

	var result []string

	for i := 0; i < len(lines); {
		if !isSimpleTableSeparator(lines[i]) {
			result = append(result, lines[i])
			i++

			continue
		}

		spans := columnSpans(lines[i])
		if len(spans) == 0 || i == 0 {
			result = append(result, lines[i])
			i++

			continue
		}

		// Previous line is the header; replace the copy already emitted.
		header := lines[i-1]
		if len(result) > 0 && result[len(result)-1] == header {
			result = result[:len(result)-1]
		}

		headerCells := extractCells(header, spans)
		result = append(result, "| "+strings.Join(headerCells, " | ")+" |")

		var seps []string
		for _, c := range headerCells {
			seps = append(seps, strings.Repeat("-", len(c)))
		}

		result = append(result, "| "+strings.Join(seps, " | ")+" |")

		// Body rows run until a blank line or end of input.
		for i++; i < len(lines) && strings.TrimSpace(lines[i]) != ""; i++ {
			cells := extractCells(lines[i], spans)
			result = append(result, "| "+strings.Join(cells, " | ")+" |")
		}
	}

	return strings.Join(result, "\n")
}

// isSimpleTableSeparator reports whether a line looks like '---- -----':
// at least two groups of two-or-more dashes separated by whitespace.
func isSimpleTableSeparator(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return false
	}

	for _, f := range fields {
		if !dashGroup.MatchString(f) {
			return false
		}
	}

	return true
}

// columnSpans returns the (start, end) byte positions of each dash run in
// a separator line.
func columnSpans(sep string) [][2]int {
	var spans [][2]int

	for _, loc := range dashRun.FindAllStringIndex(sep, -1) {
		spans = append(spans, [2]int{loc[0], loc[1]})
	}

	return spans
}

// extractCells slices a table row into cells using the separator's column
// positions, trimming surrounding whitespace.
func extractCells(line string, spans [][2]int) []string {
	var cells []string

	for _, span := range spans {
		start, end := span[0], span[1]
		if start > len(line) {
			cells = append(cells, "")
			continue
		}

		if end > len(line) {
			end = len(line)
		}

		cells = append(cells, strings.TrimSpace(line[start:end]))
	}

	return cells
}
