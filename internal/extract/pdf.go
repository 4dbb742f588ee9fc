package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// derivePDF extracts plain text from PDF content, one page at a time with
// page separators. Pages with no extractable text (typically scans) are
// marked in place, and a warning header is prepended when any were found.
func derivePDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var (
		parts         []string
		hasEmptyPages bool
	)

	for i := 1; i <= reader.NumPage(); i++ {
		if i > 1 {
			parts = append(parts, fmt.Sprintf("\n--- Page %d ---\n", i))
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			hasEmptyPages = true
			parts = append(parts, fmt.Sprintf("[Page %d: no extractable text (possibly scanned)]", i))

			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			hasEmptyPages = true
			parts = append(parts, fmt.Sprintf("[Page %d: no extractable text (possibly scanned)]", i))

			continue
		}

		parts = append(parts, text)
	}

	result := strings.Join(parts, "\n")
	if hasEmptyPages {
		result = "WARNING: Some pages contain no extractable text (scanned/image-only).\n\n" + result
	}

	return result, nil
}
