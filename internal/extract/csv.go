package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// deriveCSV renders CSV content as a markdown pipe table.
func deriveCSV(content []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1 // ragged rows are normalized below

	rows, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parsing csv: %w", err)
	}

	return formatTable(rows), nil
}

// minColumnWidth keeps degenerate single-character columns readable.
const minColumnWidth = 3

// formatTable renders rows as a markdown pipe table with padded columns.
// The first row is treated as the header. Empty input yields an empty string.
func formatTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	// Normalize column count across ragged rows.
	maxCols := 0
	for _, row := range rows {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}

	normalized := make([][]string, len(rows))
	for i, row := range rows {
		normalized[i] = make([]string, maxCols)
		copy(normalized[i], row)
	}

	widths := make([]int, maxCols)
	for c := range widths {
		widths[c] = minColumnWidth
		for _, row := range normalized {
			if len(row[c]) > widths[c] {
				widths[c] = len(row[c])
			}
		}
	}

	formatRow := func(row []string) string {
		cells := make([]string, maxCols)
		for i, cell := range row {
			cells[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}

		return "| " + strings.Join(cells, " | ") + " |"
	}

	lines := []string{formatRow(normalized[0])}

	seps := make([]string, maxCols)
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}

	lines = append(lines, "| "+strings.Join(seps, " | ")+" |")

	for _, row := range normalized[1:] {
		lines = append(lines, formatRow(row))
	}

	return strings.Join(lines, "\n")
}
