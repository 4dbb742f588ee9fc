// Package extract derives diffable text companions from binary document
// formats: docx to markdown (via pandoc), PDF to plain text, and CSV to a
// markdown pipe table. Extraction is best-effort; callers treat a failed
// derivation as "no companion file", never as a fatal error.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// NativeExport describes how a natively-edited (Google-native) document is
// exported to a binary on-disk format before extraction.
type NativeExport struct {
	Format     string // extraction handler: "docx", "csv", or "pdf"
	Ext        string // file extension for the exported original
	ExportMime string // MIME type requested from the export endpoint
}

// NativeExports maps Google-native MIME types to their export target.
// These formats have no stable content hash; change detection for them
// falls back to the modification marker.
var NativeExports = map[string]NativeExport{
	"application/vnd.google-apps.document": {
		Format:     "docx",
		Ext:        ".docx",
		ExportMime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	},
	"application/vnd.google-apps.spreadsheet": {
		Format:     "csv",
		Ext:        ".csv",
		ExportMime: "text/csv",
	},
	"application/vnd.google-apps.presentation": {
		Format:     "pdf",
		Ext:        ".pdf",
		ExportMime: "application/pdf",
	},
}

// DerivedFilename returns the companion text filename for an original, or
// ok=false when the name/type combination is not extractable. For native
// documents the mime type decides the format; otherwise the extension does.
func DerivedFilename(originalName, mimeType string) (string, bool) {
	if exp, ok := NativeExports[mimeType]; ok {
		switch exp.Format {
		case "docx":
			return originalName + exp.Ext + ".md", true
		case "csv", "pdf":
			return originalName + exp.Ext + ".txt", true
		}
	}

	switch strings.ToLower(path.Ext(originalName)) {
	case ".docx":
		return originalName + ".md", true
	case ".pdf", ".csv":
		return originalName + ".txt", true
	}

	return "", false
}

// Extractor derives text from document content. The zero dependencies make
// it safe to construct inline; a logger is required for diagnostics.
type Extractor struct {
	logger *slog.Logger

	// pandocPath overrides the pandoc binary location. Empty means $PATH.
	pandocPath string
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{logger: logger}
}

// Derive extracts diffable text from content. The name is the on-disk
// original filename (post-export for native documents); its extension
// selects the handler. Returns ok=false when no handler applies.
func (e *Extractor) Derive(ctx context.Context, content []byte, name string) (string, bool, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".docx":
		text, err := e.deriveDocx(ctx, content)
		if err != nil {
			return "", true, fmt.Errorf("extract: docx %s: %w", name, err)
		}

		return text, true, nil

	case ".pdf":
		text, err := derivePDF(content)
		if err != nil {
			return "", true, fmt.Errorf("extract: pdf %s: %w", name, err)
		}

		return text, true, nil

	case ".csv":
		text, err := deriveCSV(content)
		if err != nil {
			return "", true, fmt.Errorf("extract: csv %s: %w", name, err)
		}

		return text, true, nil
	}

	e.logger.Debug("no extractor for file", "name", name)

	return "", false, nil
}
