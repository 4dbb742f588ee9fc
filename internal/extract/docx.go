package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// pandocTimeout bounds a single conversion. Large documents with embedded
// media can take a while; anything beyond this is treated as a failure.
const pandocTimeout = 60 * time.Second

// deriveDocx converts docx content to markdown by invoking pandoc.
// Track changes are rendered inline so reviewer edits survive the
// conversion, and wrapping is disabled to keep diffs line-stable.
func (e *Extractor) deriveDocx(ctx context.Context, content []byte) (string, error) {
	pandoc := e.pandocPath
	if pandoc == "" {
		var err error

		pandoc, err = exec.LookPath("pandoc")
		if err != nil {
			return "", fmt.Errorf("pandoc not found: %w", err)
		}
	}

	tmp, err := os.CreateTemp("", "drivegit-*.docx")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pandocTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, pandoc,
		"--from=docx", "--to=markdown",
		"--track-changes=all", "--wrap=none",
		tmp.Name(),
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pandoc: %w (stderr: %s)", err, stderr.String())
	}

	return Postprocess(stdout.String()), nil
}
