package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/GriffinCanCode/monolith/internal/policy"
)

var titleReplacer = strings.NewReplacer(
	"/", "_",
	`\`, "_",
	"<", "[",
	">", "]",
	":", " - ",
	`"`, "",
	"|", "-",
	"?", "",
)

// FormatOutputPath expands the placeholders of an output path:
// %title%, %timestamp%, %ext% and %extension%. The title is made safe
// for use as a file name.
func FormatOutputPath(path, title string, format policy.Format, at time.Time) string {
	timestamp := strings.ReplaceAll(at.UTC().Format(time.RFC3339), ":", "_")

	ext, extension := "htm", "html"
	if format == policy.FormatMHTML {
		ext, extension = "mht", "mhtml"
	}

	return strings.NewReplacer(
		"%timestamp%", timestamp,
		"%title%", strings.TrimLeft(titleReplacer.Replace(title), "."),
		"%extension%", extension,
		"%ext%", ext,
	).Replace(path)
}

// writeOutput writes the document to stdout for "-" or an empty path, and
// to the expanded path otherwise.
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
