package transcript

import (
	"fmt"
	"io"
	"strings"
)

// Export renders entries in the textual format consumed by the transcript
// pane's copy and download features:
//
//	[HH:MM:SS] Speaker: message
//
// with entries joined by a blank line. This format is the persisted artifact;
// it must not change shape without versioning the download endpoint.
func Export(entries []Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05"), e.Speaker.Label(), e.Message)
	}
	return strings.Join(lines, "\n\n")
}

// WriteExport writes the export format to w.
func WriteExport(w io.Writer, entries []Entry) error {
	if _, err := io.WriteString(w, Export(entries)); err != nil {
		return fmt.Errorf("transcript: write export: %w", err)
	}
	return nil
}
