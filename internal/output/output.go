// Package output serializes scan reports as text, JSON or CSV and writes
// them to stdout or atomically to a file.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lc/stampede/internal/engine"
	"github.com/lc/stampede/internal/filesys"
)

// Format identifies a report serialization.
type Format string

const (
	// FormatText emits one resolved name per line plus a comment summary.
	FormatText Format = "text"
	// FormatJSON emits the report as a single JSON document.
	FormatJSON Format = "json"
	// FormatCSV emits a name column, one row per resolved name.
	FormatCSV Format = "csv"
)

// ParseFormat maps a format name from config or flags to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, FormatJSON, FormatCSV:
		return Format(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// document is the JSON envelope around a report. Target is the base domain
// in wordlist mode and empty otherwise.
type document struct {
	Target  string         `json:"target,omitempty"`
	Results *engine.Report `json:"results"`
}

// Writer renders reports in one format.
type Writer struct {
	fs     filesys.FileOps
	format Format
}

// New returns a Writer for the given format. fs is used for file output.
func New(format Format, fs filesys.FileOps) *Writer {
	return &Writer{fs: fs, format: format}
}

// Render writes the serialized report to w.
func (w *Writer) Render(out io.Writer, target string, rep *engine.Report) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(document{Target: target, Results: rep})
	case FormatCSV:
		cw := csv.NewWriter(out)
		if err := cw.Write([]string{"name"}); err != nil {
			return err
		}
		for _, name := range rep.Resolved {
			if err := cw.Write([]string{name}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatText:
		for _, name := range rep.Resolved {
			if _, err := fmt.Fprintln(out, name); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(out, "# resolved %d of %d scanned, %d resolvers\n",
			len(rep.Resolved), rep.TotalScanned, rep.ResolversUsed)
		return err
	default:
		return fmt.Errorf("unknown output format %q", w.format)
	}
}

// WriteFile renders the report and persists it atomically to path.
func (w *Writer) WriteFile(path, target string, rep *engine.Report) error {
	var buf bytes.Buffer
	if err := w.Render(&buf, target, rep); err != nil {
		return err
	}
	return filesys.AtomicWrite(w.fs, path, buf.Bytes(), 0o644)
}
