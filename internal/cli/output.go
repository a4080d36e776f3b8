package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/YuminosukeSato/rollcast/frame"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// Output formats.
const (
	formatCSV  = "csv"
	formatJSON = "json"
)

// resolveFormat returns format, or the format implied by the extension of
// path when format is empty.
func resolveFormat(format, path string) (string, error) {
	if format == "" {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return formatJSON, nil
		}
		return formatCSV, nil
	}
	switch f := strings.ToLower(format); f {
	case formatCSV, formatJSON:
		return f, nil
	default:
		return "", errors.NewValidationError("format", "must be csv or json", format)
	}
}

// writeTable writes t to path, or to the command output when path is empty.
func (c *CLI) writeTable(t *frame.Table, path, format string) error {
	format, err := resolveFormat(format, path)
	if err != nil {
		return err
	}
	return c.withOutput(path, func(w io.Writer) error {
		if format == formatJSON {
			return frame.WriteJSON(t, w)
		}
		return frame.WriteCSV(t, w)
	})
}

// writeJSON writes v as indented JSON to path, or to the command output.
func (c *CLI) writeJSON(v interface{}, path string) error {
	return c.withOutput(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encode json")
	})
}

func (c *CLI) withOutput(path string, write func(w io.Writer) error) error {
	if path == "" {
		return write(c.output)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
