package frame

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"github.com/goccy/go-json"
)

// IndexColumn is the header of the row index column written by WriteCSV.
// ReadCSV uses a column with this header as the index when present.
const IndexColumn = "index"

var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"NaN":  true,
	"nan":  true,
	"null": true,
}

// IsMissing reports whether s is one of the tokens read as a missing value.
func IsMissing(s string) bool {
	return missingTokens[strings.TrimSpace(s)]
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a headed CSV. A column whose non-missing values all parse as
// numbers becomes a Float column; everything else stays String. A column of
// missing tokens only is Float and all NaN. Missing tokens become NaN in
// Float columns and "" in String columns.
func ReadCSV(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "read csv: no header")
	}
	header, rows := records[0], records[1:]

	t := New(len(rows))
	for j, name := range header {
		name = strings.TrimSpace(name)
		raw := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				raw[i] = strings.TrimSpace(row[j])
			}
		}
		if name == IndexColumn {
			index, ok := parseIndex(raw)
			if ok {
				t.index = index
				continue
			}
		}
		if values, ok := parseFloats(raw); ok {
			err = t.put(&Column{Name: name, Kind: Float, floats: values})
		} else {
			for i, s := range raw {
				if IsMissing(s) {
					raw[i] = ""
				}
			}
			err = t.put(&Column{Name: name, Kind: String, strings: raw})
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseIndex(raw []string) ([]int, bool) {
	out := make([]int, len(raw))
	for i, s := range raw {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func parseFloats(raw []string) ([]float64, bool) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		if IsMissing(s) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// WriteCSVFile writes t to path with WriteCSV.
func WriteCSVFile(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := WriteCSV(t, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes t with a leading index column. NaN is written as "".
func WriteCSV(t *Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{IndexColumn}, t.Names()...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	record := make([]string, len(header))
	for i := 0; i < t.Len(); i++ {
		record[0] = strconv.Itoa(t.index[i])
		for j, c := range t.cols {
			record[j+1] = c.String(i)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write csv row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// WriteJSON writes t as a JSON array of row objects. Each object carries
// the index under IndexColumn; NaN values are written as null.
func WriteJSON(t *Table, w io.Writer) error {
	rows := make([]map[string]interface{}, t.Len())
	for i := range rows {
		row := make(map[string]interface{}, len(t.cols)+1)
		row[IndexColumn] = t.index[i]
		for _, c := range t.cols {
			if c.Kind == String {
				row[c.Name] = c.strings[i]
				continue
			}
			if v := c.floats[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				row[c.Name] = v
			} else {
				row[c.Name] = nil
			}
		}
		rows[i] = row
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(rows), "encode json")
}
