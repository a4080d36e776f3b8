// Package frame provides the ordered, index-addressable table that the
// forecast engine, the trainer and the error aggregation read and write.
//
// A Table keeps an integer row index next to its columns. Operations that
// select rows keep the original index values, so a prediction table built
// from several per-key fragments still points back at the input rows.
// Missing numeric values are NaN.
package frame

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/rollcast/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ColumnKind is the storage type of a column.
type ColumnKind int

const (
	// Float columns hold float64 values, NaN marks a missing value.
	Float ColumnKind = iota
	// String columns hold raw text, "" marks a missing value.
	String
)

func (k ColumnKind) String() string {
	if k == Float {
		return "float"
	}
	return "string"
}

// Column is a named, typed column.
type Column struct {
	Name    string
	Kind    ColumnKind
	floats  []float64
	strings []string
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	if c.Kind == Float {
		return len(c.floats)
	}
	return len(c.strings)
}

// Float returns the i-th value of a float column, or the parsed value of a
// string column (NaN when it does not parse).
func (c *Column) Float(i int) float64 {
	if c.Kind == Float {
		return c.floats[i]
	}
	v, err := strconv.ParseFloat(c.strings[i], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// String returns the i-th value as text. Float values use the shortest
// representation; NaN becomes "".
func (c *Column) String(i int) string {
	if c.Kind == String {
		return c.strings[i]
	}
	return FormatFloat(c.floats[i])
}

// FormatFloat formats v with the shortest exact representation and NaN as "".
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Float {
		out.floats = make([]float64, len(rows))
		for i, r := range rows {
			out.floats[i] = c.floats[r]
		}
		return out
	}
	out.strings = make([]string, len(rows))
	for i, r := range rows {
		out.strings[i] = c.strings[r]
	}
	return out
}

// Table is an ordered collection of equally long columns with a row index.
type Table struct {
	index  []int
	cols   []*Column
	byName map[string]int
}

// New creates an empty table with n rows indexed 0..n-1.
func New(n int) *Table {
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}
	return NewWithIndex(index)
}

// NewWithIndex creates an empty table using the given row index.
// Index values need not be unique or sorted.
func NewWithIndex(index []int) *Table {
	idx := make([]int, len(index))
	copy(idx, index)
	return &Table{index: idx, byName: make(map[string]int)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.index)
}

// Index returns a copy of the row index.
func (t *Table) Index() []int {
	out := make([]int, len(t.index))
	copy(out, t.index)
	return out
}

// IndexAt returns the index label of row position i.
func (t *Table) IndexAt(i int) int {
	return t.index[i]
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table has a column named name.
func (t *Table) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

func (t *Table) put(c *Column) error {
	if c.Len() != t.Len() {
		return errors.NewDimensionError("frame.Add("+c.Name+")", t.Len(), c.Len(), 0)
	}
	if pos, ok := t.byName[c.Name]; ok {
		t.cols[pos] = c
		return nil
	}
	t.byName[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// AddFloat adds or replaces a float column. The slice is copied.
func (t *Table) AddFloat(name string, values []float64) error {
	v := make([]float64, len(values))
	copy(v, values)
	return t.put(&Column{Name: name, Kind: Float, floats: v})
}

// AddString adds or replaces a string column. The slice is copied.
func (t *Table) AddString(name string, values []string) error {
	v := make([]string, len(values))
	copy(v, values)
	return t.put(&Column{Name: name, Kind: String, strings: v})
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	pos, ok := t.byName[name]
	if !ok {
		return nil, errors.NewColumnError(name, "not found")
	}
	return t.cols[pos], nil
}

// Floats returns a copy of a float column.
func (t *Table) Floats(name string) ([]float64, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Float {
		return nil, errors.NewColumnError(name, "not numeric")
	}
	out := make([]float64, len(c.floats))
	copy(out, c.floats)
	return out, nil
}

// Strings returns the text form of any column.
func (t *Table) Strings(name string) ([]string, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.String(i)
	}
	return out, nil
}

// Take returns a new table with the rows at the given positions, in that
// order, keeping their index labels.
func (t *Table) Take(rows []int) *Table {
	index := make([]int, len(rows))
	for i, r := range rows {
		index[i] = t.index[r]
	}
	out := &Table{index: index, byName: make(map[string]int, len(t.cols))}
	for _, c := range t.cols {
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.take(rows))
	}
	return out
}

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := NewWithIndex(t.index)
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if err := out.put(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := NewWithIndex(t.index)
	for _, c := range t.cols {
		if !skip[c.Name] {
			out.byName[c.Name] = len(out.cols)
			out.cols = append(out.cols, c)
		}
	}
	return out
}

// Concat appends tables row-wise. All tables must have the same column
// names and kinds as the first one. The result keeps every index label,
// duplicates included.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return New(0), nil
	}
	first := tables[0]
	var index []int
	for _, t := range tables {
		index = append(index, t.index...)
	}
	out := NewWithIndex(index)
	for _, c := range first.cols {
		merged := &Column{Name: c.Name, Kind: c.Kind}
		for _, t := range tables {
			other, err := t.Column(c.Name)
			if err != nil {
				return nil, err
			}
			if other.Kind != c.Kind {
				return nil, errors.NewColumnError(c.Name, "kind mismatch in concat: "+c.Kind.String()+" vs "+other.Kind.String())
			}
			merged.floats = append(merged.floats, other.floats...)
			merged.strings = append(merged.strings, other.strings...)
		}
		if err := out.put(merged); err != nil {
			return nil, err
		}
	}
	for _, t := range tables[1:] {
		if len(t.cols) != len(first.cols) {
			return nil, errors.NewDimensionError("frame.Concat", len(first.cols), len(t.cols), 1)
		}
	}
	return out, nil
}

// Group is the set of row positions sharing one key value.
type Group struct {
	Key  string
	Rows []int
}

// GroupBy partitions rows by the text value of column key.
// Groups are returned in first-seen order and rows keep table order.
func (t *Table) GroupBy(key string) ([]Group, error) {
	c, err := t.Column(key)
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int)
	var groups []Group
	for i := 0; i < c.Len(); i++ {
		k := c.String(i)
		g, ok := pos[k]
		if !ok {
			g = len(groups)
			pos[k] = g
			groups = append(groups, Group{Key: k})
		}
		groups[g].Rows = append(groups[g].Rows, i)
	}
	return groups, nil
}

// Matrix returns the named float columns as an n × len(cols) matrix.
func (t *Table) Matrix(cols []string) (*mat.Dense, error) {
	if t.Len() == 0 || len(cols) == 0 {
		return nil, errors.NewModelError("frame.Matrix", "empty selection", errors.ErrEmptyData)
	}
	m := mat.NewDense(t.Len(), len(cols), nil)
	for j, name := range cols {
		values, err := t.Floats(name)
		if err != nil {
			return nil, err
		}
		m.SetCol(j, values)
	}
	return m, nil
}

// Vector returns a float column as an n × 1 matrix.
func (t *Table) Vector(col string) (*mat.Dense, error) {
	return t.Matrix([]string{col})
}
