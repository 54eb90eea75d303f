package group

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FeatureTable is a rows x features matrix with one binary label per row.
// X is nil when the table has no rows.
type FeatureTable struct {
	Features []string
	X        *mat.Dense
	Y        []int
}

// NewFeatureTable builds a table from row slices. Labels must be 0 or 1.
func NewFeatureTable(features []string, rows [][]float64, labels []int) (*FeatureTable, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("feature table needs at least one feature")
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("row count %d does not match label count %d", len(rows), len(labels))
	}

	data := make([]float64, 0, len(rows)*len(features))
	for i, row := range rows {
		if len(row) != len(features) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(features))
		}
		data = append(data, row...)
	}
	for i, y := range labels {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("row %d has label %d, expected 0 or 1", i, y)
		}
	}
	return fromRaw(features, data, append([]int(nil), labels...)), nil
}

func fromRaw(features []string, data []float64, labels []int) *FeatureTable {
	t := &FeatureTable{
		Features: append([]string(nil), features...),
		Y:        labels,
	}
	if len(labels) > 0 {
		t.X = mat.NewDense(len(labels), len(features), data)
	}
	return t
}

// Rows returns the number of samples.
func (t *FeatureTable) Rows() int {
	if t == nil {
		return 0
	}
	return len(t.Y)
}

// Cols returns the number of features.
func (t *FeatureTable) Cols() int {
	if t == nil {
		return 0
	}
	return len(t.Features)
}

// Row returns a view of row i. The slice aliases the table and must not be modified.
func (t *FeatureTable) Row(i int) []float64 {
	return t.X.RawRowView(i)
}

// Column returns a copy of column j.
func (t *FeatureTable) Column(j int) []float64 {
	if t.Rows() == 0 {
		return nil
	}
	return mat.Col(nil, j, t.X)
}

// FeatureIndex returns the column index of name, or -1.
func (t *FeatureTable) FeatureIndex(name string) int {
	for i, f := range t.Features {
		if f == name {
			return i
		}
	}
	return -1
}

// ClassCounts returns the number of rows labelled 0 and 1.
func (t *FeatureTable) ClassCounts() [2]int {
	var counts [2]int
	for _, y := range t.Y {
		counts[y]++
	}
	return counts
}

// SingleClass reports whether fewer than two classes are present.
func (t *FeatureTable) SingleClass() bool {
	c := t.ClassCounts()
	return c[0] == 0 || c[1] == 0
}

// Clone returns a deep copy.
func (t *FeatureTable) Clone() *FeatureTable {
	return t.Subset(identity(t.Rows()))
}

// Subset returns a new table holding the given rows in the given order.
func (t *FeatureTable) Subset(rows []int) *FeatureTable {
	cols := t.Cols()
	data := make([]float64, 0, len(rows)*cols)
	labels := make([]int, len(rows))
	for k, i := range rows {
		data = append(data, t.Row(i)...)
		labels[k] = t.Y[i]
	}
	return fromRaw(t.Features, data, labels)
}

// Select returns a new table restricted to the named features, in the given order.
func (t *FeatureTable) Select(features []string) (*FeatureTable, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("no features selected")
	}
	idx := make([]int, len(features))
	for k, name := range features {
		j := t.FeatureIndex(name)
		if j < 0 {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		idx[k] = j
	}

	n := t.Rows()
	data := make([]float64, 0, n*len(idx))
	for i := 0; i < n; i++ {
		row := t.Row(i)
		for _, j := range idx {
			data = append(data, row[j])
		}
	}
	return fromRaw(features, data, append([]int(nil), t.Y...)), nil
}

// WithColumn returns a new table with an extra trailing feature.
func (t *FeatureTable) WithColumn(name string, values []float64) (*FeatureTable, error) {
	if len(values) != t.Rows() {
		return nil, fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.Rows())
	}
	if t.FeatureIndex(name) >= 0 {
		return nil, fmt.Errorf("feature %q already present", name)
	}

	features := append(append([]string(nil), t.Features...), name)
	data := make([]float64, 0, t.Rows()*len(features))
	for i := 0; i < t.Rows(); i++ {
		data = append(data, t.Row(i)...)
		data = append(data, values[i])
	}
	return fromRaw(features, data, append([]int(nil), t.Y...)), nil
}

// Concat stacks tables vertically in argument order. All tables must share the same features.
func Concat(tables ...*FeatureTable) (*FeatureTable, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("nothing to concatenate")
	}
	features := tables[0].Features
	total := 0
	for k, t := range tables {
		if !sameFeatures(features, t.Features) {
			return nil, fmt.Errorf("table %d has features %v, expected %v", k, t.Features, features)
		}
		total += t.Rows()
	}

	data := make([]float64, 0, total*len(features))
	labels := make([]int, 0, total)
	for _, t := range tables {
		for i := 0; i < t.Rows(); i++ {
			data = append(data, t.Row(i)...)
		}
		labels = append(labels, t.Y...)
	}
	return fromRaw(features, data, labels), nil
}

// SameFeatures reports whether two tables have identical feature lists.
func (t *FeatureTable) SameFeatures(other *FeatureTable) bool {
	return sameFeatures(t.Features, other.Features)
}

func sameFeatures(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

type tableJSON struct {
	Features []string    `json:"features"`
	Rows     [][]float64 `json:"rows"`
	Labels   []int       `json:"labels"`
}

// MarshalJSON writes the table as row slices with a parallel label list.
func (t *FeatureTable) MarshalJSON() ([]byte, error) {
	w := tableJSON{Features: t.Features, Rows: make([][]float64, t.Rows()), Labels: t.Y}
	for i := range w.Rows {
		w.Rows[i] = t.Row(i)
	}
	if w.Labels == nil {
		w.Labels = []int{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON validates the rows the way NewFeatureTable does.
func (t *FeatureTable) UnmarshalJSON(data []byte) error {
	var w tableJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	table, err := NewFeatureTable(w.Features, w.Rows, w.Labels)
	if err != nil {
		return err
	}
	*t = *table
	return nil
}
