// Package table holds the in-memory record table every pipeline stage
// consumes and produces. A Table is a fixed column order plus one map per
// row; missing cells are nil.
package table

// Row is a single record. Absent and explicitly-missing cells are both
// represented as nil lookups.
type Row map[string]interface{}

type Table struct {
	Columns []string
	Rows    []Row
}

func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: []Row{}}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Copy deep-copies rows and column order. Stages copy their inputs before
// mutating so upstream tables stay intact.
func (t *Table) Copy() *Table {
	if t == nil {
		return nil
	}
	out := New(t.Columns...)
	out.Rows = make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		dup := make(Row, len(row))
		for k, v := range row {
			dup[k] = v
		}
		out.Rows = append(out.Rows, dup)
	}
	return out
}

// Project keeps the requested columns in the requested order, silently
// skipping any not present in the table. Cells for kept columns carry over
// unchanged; nothing is synthesized.
func (t *Table) Project(columns []string) *Table {
	kept := make([]string, 0, len(columns))
	for _, c := range columns {
		if t.HasColumn(c) {
			kept = append(kept, c)
		}
	}

	out := New(kept...)
	out.Rows = make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		projected := make(Row, len(kept))
		for _, c := range kept {
			if v, ok := row[c]; ok {
				projected[c] = v
			}
		}
		out.Rows = append(out.Rows, projected)
	}
	return out
}

// Rename rewrites column names according to the mapping; unmapped columns
// keep their name. Row keys are rewritten alongside.
func (t *Table) Rename(mapping map[string]string) {
	for i, c := range t.Columns {
		if renamed, ok := mapping[c]; ok {
			t.Columns[i] = renamed
		}
	}
	for _, row := range t.Rows {
		for from, to := range mapping {
			if from == to {
				continue
			}
			if v, ok := row[from]; ok {
				row[to] = v
				delete(row, from)
			}
		}
	}
}

// AddColumn appends the column if absent. Existing rows keep their cells;
// lookups on untouched rows read as nil.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}
