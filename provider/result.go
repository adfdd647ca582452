package provider

import "github.com/pkg/errors"

// Cell is a single value of a Result.
type Cell struct {
	Text string
	Null bool
}

// Result of running a Query. It's a rectangular grid of Cells addressed by
// row index and column name.
type Result struct {
	// Query which produced the Result.
	Query Query
	// Columns of the Result, in order.
	Columns []string
	// Rows of the Result, each having a Cell per Column.
	Rows [][]Cell
	// Affected is the number of rows changed by a statement, where known.
	Affected int64
	// LastID is the row ID of the last inserted row, where known.
	LastID int64
	// Err is a non-nil error if the Query failed.
	Err error
}

// Len returns the number of Rows.
func (r Result) Len() int { return len(r.Rows) }

// Column returns the index of |name| in Columns, or -1.
func (r Result) Column(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Get the Cell of |row| and |column|.
func (r Result) Get(row int, column string) (Cell, error) {
	if row < 0 || row >= len(r.Rows) {
		return Cell{}, errors.Errorf("row %d out of range (have %d)", row, len(r.Rows))
	}
	var ind = r.Column(column)
	if ind == -1 {
		return Cell{}, errors.Errorf("result has no column %q", column)
	}
	return r.Rows[row][ind], nil
}
