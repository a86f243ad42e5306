package grid

import (
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// Grid holds the view state over one fetched result.
//
// Each setter returns the recomputed window. The rows are never modified.
// A Grid belongs to a single owner and is not safe for concurrent use.
type Grid struct {
	rows    []ir.Row
	columns []queryir.ColumnDescriptor
	state   State
}

// New creates a grid over rows. pageSize <= 0 is rejected.
func New(rows []ir.Row, columns []queryir.ColumnDescriptor, pageSize int) (*Grid, error) {
	if pageSize <= 0 {
		return nil, ErrInvalidPageSize
	}
	return &Grid{
		rows:    rows,
		columns: columns,
		state:   State{PageSize: pageSize},
	}, nil
}

// Columns returns the column descriptors of the grid.
func (g *Grid) Columns() []queryir.ColumnDescriptor {
	return g.columns
}

// State returns a copy of the current state.
func (g *Grid) State() State {
	s := g.state
	if s.Sort != nil {
		k := *s.Sort
		s.Sort = &k
	}
	return s
}

// Current recomputes the visible window.
func (g *Grid) Current() Window {
	w, _ := View(g.rows, g.columns, g.state) // PageSize is always positive here
	return w
}

// SetSearchTerm filters rows and returns to the first page.
func (g *Grid) SetSearchTerm(term string) Window {
	g.state.SearchTerm = term
	g.state.Page = 0
	return g.Current()
}

// SetSort sorts by column. Unknown or non-sortable columns are ignored.
func (g *Grid) SetSort(column string, dir Direction) Window {
	if col, ok := queryir.FindColumn(g.columns, column); ok && col.Sortable {
		g.state.Sort = &SortKey{Column: column, Direction: dir}
	}
	return g.Current()
}

// ToggleSort behaves like clicking a column header: a new column sorts
// ascending, the ascending column flips to descending, and a descending one
// goes back to ascending.
func (g *Grid) ToggleSort(column string) Window {
	dir := Asc
	if s := g.state.Sort; s != nil && s.Column == column && s.Direction == Asc {
		dir = Desc
	}
	return g.SetSort(column, dir)
}

// ClearSort restores the fetched order.
func (g *Grid) ClearSort() Window {
	g.state.Sort = nil
	return g.Current()
}

// SetTypedSort switches between string-form and typed ordering.
func (g *Grid) SetTypedSort(typed bool) Window {
	g.state.TypedSort = typed
	return g.Current()
}

// SetPage moves to page n, clamped to the available pages.
func (g *Grid) SetPage(n int) Window {
	g.state.Page = n
	w := g.Current()
	g.state.Page = w.Page
	return w
}

// SetPageSize changes the page size and returns to the first page.
func (g *Grid) SetPageSize(n int) (Window, error) {
	if n <= 0 {
		return Window{}, ErrInvalidPageSize
	}
	g.state.PageSize = n
	g.state.Page = 0
	return g.Current(), nil
}
