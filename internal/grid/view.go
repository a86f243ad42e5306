package grid

import (
	"slices"
	"strings"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// Search keeps rows where any field's string form contains term,
// case-insensitively. An empty term returns rows unchanged.
func Search(rows []ir.Row, term string) []ir.Row {
	if term == "" {
		return rows
	}
	needle := ir.Fold(term)

	out := make([]ir.Row, 0, len(rows))
	for _, r := range rows {
		for _, v := range r.Values() {
			if ir.ContainsFold(ir.String(v), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Sort orders rows by the string form of col, stably.
//
// Ordering is lexicographic on the rendered text, so 10 sorts before 9 and
// Null (rendered "") sorts first ascending. This is the grid's contract, not
// an oversight; use SortTyped for value ordering. A non-sortable column
// leaves rows as they are.
func Sort(rows []ir.Row, col queryir.ColumnDescriptor, dir Direction) []ir.Row {
	return sortBy(rows, col, dir, func(a, b ir.Value) int {
		return strings.Compare(ir.String(a), ir.String(b))
	})
}

// SortTyped orders rows by value: Null < numbers < dates < text, stably.
func SortTyped(rows []ir.Row, col queryir.ColumnDescriptor, dir Direction) []ir.Row {
	return sortBy(rows, col, dir, ir.Compare)
}

func sortBy(rows []ir.Row, col queryir.ColumnDescriptor, dir Direction, cmp func(a, b ir.Value) int) []ir.Row {
	if !col.Sortable {
		return rows
	}
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b ir.Row) int {
		c := cmp(a.Get(col.Key), b.Get(col.Key))
		if dir == Desc {
			return -c
		}
		return c
	})
	return out
}

// Paginate returns page of rows. page is clamped to [0, pageCount-1].
func Paginate(rows []ir.Row, page, pageSize int) (Window, error) {
	if pageSize <= 0 {
		return Window{}, ErrInvalidPageSize
	}

	total := len(rows)
	pageCount := (total + pageSize - 1) / pageSize
	page = max(min(page, pageCount-1), 0)

	start := min(page*pageSize, total)
	end := min(start+pageSize, total)

	w := Window{
		Rows:      make([]ir.Row, end-start),
		Page:      page,
		PageSize:  pageSize,
		PageCount: pageCount,
		Total:     total,
	}
	copy(w.Rows, rows[start:end])
	if end > start {
		w.From, w.To = start+1, end
	}
	return w, nil
}

// View applies search, then sort, then paginate. The order is fixed.
// A sort on a column missing from columns is ignored.
func View(rows []ir.Row, columns []queryir.ColumnDescriptor, state State) (Window, error) {
	visible := Search(rows, state.SearchTerm)

	if state.Sort != nil {
		if col, ok := queryir.FindColumn(columns, state.Sort.Column); ok {
			if state.TypedSort {
				visible = SortTyped(visible, col, state.Sort.Direction)
			} else {
				visible = Sort(visible, col, state.Sort.Direction)
			}
		}
	}

	return Paginate(visible, state.Page, state.PageSize)
}
