package grid

import (
	"errors"
	"strings"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
)

// DefaultPageSize is the grid page size when none is configured.
const DefaultPageSize = 20

// ErrInvalidPageSize is returned for a page size <= 0.
var ErrInvalidPageSize = errors.New("page size must be positive")

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc"/"desc" (any case). Anything else is Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(Desc)) {
		return Desc
	}
	return Asc
}

// SortKey is the single active sort column.
type SortKey struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// State is the transient view state of one grid.
type State struct {
	SearchTerm string   `json:"search_term"`
	Sort       *SortKey `json:"sort,omitempty"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`

	// TypedSort switches from string-form ordering to ir.Compare ordering.
	TypedSort bool `json:"typed_sort,omitempty"`
}

// Window is the visible slice of a row set.
//
// From and To are the 1-based inclusive bounds for "showing From–To of
// Total"; both are 0 when there is nothing to show.
type Window struct {
	Rows      []ir.Row `json:"rows"`
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
	PageCount int      `json:"page_count"`
	Total     int      `json:"total"`
	From      int      `json:"from"`
	To        int      `json:"to"`
}
