// Package grid applies search, sort and pagination to rows already in hand.
//
// Nothing here touches the data source. Every function is a pure function of
// its inputs; Grid only remembers the State between calls.
//
//	rows → Search(term) → Sort(column, direction) → Paginate(page, size) → Window
//
// The order of the three steps is fixed.
package grid
