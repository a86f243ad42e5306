package history

// Page is one newest-first window of the history.
type Page struct {
	Entries     []Entry `json:"entries"`
	TotalCount  int     `json:"total_count"`
	PageNumber  int     `json:"page_number"`
	PageSize    int     `json:"page_size"`
	PageCount   int     `json:"page_count"`
	HasNext     bool    `json:"has_next"`
	HasPrevious bool    `json:"has_previous"`
}

// Page returns page pageNumber (0-based) of size pageSize, newest first.
//
// pageSize <= 0 uses the store's default. pageNumber is clamped to
// [0, PageCount-1]; an empty store yields page 0 with no entries.
func (s *Store) Page(pageNumber, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.entries)
	pageCount := (total + pageSize - 1) / pageSize

	pageNumber = min(pageNumber, pageCount-1)
	pageNumber = max(pageNumber, 0)

	from := min(pageNumber*pageSize, total)
	to := min(from+pageSize, total)

	return Page{
		Entries:     s.newestFirst(from, to),
		TotalCount:  total,
		PageNumber:  pageNumber,
		PageSize:    pageSize,
		PageCount:   pageCount,
		HasNext:     pageNumber < pageCount-1,
		HasPrevious: pageNumber > 0,
	}
}
