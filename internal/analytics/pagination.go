package analytics

import "rankrent/internal/sessions"

// Page is a 1-based offset page request.
type Page struct {
	Number int `query:"page" json:"page"`
	Size   int `query:"page_size" json:"page_size"`
}

// PageInfo describes the served page.
type PageInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// Normalize clamps the request: page at least 1, size defaulted and capped.
func (p Page) Normalize(defaultSize, maxSize int) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	if p.Size <= 0 {
		p.Size = 25
	}
	return p
}

// Paginate serves one page of already filtered sessions, most recent entry
// first with session id as tie-break. Sessions written later with earlier
// timestamps land after the current page instead of shifting it.
func Paginate(list []sessions.Session, p Page) ([]sessions.Session, PageInfo) {
	p = p.Normalize(p.Size, 0)

	sorted := make([]sessions.Session, len(list))
	copy(sorted, list)
	sessions.SortByRecency(sorted)

	info := PageInfo{Page: p.Number, PageSize: p.Size, Total: len(sorted)}
	info.TotalPages = (len(sorted) + p.Size - 1) / p.Size

	// compare before multiplying so huge page numbers cannot overflow
	if p.Number-1 > len(sorted)/p.Size {
		return []sessions.Session{}, info
	}
	from := (p.Number - 1) * p.Size
	if from >= len(sorted) {
		return []sessions.Session{}, info
	}
	to := from + p.Size
	if to > len(sorted) {
		to = len(sorted)
	}
	info.HasNext = to < len(sorted)
	return sorted[from:to], info
}
