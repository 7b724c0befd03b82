package core

// Page window used by IterPages.
const (
	pagesLeftEdge     = 2
	pagesLeftCurrent  = 2
	pagesRightCurrent = 3
	pagesRightEdge    = 2
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"pages"`
}

// NewPagination clamps page into [1, TotalPages]. An empty listing still has
// one (empty) page.
func NewPagination(page, perPage, total int) Pagination {
	if perPage < 1 {
		perPage = 1
	}
	if total < 0 {
		total = 0
	}

	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset is the number of rows before the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func (p Pagination) HasPrev() bool { return p.Page > 1 }
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// PrevNum returns the previous page number, 0 on the first page.
func (p Pagination) PrevNum() int {
	if !p.HasPrev() {
		return 0
	}
	return p.Page - 1
}

// NextNum returns the next page number, 0 on the last page.
func (p Pagination) NextNum() int {
	if !p.HasNext() {
		return 0
	}
	return p.Page + 1
}

// IterPages lists the page links to render. The first and last two pages are
// always shown, plus two pages before and two after the current one; 0 marks
// a gap.
func (p Pagination) IterPages() []int {
	last := p.TotalPages
	var out []int
	for num := 1; num <= last; num++ {
		switch {
		case num <= pagesLeftEdge,
			p.Page-pagesLeftCurrent-1 < num && num < p.Page+pagesRightCurrent,
			num > last-pagesRightEdge:
			out = append(out, num)
		case num == p.Page-pagesLeftCurrent-1, num == p.Page+pagesRightCurrent:
			out = append(out, 0)
		}
	}
	return out
}
