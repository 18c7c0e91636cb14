package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata. Page size is a property of
// the entity kind being listed, never of the request.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	if totalPages < 1 {
		totalPages = 1
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// HasPrev reports whether an earlier page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a later page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// PrevPage returns the previous page number, clamped at 1.
func (p Pagination) PrevPage() int {
	if p.Page <= 1 {
		return 1
	}
	return p.Page - 1
}

// NextPage returns the next page number, clamped at the last page.
func (p Pagination) NextPage() int {
	if p.Page >= p.TotalPages {
		return p.TotalPages
	}
	return p.Page + 1
}

// ListQuery carries the caller-controlled listing inputs: an optional
// search substring and a page number.
type ListQuery struct {
	Search string
	Page   int
}

// Normalize clamps the page to a positive value.
func (q ListQuery) Normalize() ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	return q
}
