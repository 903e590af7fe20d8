// Package pagination slices listing results into pages for the admin API.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultPerPage is the page size used when per_page is absent.
	DefaultPerPage = 100
	// MaxPerPage caps per_page; key listings can be large.
	MaxPerPage = 1000
)

// Params holds the requested page window.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset is the index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Page is one window over a result set.
type Page[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
	Results    []T `json:"results"`
}

// ParseParams extracts page and per_page from the query string. Missing or
// invalid values fall back to the defaults; per_page is capped at MaxPerPage.
func ParseParams(r *http.Request) Params {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	return Params{Page: page, PerPage: perPage}
}

// Paginate returns the window of items selected by p. A page past the end
// yields an empty, non-nil Results slice.
func Paginate[T any](items []T, p Params) Page[T] {
	total := len(items)
	start := min(p.Offset(), total)
	end := min(start+p.PerPage, total)

	results := make([]T, end-start)
	copy(results, items[start:end])

	return Page[T]{
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: TotalPages(total, p.PerPage),
		Total:      total,
		Results:    results,
	}
}

// TotalPages returns the number of pages needed for total items, never
// less than 1 so an empty listing still has a first page.
func TotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}
