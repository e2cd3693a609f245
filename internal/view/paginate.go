package view

import "fmt"

// DefaultPageSize is used when a caller passes a page size below one.
const DefaultPageSize = 5

// pageWindow is how many numbered page buttons are shown at once.
const pageWindow = 7

// Page is one window of a paginated result.
type Page[T any] struct {
	Items         []T
	TotalPages    int
	EffectivePage int
	Total         int
}

// Paginate returns the requested page, clamped into [1, TotalPages].
// TotalPages is at least 1 even for an empty input.
func Paginate[T any](items []T, pageSize, requested int) Page[T] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := len(items)
	pages := TotalPages(total, pageSize)
	page := ClampPage(requested, pages)

	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	if start > total {
		start = total
	}
	window := make([]T, end-start)
	copy(window, items[start:end])
	return Page[T]{
		Items:         window,
		TotalPages:    pages,
		EffectivePage: page,
		Total:         total,
	}
}

// TotalPages is max(1, ceil(total/pageSize)).
func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// ClampPage clamps a requested page into [1, pages].
func ClampPage(requested, pages int) int {
	if pages < 1 {
		pages = 1
	}
	if requested < 1 {
		return 1
	}
	if requested > pages {
		return pages
	}
	return requested
}

// CheckPage validates a paged response produced elsewhere against the same
// rules Paginate follows.
func CheckPage(total, pages, itemCount, pageSize int) error {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if want := TotalPages(total, pageSize); pages != want {
		return fmt.Errorf("page count %d, expected %d for %d items of size %d", pages, want, total, pageSize)
	}
	if itemCount > pageSize {
		return fmt.Errorf("page holds %d items, exceeds page size %d", itemCount, pageSize)
	}
	if itemCount > total {
		return fmt.Errorf("page holds %d items, exceeds total %d", itemCount, total)
	}
	return nil
}

// Pager describes the navigation controls for a page.
type Pager struct {
	Page    int
	Pages   int
	Total   int
	Buttons []int
	HasPrev bool
	HasNext bool
	Prev    int
	Next    int
}

// NewPager builds navigation for page out of pages.
func NewPager(page, pages, total int) Pager {
	page = ClampPage(page, pages)
	if pages < 1 {
		pages = 1
	}
	return Pager{
		Page:    page,
		Pages:   pages,
		Total:   total,
		Buttons: PageButtons(page, pages),
		HasPrev: page > 1,
		HasNext: page < pages,
		Prev:    max(1, page-1),
		Next:    min(pages, page+1),
	}
}

// PageButtons returns at most seven page numbers starting at max(1, page-3).
func PageButtons(page, pages int) []int {
	start := max(1, page-3)
	end := min(pages, start+pageWindow-1)
	buttons := make([]int, 0, pageWindow)
	for p := start; p <= end; p++ {
		buttons = append(buttons, p)
	}
	return buttons
}
