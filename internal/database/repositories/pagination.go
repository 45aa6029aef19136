package repositories

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Page selects a 1-based page of results.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number and size into the accepted range.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPerPage
	}
	if size > MaxPerPage {
		size = MaxPerPage
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResult is one page of records plus the totals needed to navigate.
type PageResult[T any] struct {
	Data        []T   `json:"data"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

func newPageResult[T any](data []T, page Page, total int64) PageResult[T] {
	if data == nil {
		data = []T{}
	}
	lastPage := int((total + int64(page.Size) - 1) / int64(page.Size))
	if lastPage < 1 {
		lastPage = 1
	}
	return PageResult[T]{
		Data:        data,
		CurrentPage: page.Number,
		PerPage:     page.Size,
		Total:       total,
		LastPage:    lastPage,
	}
}
