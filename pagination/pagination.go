package pagination

const (
	DefaultPage  = 1
	DefaultLimit = 12
	MaxLimit     = 100
)

// Page is a requested window of a listing.
type Page struct {
	Number int
	Limit  int
}

// New normalizes page and limit, falling back to defaults for zero values
// and clamping the limit.
func New(number, limit int) Page {
	if number < 1 {
		number = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type Meta struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

func (p Page) Meta(total int) Meta {
	pages := total / p.Limit
	if total%p.Limit > 0 {
		pages++
	}

	return Meta{
		Total:       total,
		Page:        p.Number,
		Limit:       p.Limit,
		TotalPages:  pages,
		HasNextPage: p.Number*p.Limit < total,
		HasPrevPage: p.Number > 1,
	}
}

// Result is the response envelope of paginated listings.
type Result[T any] struct {
	Result     []T  `json:"result"`
	Pagination Meta `json:"pagination"`
}
