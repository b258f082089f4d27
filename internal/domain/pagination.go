package domain

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

type Pagination struct {
	Page     int `validate:"gte=1"`
	PageSize int `validate:"gte=1,lte=50"`
}

// NewPagination falls back to the first page and the default page size for
// values that are out of range.
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	return Pagination{Page: page, PageSize: pageSize}
}

func (f Pagination) Limit() int {
	return f.PageSize
}

func (f Pagination) Offset() int {
	return (f.Page - 1) * f.PageSize
}
