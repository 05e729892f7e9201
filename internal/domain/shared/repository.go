package shared

// Pagination limits shared by every list query
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page represents pagination and ordering options.
// SortBy and SortOrder are validated against a per-table whitelist by the repository.
type Page struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// DefaultPage returns the first page with the default size
func DefaultPage() Page {
	return Page{Page: 1, PageSize: DefaultPageSize}
}

// Normalize clamps page and page size into the supported range
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	if items == nil {
		items = make([]T, 0)
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
