package domain

type Service struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"img"`
	ServiceCode string  `json:"service_id"`
}

// ServiceDetail is the projection returned for a single service lookup.
type ServiceDetail struct {
	Title       string  `json:"title"`
	ServiceCode string  `json:"service_id"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"img"`
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder maps the query value to an order, defaulting to descending.
func ParseSortOrder(s string) SortOrder {
	if s == string(SortAsc) {
		return SortAsc
	}
	return SortDesc
}

type ServiceFilter struct {
	Search string
	Sort   SortOrder
}
