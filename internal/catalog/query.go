package catalog

import (
	"sort"
	"strings"
)

// Default page parameters applied when the caller omits them or passes non-positive values.
const (
	DefaultPage     = 1
	DefaultPageSize = 4
)

// SortField names a numeric attribute products can be ordered by.
type SortField string

const (
	SortNone            SortField = ""
	SortByPrice         SortField = "price"
	SortByAverageRating SortField = "averageRating"
)

func (f SortField) attr() string {
	switch f {
	case SortByPrice:
		return AttrPrice
	case SortByAverageRating:
		return AttrAverageRating
	default:
		return ""
	}
}

// SortDirection orders ascending or descending.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// SortSpec describes the requested ordering. The zero value keeps store order.
type SortSpec struct {
	Field     SortField
	Direction SortDirection
}

// ParseSortSpec reads the sortBy/sortOrder query values. Field names are accepted
// in either case ("Price", "price", "AverageRating"); "DSC" and "DESC" select
// descending order. Unknown fields leave the result unsorted.
func ParseSortSpec(sortBy, sortOrder string) SortSpec {
	var spec SortSpec
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case "price":
		spec.Field = SortByPrice
	case "averagerating", "rating":
		spec.Field = SortByAverageRating
	default:
		return SortSpec{}
	}
	switch strings.ToUpper(strings.TrimSpace(sortOrder)) {
	case "DSC", "DESC", "DESCENDING":
		spec.Direction = Descending
	}
	return spec
}

// PageSpec selects one page of results.
type PageSpec struct {
	Page     int
	PageSize int
}

// NewPageSpec clamps non-positive values to the defaults.
func NewPageSpec(page, pageSize int) PageSpec {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return PageSpec{Page: page, PageSize: pageSize}
}

// Page is one slice of an ordered result set. RangeStart and RangeEnd are
// 1-based inclusive bounds for display.
type Page struct {
	Products   []Product `json:"products"`
	TotalPages int       `json:"totalPages"`
	TotalCount int       `json:"totalProducts"`
	RangeStart int       `json:"currentRangeStart"`
	RangeEnd   int       `json:"currentRangeEnd"`
}

// Sort orders products in place. The sort is stable: ties keep scan order in
// both directions.
func Sort(products []Product, spec SortSpec) {
	attr := spec.Field.attr()
	if attr == "" {
		return
	}
	sort.SliceStable(products, func(i, j int) bool {
		a, _ := products[i].NumberField(attr)
		b, _ := products[j].NumberField(attr)
		if spec.Direction == Descending {
			return a > b
		}
		return a < b
	})
}

// Apply sorts a copy of products and slices out the requested page. A page past
// the end is empty while the totals stay accurate.
func Apply(products []Product, sortSpec SortSpec, pageSpec PageSpec) Page {
	pageSpec = NewPageSpec(pageSpec.Page, pageSpec.PageSize)

	ordered := make([]Product, len(products))
	copy(ordered, products)
	Sort(ordered, sortSpec)

	count := len(ordered)
	totalPages := (count + pageSpec.PageSize - 1) / pageSpec.PageSize

	start := (pageSpec.Page - 1) * pageSpec.PageSize
	end := min(start+pageSpec.PageSize, count)

	page := Page{
		Products:   []Product{},
		TotalPages: totalPages,
		TotalCount: count,
		RangeStart: start + 1,
		RangeEnd:   end,
	}
	if start < count {
		page.Products = ordered[start:end]
	}
	return page
}
