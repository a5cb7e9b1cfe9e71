package search

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterParams narrows a query over approved listings
type FilterParams struct {
	Query    string
	Type     string
	Status   string
	City     string
	MinPrice *float64
	MaxPrice *float64
	MinRooms *int
	SortBy   string
	Limit    int64
	Offset   int64
}

// Filter renders the Meilisearch filter expression for params
func (params FilterParams) Filter() string {
	var filters []string

	if params.Type != "" {
		filters = append(filters, "type = "+quote(params.Type))
	}
	if params.Status != "" {
		filters = append(filters, "statuses = "+quote(params.Status))
	}
	if params.City != "" {
		filters = append(filters, "city = "+quote(params.City))
	}

	// Price range filter
	if params.MinPrice != nil {
		filters = append(filters, "price >= "+formatFloat(*params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, "price <= "+formatFloat(*params.MaxPrice))
	}

	if params.MinRooms != nil {
		filters = append(filters, fmt.Sprintf("rooms >= %d", *params.MinRooms))
	}

	return strings.Join(filters, " AND ")
}

// Sort maps a sort key onto Meilisearch sort rules. Unknown keys fall back
// to relevance, with pinned listings first.
func (params FilterParams) Sort() []string {
	switch params.SortBy {
	case "price_asc":
		return []string{"price:asc"}
	case "price_desc":
		return []string{"price:desc"}
	case "area_desc":
		return []string{"area:desc"}
	case "newest", "created_at_desc":
		return []string{"created_at:desc"}
	default:
		return []string{"pinned:desc"}
	}
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
