// Package pagination extracts and validates page/limit/sort query parameters
// for the admin API's listing endpoints.
package pagination

import (
	"net/url"
	"strconv"
)

// Params holds validated pagination parameters and the derived query offset.
type Params struct {
	Page   int32
	Limit  int32
	Offset int32
	Sort   string // "newest", "oldest", "asc" or "desc"
}

const (
	MaxLimit     int32 = 100
	DefaultPage  int32 = 1
	DefaultLimit int32 = 10
	DefaultSort        = "newest"
)

// FromQuery reads page, limit and sort from query values, falling back to the
// defaults and capping limit at MaxLimit.
func FromQuery(q url.Values) *Params {
	params := &Params{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  DefaultSort,
	}

	if pageStr := q.Get("page"); pageStr != "" {
		if val, err := strconv.ParseInt(pageStr, 10, 64); err == nil && val > 0 {
			params.Page = int32(val)
		}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if val, err := strconv.ParseInt(limitStr, 10, 64); err == nil && val > 0 {
			params.Limit = int32(val)
		}
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}

	params.Offset = (params.Page - 1) * params.Limit

	if sortStr := q.Get("sort"); isValidSort(sortStr) {
		params.Sort = sortStr
	}

	return params
}

// HasNext reports whether more items exist past the current page.
func HasNext(offset, limit, count int32) bool {
	return (offset + limit) < count
}

func isValidSort(sort string) bool {
	switch sort {
	case "newest", "oldest", "asc", "desc":
		return true
	default:
		return false
	}
}
