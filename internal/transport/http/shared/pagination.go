package shared

import (
	"net/http"
	"strconv"
)

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit/offset, or page/perPage as an alternative for
// clients that paginate by page number. limit/offset win when both appear.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	query := r.URL.Query()

	limit := positiveInt(query.Get("limit"), 0)
	if limit == 0 {
		limit = positiveInt(query.Get("perPage"), defaultLimit)
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	if raw := query.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	} else if page := positiveInt(query.Get("page"), 0); page > 1 {
		offset = (page - 1) * limit
	}

	return Pagination{Limit: limit, Offset: offset}
}

func positiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
