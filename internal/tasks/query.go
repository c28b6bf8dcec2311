package tasks

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

// ListQuery is the parsed filter/sort/page window for a task listing. The
// ownership constraint is not part of it: the repositories AND it in
// unconditionally, so no request parameter can widen a listing beyond the
// authenticated subject.
type ListQuery struct {
	Status   string // exact match when set; unknown values simply match nothing
	Priority string
	Search   string // case-insensitive substring over title OR description
	Sort     string
	Order    string // "asc" or "desc"
	Page     int
	Limit    int
}

// ParseListQuery normalizes raw query parameters. Non-numeric or non-positive
// page/limit values clamp to the defaults rather than erroring, and anything
// other than order=asc sorts descending.
func ParseListQuery(values url.Values) ListQuery {
	q := ListQuery{
		Status:   strings.TrimSpace(values.Get("status")),
		Priority: strings.TrimSpace(values.Get("priority")),
		Search:   strings.TrimSpace(values.Get("search")),
		Sort:     strings.TrimSpace(values.Get("sort")),
		Order:    strings.ToLower(strings.TrimSpace(values.Get("order"))),
		Page:     positiveIntOr(values.Get("page"), defaultPage),
		Limit:    positiveIntOr(values.Get("limit"), defaultLimit),
	}
	if q.Sort == "" {
		q.Sort = "createdAt"
	}
	if q.Order != "asc" {
		q.Order = "desc"
	}
	return q
}

func positiveIntOr(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// SortColumn maps the requested sort field onto a task column. Unknown fields
// fall back to created_at; client input is never interpolated into SQL.
func (q ListQuery) SortColumn() string {
	switch q.Sort {
	case "title":
		return "title"
	case "priority":
		return "priority"
	case "status":
		return "status"
	case "dueDate":
		return "due_date"
	case "completedAt":
		return "completed_at"
	case "updatedAt":
		return "updated_at"
	default:
		return "created_at"
	}
}

func (q ListQuery) OrderDir() string {
	if q.Order == "asc" {
		return "ASC"
	}
	return "DESC"
}

// PageMeta accompanies every listing response.
type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPageMeta(q ListQuery, total int) PageMeta {
	return PageMeta{
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}
}
