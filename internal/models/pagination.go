package models

import "time"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ReportFilter narrows report searches. Zero values mean "no constraint".
type ReportFilter struct {
	OwnerID     string
	Status      ReportStatus
	Priority    ReportPriority
	Category    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Text        string
}

// PageRequest is a 1-based page selection.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize clamps the request: page < 1 becomes 1, non-positive sizes use the default, sizes cap at MaxPageSize.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the first item on the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PagedResult is one page of an ordered result set.
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPagedResult assembles a page, computing TotalPages as ceil(total / pageSize).
func NewPagedResult[T any](items []T, total int64, req PageRequest) PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.PageSize > 0 {
		pages = int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	}
	return PagedResult[T]{
		Items:      items,
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: pages,
	}
}
