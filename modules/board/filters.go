package board

import (
	"strings"
	"time"

	"github.com/example/taskboard/domain/task"
	"gorm.io/gorm"
)

// Filters narrows and orders a task listing. A nil or empty Filters
// yields the board's natural order: status, then position.
type Filters struct {
	Search    string         `json:"search,omitempty"`
	Status    *task.Status   `json:"status,omitempty"`
	Priority  *task.Priority `json:"priority,omitempty"`
	DueFrom   *time.Time     `json:"due_from,omitempty"`
	DueTo     *time.Time     `json:"due_to,omitempty"`
	SortBy    string         `json:"sort_by,omitempty"`
	SortDesc  bool           `json:"sort_desc,omitempty"`
}

// Empty reports whether no filtering or sorting was requested.
func (f *Filters) Empty() bool {
	if f == nil {
		return true
	}
	return f.Search == "" && f.Status == nil && f.Priority == nil &&
		f.DueFrom == nil && f.DueTo == nil && f.SortBy == "" && !f.SortDesc
}

// sortColumns whitelists the sortable fields.
var sortColumns = map[string]string{
	"Title":     "title",
	"Status":    "status",
	"Priority":  "priority",
	"DueDate":   "due_date",
	"CreatedAt": "created_at",
}

// applyFilters attaches the filter conditions and ordering to a query.
func applyFilters(q *gorm.DB, f *Filters) *gorm.DB {
	if f.Empty() {
		return q.Order("status ASC").Order("position ASC")
	}

	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where(
			"LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Priority != nil {
		q = q.Where("priority = ?", *f.Priority)
	}
	if f.DueFrom != nil {
		q = q.Where("due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		q = q.Where("due_date <= ?", *f.DueTo)
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if f.SortDesc {
		direction = "DESC"
	}
	return q.Order(column + " " + direction)
}
