package board

import (
	"time"

	"github.com/example/taskboard/domain/task"
)

// TaskView is the transport representation of a task.
type TaskView struct {
	ID           int           `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       task.Status   `json:"status"`
	Position     int           `json:"position"`
	OwnerID      int           `json:"user_id"`
	OwnerName    string        `json:"user_name"`
	AssigneeID   *int          `json:"assigned_to_user_id,omitempty"`
	AssigneeName string        `json:"assigned_to_user_name,omitempty"`
	DueDate      *time.Time    `json:"due_date,omitempty"`
	Priority     task.Priority `json:"priority"`
	Tags         string        `json:"tags,omitempty"`
	Comments     string        `json:"comments,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// HistoryView is the transport representation of a ledger entry.
type HistoryView struct {
	ID        int         `json:"id"`
	TaskID    int         `json:"task_id"`
	UserID    int         `json:"user_id"`
	UserName  string      `json:"user_name"`
	Action    task.Action `json:"action"`
	OldValue  string      `json:"old_value,omitempty"`
	NewValue  string      `json:"new_value,omitempty"`
	Details   string      `json:"details,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// TaskFields carries the mutable task attributes shared by create and
// update requests. Update replaces every field verbatim: a request
// omitting a field clears it.
type TaskFields struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      task.Status   `json:"status"`
	AssigneeID  *int          `json:"assigned_to_user_id"`
	DueDate     *time.Time    `json:"due_date"`
	Priority    task.Priority `json:"priority"`
	Tags        string        `json:"tags"`
	Comments    string        `json:"comments"`
}

// CreateTaskRequest creates a task at the tail of the target column.
type CreateTaskRequest struct {
	UserID int `json:"user_id"`
	TaskFields
}

// GetTaskRequest fetches a single task within the caller's scope.
type GetTaskRequest struct {
	ID      int  `json:"id"`
	UserID  int  `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
}

// ListTasksRequest lists tasks within the caller's scope.
type ListTasksRequest struct {
	UserID  int      `json:"user_id"`
	IsAdmin bool     `json:"is_admin"`
	Filters *Filters `json:"filters,omitempty"`
}

// ListTasksResponse carries a task listing.
type ListTasksResponse struct {
	Tasks []TaskView `json:"tasks"`
}

// UpdateTaskRequest replaces a task's mutable fields.
type UpdateTaskRequest struct {
	ID      int  `json:"id"`
	UserID  int  `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
	TaskFields
	Position int `json:"position"`
}

// MoveTaskRequest moves a task to a (status, position) slot.
type MoveTaskRequest struct {
	ID       int         `json:"id"`
	UserID   int         `json:"user_id"`
	IsAdmin  bool        `json:"is_admin"`
	Status   task.Status `json:"status"`
	Position int         `json:"position"`
}

// DeleteTaskRequest removes a task and its ledger entries.
type DeleteTaskRequest struct {
	ID      int  `json:"id"`
	UserID  int  `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
}

// DeleteTaskResponse reports a completed deletion.
type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

// TaskHistoryRequest fetches a task's ledger, most recent first.
type TaskHistoryRequest struct {
	TaskID  int  `json:"task_id"`
	UserID  int  `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
}

// TaskHistoryResponse carries a task's ledger entries.
type TaskHistoryResponse struct {
	Entries []HistoryView `json:"entries"`
}

// TaskStatsRequest asks for per-column task counts.
type TaskStatsRequest struct {
	UserID  int  `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
}

// TaskStatsResponse carries per-column task counts within the caller's
// scope.
type TaskStatsResponse struct {
	Total      int64 `json:"total"`
	ToDo       int64 `json:"todo"`
	InProgress int64 `json:"in_progress"`
	Done       int64 `json:"done"`
}

// Export formats.
const (
	ExportFormatCSV   = "csv"
	ExportFormatExcel = "xlsx"
)

// ExportTasksRequest renders the caller's task listing to a file.
type ExportTasksRequest struct {
	UserID  int    `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	Format  string `json:"format"`
}

// ExportTasksResponse carries the rendered export.
type ExportTasksResponse struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}
