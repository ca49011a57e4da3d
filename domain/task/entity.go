package task

import (
	"time"
)

// Status is the board column a task lives in.
type Status int

// Board columns, in display order.
const (
	StatusToDo Status = iota
	StatusInProgress
	StatusDone
)

// Valid reports whether s is one of the three board columns.
func (s Status) Valid() bool {
	return s >= StatusToDo && s <= StatusDone
}

// String returns the display label for the status.
func (s Status) String() string {
	switch s {
	case StatusToDo:
		return "ToDo"
	case StatusInProgress:
		return "InProgress"
	case StatusDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Priority is the urgency level of a task.
type Priority int

// Priority levels, lowest first.
const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// Valid reports whether p is a known priority level.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// String returns the display label for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	default:
		return "Unknown"
	}
}

// Field length limits enforced before any mutation.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
)

// Task represents a card on the board. Position is the zero-based rank
// of the task within its (owner, status) column; positions in a column
// stay contiguous after every committed mutation.
type Task struct {
	ID          int    `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null;size:100"`
	Description string `gorm:"size:500"`
	Status      Status `gorm:"not null;index:idx_tasks_owner_status"`
	Position    int    `gorm:"not null"`
	OwnerID     int    `gorm:"not null;index:idx_tasks_owner_status"`
	OwnerName   string `gorm:"type:text"`
	AssigneeID  *int
	DueDate     *time.Time
	Priority    Priority `gorm:"not null;default:1"`
	Tags        string   `gorm:"type:text"`
	Comments    string   `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Action tags a history entry with the kind of mutation it records.
type Action string

// History actions.
const (
	ActionCreated       Action = "Created"
	ActionUpdated       Action = "Updated"
	ActionStatusChanged Action = "StatusChanged"
	ActionDeleted       Action = "Deleted"
)

// History is one immutable audit entry for a task mutation. Entries are
// never updated; they are removed only when their task is deleted.
type History struct {
	ID        int    `gorm:"primaryKey;autoIncrement"`
	TaskID    int    `gorm:"not null;index"`
	UserID    int    `gorm:"not null"`
	UserName  string `gorm:"type:text"`
	Action    Action `gorm:"not null;type:text"`
	OldValue  string `gorm:"type:text"`
	NewValue  string `gorm:"type:text"`
	Details   string `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName returns the table name for the History entity.
func (History) TableName() string {
	return "task_history"
}
