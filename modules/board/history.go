package board

import (
	"fmt"
	"time"

	"github.com/example/taskboard/domain/task"
	domain "github.com/example/taskboard/domain/user"
	"gorm.io/gorm"
)

// FallbackUserName is recorded when an acting user id resolves to no
// user row. Tokens can outlive accounts, and the ledger must never
// reject an append because of that.
const FallbackUserName = "service account"

// HistoryRecorder appends and reads the task-history ledger. The ledger
// is append-only: entries are never updated, and they are removed only
// together with their task.
type HistoryRecorder struct {
	db *gorm.DB
}

// NewHistoryRecorder creates a new HistoryRecorder.
func NewHistoryRecorder(db *gorm.DB) *HistoryRecorder {
	return &HistoryRecorder{db: db}
}

// Append writes one immutable ledger entry for a task mutation.
func (r *HistoryRecorder) Append(taskID, userID int, action task.Action, oldValue, newValue, details string) error {
	entry := task.History{
		TaskID:    taskID,
		UserID:    userID,
		UserName:  r.UserName(userID),
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		Details:   details,
		CreatedAt: time.Now(),
	}

	if err := r.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// ListForTask returns a task's ledger entries, most recent first.
func (r *HistoryRecorder) ListForTask(taskID int) ([]task.History, error) {
	var entries []task.History
	err := r.db.Where("task_id = ?", taskID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// DeleteForTask removes all ledger entries of a task, inside the
// transaction that deletes the task itself.
func (r *HistoryRecorder) DeleteForTask(tx *gorm.DB, taskID int) error {
	if err := tx.Where("task_id = ?", taskID).Delete(&task.History{}).Error; err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// UserName resolves a user's display name, falling back to a sentinel
// when the id is unknown.
func (r *HistoryRecorder) UserName(userID int) string {
	var u domain.User
	if err := r.db.Select("email").First(&u, "id = ?", userID).Error; err != nil {
		// Lookup failures degrade to the sentinel; name resolution
		// must never fail an append.
		return FallbackUserName
	}
	return u.Email
}
