package board

import (
	"fmt"

	"github.com/example/taskboard/domain/task"
	"gorm.io/gorm"
)

// reconcilePositions shifts sibling positions so that moving t to
// (newStatus, newPosition) leaves every affected column contiguous.
// It must run inside the same transaction that persists the moving
// task; t itself is not modified or saved here.
//
// Cross-column: siblings above the vacated slot in the source column
// move down one, siblings at or above the target slot in the
// destination column move up one. Same-column: only the siblings
// strictly between the old and new positions shift, toward the vacated
// slot.
func reconcilePositions(tx *gorm.DB, t *task.Task, newStatus task.Status, newPosition int) error {
	if t.Status != newStatus {
		err := tx.Model(&task.Task{}).
			Where("owner_id = ? AND status = ? AND id <> ? AND position > ?", t.OwnerID, t.Status, t.ID, t.Position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error
		if err != nil {
			return fmt.Errorf("failed to close source column gap: %w", err)
		}

		err = tx.Model(&task.Task{}).
			Where("owner_id = ? AND status = ? AND position >= ?", t.OwnerID, newStatus, newPosition).
			UpdateColumn("position", gorm.Expr("position + 1")).Error
		if err != nil {
			return fmt.Errorf("failed to open destination slot: %w", err)
		}
		return nil
	}

	switch {
	case newPosition < t.Position:
		err := tx.Model(&task.Task{}).
			Where("owner_id = ? AND status = ? AND id <> ? AND position >= ? AND position < ?",
				t.OwnerID, t.Status, t.ID, newPosition, t.Position).
			UpdateColumn("position", gorm.Expr("position + 1")).Error
		if err != nil {
			return fmt.Errorf("failed to shift siblings up: %w", err)
		}
	case newPosition > t.Position:
		err := tx.Model(&task.Task{}).
			Where("owner_id = ? AND status = ? AND id <> ? AND position > ? AND position <= ?",
				t.OwnerID, t.Status, t.ID, t.Position, newPosition).
			UpdateColumn("position", gorm.Expr("position - 1")).Error
		if err != nil {
			return fmt.Errorf("failed to shift siblings down: %w", err)
		}
	}
	// Equal positions in the same column are a no-op.
	return nil
}

// closePositionGap compacts a column after a task at the given position
// was removed from it.
func closePositionGap(tx *gorm.DB, ownerID int, status task.Status, position int) error {
	err := tx.Model(&task.Task{}).
		Where("owner_id = ? AND status = ? AND position > ?", ownerID, status, position).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
	if err != nil {
		return fmt.Errorf("failed to compact column: %w", err)
	}
	return nil
}
