package board

import (
	"errors"
	"fmt"

	"github.com/example/taskboard/domain/task"
	"gorm.io/gorm"
)

// ErrTaskNotFound is returned when a task does not exist or is not
// visible to the caller. The two cases are deliberately
// indistinguishable so task ids cannot be probed across owners.
var ErrTaskNotFound = errors.New("task not found")

// TaskRepository handles task persistence using GORM.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// scoped returns a query limited to tasks the caller may see.
// Admins see every task; everyone else only their own.
func scoped(db *gorm.DB, userID int, isAdmin bool) *gorm.DB {
	q := db.Model(&task.Task{})
	if !isAdmin {
		q = q.Where("owner_id = ?", userID)
	}
	return q
}

// Create inserts a new task.
func (r *TaskRepository) Create(t *task.Task) error {
	if err := r.db.Create(t).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// FindScoped retrieves a task by id within the caller's scope.
func (r *TaskRepository) FindScoped(id, userID int, isAdmin bool) (*task.Task, error) {
	return findScoped(r.db, id, userID, isAdmin)
}

// findScoped is the transaction-aware variant of FindScoped.
func findScoped(db *gorm.DB, id, userID int, isAdmin bool) (*task.Task, error) {
	var t task.Task
	err := scoped(db, userID, isAdmin).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &t, nil
}

// NextPosition returns the position a newly created task should take in
// the owner's column: one past the current maximum, or zero for an
// empty column. Creation always appends, never inserts mid-column.
func (r *TaskRepository) NextPosition(ownerID int, status task.Status) (int, error) {
	var max *int
	err := r.db.Model(&task.Task{}).
		Where("owner_id = ? AND status = ?", ownerID, status).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute next position: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

// List retrieves tasks visible to the caller, filtered and sorted.
func (r *TaskRepository) List(userID int, isAdmin bool, filters *Filters) ([]task.Task, error) {
	q := scoped(r.db, userID, isAdmin)
	q = applyFilters(q, filters)

	var tasks []task.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// CountByStatus returns the number of visible tasks in each column.
func (r *TaskRepository) CountByStatus(userID int, isAdmin bool) (map[task.Status]int64, error) {
	type bucket struct {
		Status task.Status
		Count  int64
	}

	var buckets []bucket
	err := scoped(r.db, userID, isAdmin).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	counts := make(map[task.Status]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Status] = b.Count
	}
	return counts, nil
}

// Column retrieves one owner's column ordered by position.
func (r *TaskRepository) Column(ownerID int, status task.Status) ([]task.Task, error) {
	var tasks []task.Task
	err := r.db.Where("owner_id = ? AND status = ?", ownerID, status).
		Order("position ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load column: %w", err)
	}
	return tasks, nil
}
