package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/example/taskboard/domain/task"
	domain "github.com/example/taskboard/domain/user"
	"github.com/example/taskboard/modules/cache"
	"gorm.io/gorm"
)

// ErrValidation is returned for requests rejected before any mutation.
var ErrValidation = errors.New("validation failed")

const listCachePattern = "tasks:*"

// BoardService orchestrates task mutations: it validates the request,
// runs position reconciliation and the primary update in one
// transaction, then appends a ledger entry best-effort. A ledger
// failure never rolls back or fails the mutation.
type BoardService struct {
	db      *gorm.DB
	tasks   *TaskRepository
	history *HistoryRecorder
	cache   *cache.Cache // nil when caching is disabled
	owners  ownerLocks
}

// NewBoardService creates a new BoardService. cache may be nil.
func NewBoardService(db *gorm.DB, c *cache.Cache) *BoardService {
	return &BoardService{
		db:      db,
		tasks:   NewTaskRepository(db),
		history: NewHistoryRecorder(db),
		cache:   c,
	}
}

// ownerLocks serializes mutations per owner. Two concurrent moves on
// the same owner's board would otherwise interleave their sibling
// shifts and break column contiguity.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func (l *ownerLocks) get(ownerID int) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[int]*sync.Mutex)
	}
	m, ok := l.locks[ownerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ownerID] = m
	}
	return m
}

// validateFields rejects invalid task attributes before any mutation.
func validateFields(f TaskFields) error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(f.Title) > task.MaxTitleLen {
		return fmt.Errorf("%w: title must be at most %d characters", ErrValidation, task.MaxTitleLen)
	}
	if len(f.Description) > task.MaxDescriptionLen {
		return fmt.Errorf("%w: description must be at most %d characters", ErrValidation, task.MaxDescriptionLen)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status", ErrValidation)
	}
	if !f.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority", ErrValidation)
	}
	return nil
}

// Create appends a task to the tail of the owner's target column.
func (s *BoardService) Create(ctx context.Context, req CreateTaskRequest) (*TaskView, error) {
	if err := validateFields(req.TaskFields); err != nil {
		return nil, err
	}

	lock := s.owners.get(req.UserID)
	lock.Lock()

	position, err := s.tasks.NextPosition(req.UserID, req.Status)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	now := time.Now()
	t := &task.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Position:    position,
		OwnerID:     req.UserID,
		OwnerName:   s.history.UserName(req.UserID),
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Comments:    req.Comments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tasks.Create(t); err != nil {
		lock.Unlock()
		return nil, err
	}
	lock.Unlock()

	s.appendHistory(t.ID, req.UserID, task.ActionCreated, "", "Task created with title: "+t.Title, "")
	s.invalidateListCache(ctx)

	return s.toView(t), nil
}

// Get retrieves one task within the caller's scope.
func (s *BoardService) Get(_ context.Context, req GetTaskRequest) (*TaskView, error) {
	t, err := s.tasks.FindScoped(req.ID, req.UserID, req.IsAdmin)
	if err != nil {
		return nil, err
	}
	return s.toView(t), nil
}

// List retrieves tasks within the caller's scope, filtered and sorted.
// Unfiltered listings are served from the cache when one is configured.
func (s *BoardService) List(ctx context.Context, req ListTasksRequest) ([]TaskView, error) {
	cacheKey := fmt.Sprintf("tasks:%d:%t", req.UserID, req.IsAdmin)
	cacheable := s.cache != nil && req.Filters.Empty()

	if cacheable {
		var views []TaskView
		hit, err := s.cache.Get(ctx, cacheKey, &views)
		if err != nil {
			log.Printf("[board] cache read failed: %v", err)
		} else if hit {
			return views, nil
		}
	}

	tasks, err := s.tasks.List(req.UserID, req.IsAdmin, req.Filters)
	if err != nil {
		return nil, err
	}

	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, *s.toView(&tasks[i]))
	}

	if cacheable {
		if err := s.cache.Set(ctx, cacheKey, views); err != nil {
			log.Printf("[board] cache write failed: %v", err)
		}
	}

	return views, nil
}

// Update replaces every mutable field of a task verbatim and stamps
// updated-at. An Updated ledger entry is appended on every call, even
// when nothing actually changed.
func (s *BoardService) Update(ctx context.Context, req UpdateTaskRequest) (*TaskView, error) {
	if err := validateFields(req.TaskFields); err != nil {
		return nil, err
	}
	if req.Position < 0 {
		return nil, fmt.Errorf("%w: position must not be negative", ErrValidation)
	}

	t, err := s.tasks.FindScoped(req.ID, req.UserID, req.IsAdmin)
	if err != nil {
		return nil, err
	}

	lock := s.owners.get(t.OwnerID)
	lock.Lock()

	t.Title = req.Title
	t.Description = req.Description
	t.Status = req.Status
	t.Position = req.Position
	t.AssigneeID = req.AssigneeID
	t.DueDate = req.DueDate
	t.Priority = req.Priority
	t.Tags = req.Tags
	t.Comments = req.Comments
	t.UpdatedAt = time.Now()

	if err := s.db.Save(t).Error; err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	lock.Unlock()

	s.appendHistory(t.ID, req.UserID, task.ActionUpdated, "", "", "Task was updated")
	s.invalidateListCache(ctx)

	return s.toView(t), nil
}

// Move places a task at (status, position), shifting siblings in the
// affected columns so every column stays contiguous. A StatusChanged
// ledger entry is appended only when the column actually changed;
// same-column reorders leave the ledger untouched.
func (s *BoardService) Move(ctx context.Context, req MoveTaskRequest) (*TaskView, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status", ErrValidation)
	}
	if req.Position < 0 {
		return nil, fmt.Errorf("%w: position must not be negative", ErrValidation)
	}

	t, err := s.tasks.FindScoped(req.ID, req.UserID, req.IsAdmin)
	if err != nil {
		return nil, err
	}

	lock := s.owners.get(t.OwnerID)
	lock.Lock()

	var moved *task.Task
	var oldStatus task.Status
	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := findScoped(tx, req.ID, req.UserID, req.IsAdmin)
		if err != nil {
			return err
		}
		oldStatus = current.Status

		if err := reconcilePositions(tx, current, req.Status, req.Position); err != nil {
			return err
		}

		current.Status = req.Status
		current.Position = req.Position
		current.UpdatedAt = time.Now()

		if err := tx.Save(current).Error; err != nil {
			return fmt.Errorf("failed to save moved task: %w", err)
		}
		moved = current
		return nil
	})
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	if oldStatus != req.Status {
		s.appendHistory(moved.ID, req.UserID, task.ActionStatusChanged,
			oldStatus.String(), req.Status.String(),
			fmt.Sprintf("Status changed from %s to %s", oldStatus, req.Status))
	}
	s.invalidateListCache(ctx)

	return s.toView(moved), nil
}

// Delete removes a task together with its ledger entries, compacts the
// column it occupied, and appends a terminal Deleted entry.
func (s *BoardService) Delete(ctx context.Context, req DeleteTaskRequest) error {
	t, err := s.tasks.FindScoped(req.ID, req.UserID, req.IsAdmin)
	if err != nil {
		return err
	}

	lock := s.owners.get(t.OwnerID)
	lock.Lock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := findScoped(tx, req.ID, req.UserID, req.IsAdmin)
		if err != nil {
			return err
		}

		if err := tx.Delete(&task.Task{}, "id = ?", current.ID).Error; err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		if err := s.history.DeleteForTask(tx, current.ID); err != nil {
			return err
		}
		return closePositionGap(tx, current.OwnerID, current.Status, current.Position)
	})
	lock.Unlock()
	if err != nil {
		return err
	}

	s.appendHistory(t.ID, req.UserID, task.ActionDeleted,
		fmt.Sprintf("Task '%s' was deleted", t.Title), "", "")
	s.invalidateListCache(ctx)

	return nil
}

// History returns a task's ledger, most recent first. Non-admins asking
// about a task they do not own get an empty ledger, not an error.
func (s *BoardService) History(_ context.Context, req TaskHistoryRequest) ([]HistoryView, error) {
	if !req.IsAdmin {
		if _, err := s.tasks.FindScoped(req.TaskID, req.UserID, false); err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				return []HistoryView{}, nil
			}
			return nil, err
		}
	}

	entries, err := s.history.ListForTask(req.TaskID)
	if err != nil {
		return nil, err
	}

	views := make([]HistoryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, HistoryView{
			ID:        e.ID,
			TaskID:    e.TaskID,
			UserID:    e.UserID,
			UserName:  e.UserName,
			Action:    e.Action,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	return views, nil
}

// Stats reports per-column task counts within the caller's scope.
func (s *BoardService) Stats(_ context.Context, req TaskStatsRequest) (*TaskStatsResponse, error) {
	counts, err := s.tasks.CountByStatus(req.UserID, req.IsAdmin)
	if err != nil {
		return nil, err
	}

	resp := &TaskStatsResponse{
		ToDo:       counts[task.StatusToDo],
		InProgress: counts[task.StatusInProgress],
		Done:       counts[task.StatusDone],
	}
	resp.Total = resp.ToDo + resp.InProgress + resp.Done
	return resp, nil
}

// appendHistory writes a ledger entry best-effort. Failures are logged
// and swallowed; the primary mutation has already committed.
func (s *BoardService) appendHistory(taskID, userID int, action task.Action, oldValue, newValue, details string) {
	if err := s.history.Append(taskID, userID, action, oldValue, newValue, details); err != nil {
		log.Printf("[board] failed to record history for task %d: %v", taskID, err)
	}
}

// invalidateListCache drops all cached listings after a mutation.
func (s *BoardService) invalidateListCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, listCachePattern); err != nil {
		log.Printf("[board] cache invalidation failed: %v", err)
	}
}

// toView maps a persisted task to its transport representation.
func (s *BoardService) toView(t *task.Task) *TaskView {
	return &TaskView{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Position:     t.Position,
		OwnerID:      t.OwnerID,
		OwnerName:    t.OwnerName,
		AssigneeID:   t.AssigneeID,
		AssigneeName: s.assigneeName(t.AssigneeID),
		DueDate:      t.DueDate,
		Priority:     t.Priority,
		Tags:         t.Tags,
		Comments:     t.Comments,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// assigneeName resolves the assignee's display name, empty when the
// task is unassigned or the user no longer exists.
func (s *BoardService) assigneeName(id *int) string {
	if id == nil {
		return ""
	}
	var u domain.User
	if err := s.db.Select("email").First(&u, "id = ?", *id).Error; err != nil {
		return ""
	}
	return u.Email
}
