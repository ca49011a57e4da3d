package board

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/example/taskboard/domain/task"
	"github.com/example/taskboard/modules/cache"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BoardModule provides the task-board services.
type BoardModule struct {
	db      *gorm.DB
	service *BoardService
	cache   *cache.Cache
	dbPath  string
}

// Compile-time interface checks.
var _ mono.Module = (*BoardModule)(nil)
var _ mono.ServiceProviderModule = (*BoardModule)(nil)
var _ mono.HealthCheckableModule = (*BoardModule)(nil)

// NewModule creates a new BoardModule.
func NewModule() *BoardModule {
	dbPath := os.Getenv("TASKBOARD_DB_PATH")
	if dbPath == "" {
		dbPath = "taskboard.db"
	}
	return &BoardModule{
		dbPath: dbPath,
	}
}

// Name returns the module name.
func (m *BoardModule) Name() string {
	return "board"
}

// Start initializes the board module.
func (m *BoardModule) Start(ctx context.Context) error {
	// The auth module writes to the same file; a busy timeout keeps
	// concurrent writers from failing with SQLITE_BUSY.
	db, err := gorm.Open(sqlite.Open(m.dbPath+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&task.Task{}, &task.History{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if addr := os.Getenv("TASKBOARD_REDIS_ADDR"); addr != "" {
		cfg := cache.DefaultConfig()
		cfg.RedisAddr = addr
		c, err := cache.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		m.cache = c
		log.Printf("[board] List cache enabled (redis: %s)", addr)
	}

	m.service = NewBoardService(db, m.cache)

	log.Printf("[board] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop shuts down the module.
func (m *BoardModule) Stop(_ context.Context) error {
	if m.cache != nil {
		m.cache.Close()
	}
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[board] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *BoardModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	details := map[string]any{
		"database": m.dbPath,
	}
	if m.cache != nil {
		details["cache"] = m.cache.Snapshot()
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *BoardModule) RegisterServices(container mono.ServiceContainer) error {
	services := []struct {
		name     string
		register func() error
	}{
		{"create-task", func() error {
			return helper.RegisterTypedRequestReplyService(container, "create-task", json.Unmarshal, json.Marshal, m.handleCreate)
		}},
		{"get-task", func() error {
			return helper.RegisterTypedRequestReplyService(container, "get-task", json.Unmarshal, json.Marshal, m.handleGet)
		}},
		{"list-tasks", func() error {
			return helper.RegisterTypedRequestReplyService(container, "list-tasks", json.Unmarshal, json.Marshal, m.handleList)
		}},
		{"update-task", func() error {
			return helper.RegisterTypedRequestReplyService(container, "update-task", json.Unmarshal, json.Marshal, m.handleUpdate)
		}},
		{"move-task", func() error {
			return helper.RegisterTypedRequestReplyService(container, "move-task", json.Unmarshal, json.Marshal, m.handleMove)
		}},
		{"delete-task", func() error {
			return helper.RegisterTypedRequestReplyService(container, "delete-task", json.Unmarshal, json.Marshal, m.handleDelete)
		}},
		{"task-history", func() error {
			return helper.RegisterTypedRequestReplyService(container, "task-history", json.Unmarshal, json.Marshal, m.handleHistory)
		}},
		{"task-stats", func() error {
			return helper.RegisterTypedRequestReplyService(container, "task-stats", json.Unmarshal, json.Marshal, m.handleStats)
		}},
		{"export-tasks", func() error {
			return helper.RegisterTypedRequestReplyService(container, "export-tasks", json.Unmarshal, json.Marshal, m.handleExport)
		}},
	}

	for _, svc := range services {
		if err := svc.register(); err != nil {
			return fmt.Errorf("failed to register %s service: %w", svc.name, err)
		}
	}

	log.Printf("[board] Registered services: create-task, get-task, list-tasks, update-task, move-task, delete-task, task-history, task-stats, export-tasks")
	return nil
}

func (m *BoardModule) handleCreate(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskView, error) {
	view, err := m.service.Create(ctx, req)
	if err != nil {
		return TaskView{}, err
	}
	return *view, nil
}

func (m *BoardModule) handleGet(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskView, error) {
	view, err := m.service.Get(ctx, req)
	if err != nil {
		return TaskView{}, err
	}
	return *view, nil
}

func (m *BoardModule) handleList(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	views, err := m.service.List(ctx, req)
	if err != nil {
		return ListTasksResponse{}, err
	}
	return ListTasksResponse{Tasks: views}, nil
}

func (m *BoardModule) handleUpdate(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskView, error) {
	view, err := m.service.Update(ctx, req)
	if err != nil {
		return TaskView{}, err
	}
	return *view, nil
}

func (m *BoardModule) handleMove(ctx context.Context, req MoveTaskRequest, _ *mono.Msg) (TaskView, error) {
	view, err := m.service.Move(ctx, req)
	if err != nil {
		return TaskView{}, err
	}
	return *view, nil
}

func (m *BoardModule) handleDelete(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	if err := m.service.Delete(ctx, req); err != nil {
		return DeleteTaskResponse{}, err
	}
	return DeleteTaskResponse{Deleted: true}, nil
}

func (m *BoardModule) handleHistory(ctx context.Context, req TaskHistoryRequest, _ *mono.Msg) (TaskHistoryResponse, error) {
	entries, err := m.service.History(ctx, req)
	if err != nil {
		return TaskHistoryResponse{}, err
	}
	return TaskHistoryResponse{Entries: entries}, nil
}

func (m *BoardModule) handleStats(ctx context.Context, req TaskStatsRequest, _ *mono.Msg) (TaskStatsResponse, error) {
	resp, err := m.service.Stats(ctx, req)
	if err != nil {
		return TaskStatsResponse{}, err
	}
	return *resp, nil
}

func (m *BoardModule) handleExport(ctx context.Context, req ExportTasksRequest, _ *mono.Msg) (ExportTasksResponse, error) {
	resp, err := m.service.Export(ctx, req)
	if err != nil {
		return ExportTasksResponse{}, err
	}
	return *resp, nil
}
