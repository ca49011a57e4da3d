package api

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/example/taskboard/domain/task"
	domain "github.com/example/taskboard/domain/user"
	"github.com/example/taskboard/modules/auth"
	"github.com/example/taskboard/modules/board"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	authContainer  mono.ServiceContainer
	boardContainer mono.ServiceContainer
	authAdapter    auth.AuthPort
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authContainer, boardContainer mono.ServiceContainer, authAdapter auth.AuthPort) *Handlers {
	return &Handlers{
		authContainer:  authContainer,
		boardContainer: boardContainer,
		authAdapter:    authAdapter,
	}
}

// callerClaims extracts the authenticated identity set by the middleware.
func callerClaims(c *fiber.Ctx) (*domain.Claims, bool) {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	return claims, ok
}

// Register handles user registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Email and password are required",
		})
	}

	authReq := auth.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}
	var resp auth.RegisterResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.authContainer,
		"register",
		json.Marshal,
		json.Unmarshal,
		&authReq,
		&resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:        resp.ID,
		Email:     resp.Email,
		FullName:  resp.FullName,
		Role:      resp.Role,
		CreatedAt: resp.CreatedAt,
	})
}

// Login handles user login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Email and password are required",
		})
	}

	authReq := auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	}
	var resp auth.LoginResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.authContainer,
		"login",
		json.Marshal,
		json.Unmarshal,
		&authReq,
		&resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	})
}

// Refresh handles token refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Refresh token is required",
		})
	}

	authReq := auth.RefreshRequest{
		RefreshToken: req.RefreshToken,
	}
	var resp auth.RefreshResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.authContainer,
		"refresh-token",
		json.Marshal,
		json.Unmarshal,
		&authReq,
		&resp,
	); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired refresh token",
		})
	}

	return c.Status(fiber.StatusOK).JSON(TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	})
}

// Profile returns the authenticated user's profile.
func (h *Handlers) Profile(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
	}

	user, err := h.authAdapter.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to retrieve user profile",
		})
	}

	return c.Status(fiber.StatusOK).JSON(ProfileResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	})
}

// CreateTask creates a task at the tail of the target column.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	var fields board.TaskFields
	if err := c.BodyParser(&fields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	req := board.CreateTaskRequest{
		UserID:     claims.UserID,
		TaskFields: fields,
	}
	var resp board.TaskView

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"create-task",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetTask returns one task within the caller's scope.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return badID(c)
	}

	req := board.GetTaskRequest{ID: id, UserID: claims.UserID, IsAdmin: claims.IsAdmin()}
	var resp board.TaskView

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"get-task",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// ListTasks returns the caller's tasks, filtered and sorted.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	filters, err := parseFilters(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		})
	}

	req := board.ListTasksRequest{UserID: claims.UserID, IsAdmin: claims.IsAdmin(), Filters: filters}
	var resp board.ListTasksResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"list-tasks",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// UpdateTask replaces a task's mutable fields.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return badID(c)
	}

	var body struct {
		board.TaskFields
		Position int `json:"position"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	req := board.UpdateTaskRequest{
		ID:         id,
		UserID:     claims.UserID,
		IsAdmin:    claims.IsAdmin(),
		TaskFields: body.TaskFields,
		Position:   body.Position,
	}
	var resp board.TaskView

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"update-task",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// MoveTask moves a task to a (status, position) slot.
func (h *Handlers) MoveTask(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return badID(c)
	}

	var body struct {
		Status   task.Status `json:"status"`
		Position int         `json:"position"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	req := board.MoveTaskRequest{
		ID:       id,
		UserID:   claims.UserID,
		IsAdmin:  claims.IsAdmin(),
		Status:   body.Status,
		Position: body.Position,
	}
	var resp board.TaskView

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"move-task",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// DeleteTask removes a task and its history.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return badID(c)
	}

	req := board.DeleteTaskRequest{ID: id, UserID: claims.UserID, IsAdmin: claims.IsAdmin()}
	var resp board.DeleteTaskResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"delete-task",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// TaskHistory returns a task's ledger, most recent first.
func (h *Handlers) TaskHistory(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return badID(c)
	}

	req := board.TaskHistoryRequest{TaskID: id, UserID: claims.UserID, IsAdmin: claims.IsAdmin()}
	var resp board.TaskHistoryResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"task-history",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// TaskStats returns per-column task counts for the caller's scope.
func (h *Handlers) TaskStats(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	req := board.TaskStatsRequest{UserID: claims.UserID, IsAdmin: claims.IsAdmin()}
	var resp board.TaskStatsResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"task-stats",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// ExportTasks streams the caller's tasks as a CSV or Excel download.
func (h *Handlers) ExportTasks(c *fiber.Ctx) error {
	claims, ok := callerClaims(c)
	if !ok {
		return unauthenticated(c)
	}

	req := board.ExportTasksRequest{
		UserID:  claims.UserID,
		IsAdmin: claims.IsAdmin(),
		Format:  c.Query("format", board.ExportFormatExcel),
	}
	var resp board.ExportTasksResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.boardContainer,
		"export-tasks",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return h.handleBoardError(c, err)
	}

	c.Set(fiber.HeaderContentType, resp.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+resp.FileName+`"`)
	return c.Send(resp.Data)
}

// parseFilters builds the list filters from query parameters. Returns
// nil when no filtering or sorting was requested, which selects the
// board's natural (status, position) order.
func parseFilters(c *fiber.Ctx) (*board.Filters, error) {
	given := false
	f := &board.Filters{}

	if search := c.Query("search"); search != "" {
		f.Search = search
		given = true
	}

	if raw := c.Query("status"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || !task.Status(v).Valid() {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
		}
		status := task.Status(v)
		f.Status = &status
		given = true
	}

	if raw := c.Query("priority"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || !task.Priority(v).Valid() {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid priority filter")
		}
		priority := task.Priority(v)
		f.Priority = &priority
		given = true
	}

	if raw := c.Query("due_from"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid due_from date")
		}
		f.DueFrom = &t
		given = true
	}

	if raw := c.Query("due_to"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid due_to date")
		}
		f.DueTo = &t
		given = true
	}

	if sortBy := c.Query("sort_by"); sortBy != "" {
		f.SortBy = sortBy
		given = true
	}

	if !given {
		return nil, nil
	}

	f.SortDesc = c.QueryBool("sort_desc", true)
	return f, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "User not authenticated",
	})
}

func badID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: "Invalid task id",
	})
}

// handleBoardError maps board service errors to HTTP responses. Errors
// cross the service container as strings, so matching is by message.
func (h *Handlers) handleBoardError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "task not found"):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Task not found",
		})
	case strings.Contains(errStr, "validation failed"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: validationMessage(errStr),
		})
	default:
		log.Printf("[api] Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// validationMessage trims transport wrapping from a validation error so
// the client sees only the human-readable part.
func validationMessage(errStr string) string {
	if i := strings.Index(errStr, "validation failed"); i >= 0 {
		return errStr[i:]
	}
	return "validation failed"
}

// handleAuthError handles authentication errors and returns appropriate responses.
// It matches error messages to provide user-friendly responses without exposing internals.
func (h *Handlers) handleAuthError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "invalid email or password"):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case strings.Contains(errStr, "user with this email already exists"):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case strings.Contains(errStr, "invalid email format"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid email format",
		})
	case strings.Contains(errStr, "password must be at least"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Password must be at least 8 characters",
		})
	case strings.Contains(errStr, "password must be at most"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Password must be at most 72 characters",
		})
	default:
		log.Printf("[api] Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}
