package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/taskrelay/taskrelay/docs" // Import generated docs
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/events"
	"github.com/taskrelay/taskrelay/internal/handler/dto"
	"github.com/taskrelay/taskrelay/internal/middleware"
	"github.com/taskrelay/taskrelay/internal/repository"
	"github.com/taskrelay/taskrelay/internal/service"
	"github.com/taskrelay/taskrelay/internal/sink"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool        *pgxpool.Pool
	taskService *service.TaskService
	taskRepo    *repository.TaskRepository
	dispatcher  *events.Dispatcher
}

// New creates a new Handler instance with all dependencies.
func New(pool *pgxpool.Pool, dispatcher *events.Dispatcher) *Handler {
	taskRepo := repository.NewTaskRepository(pool, dispatcher)
	commentRepo := repository.NewCommentRepository(pool, dispatcher)
	relationRepo := repository.NewRelationRepository(pool, dispatcher)

	taskService := service.NewTaskService(taskRepo, commentRepo, relationRepo, sink.NewHTTPCallback())

	return &Handler{
		pool:        pool,
		taskService: taskService,
		taskRepo:    taskRepo,
		dispatcher:  dispatcher,
	}
}

// TaskService exposes the command handlers (used by the bus consumer).
func (h *Handler) TaskService() *service.TaskService {
	return h.taskService
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	// API v1 routes; the acting identity comes from request headers
	mux.Handle("POST /api/v1/tasks", middleware.Identity(http.HandlerFunc(h.handleCreateTask)))
	mux.Handle("GET /api/v1/tasks/{id}", middleware.Identity(http.HandlerFunc(h.handleGetTask)))
	mux.Handle("PUT /api/v1/tasks/{id}", middleware.Identity(http.HandlerFunc(h.handleUpdateTask)))
	mux.Handle("PATCH /api/v1/tasks/{id}/status", middleware.Identity(http.HandlerFunc(h.handleUpdateStatus)))
	mux.Handle("POST /api/v1/tasks/{id}/finalize", middleware.Identity(http.HandlerFunc(h.handleFinalizeTask)))
	mux.Handle("PATCH /api/v1/tasks/{id}/data", middleware.Identity(http.HandlerFunc(h.handleUpdateData)))
	mux.Handle("POST /api/v1/tasks/{id}/assignment", middleware.Identity(http.HandlerFunc(h.handleAssignTask)))
	mux.Handle("DELETE /api/v1/tasks/{id}/assignment", middleware.Identity(http.HandlerFunc(h.handleUnassignTask)))
	mux.Handle("POST /api/v1/tasks/{id}/relations", middleware.Identity(http.HandlerFunc(h.handleRelateTask)))
	mux.Handle("POST /api/v1/tasks/{id}/comments", middleware.Identity(http.HandlerFunc(h.handleStoreComment)))
	mux.Handle("POST /api/v1/reports", middleware.Identity(http.HandlerFunc(h.handleCreateReport)))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondCommandError maps a handler error, publishes the matching
// *Failed integration event, and writes the error response. The publish
// is one-shot and not retried, but a failure of the publish itself is not
// suppressed: it surfaces to the caller instead of the mapped error.
func (h *Handler) respondCommandError(w http.ResponseWriter, r *http.Request, operation string, taskID uuid.UUID, err error) {
	status, code, message := dto.MapDomainError(err)

	failed := domain.OperationFailed{
		Operation: operation,
		TaskID:    taskID,
		Code:      code,
		Message:   message,
		Target:    taskID.String(),
	}
	if pubErr := h.dispatcher.Dispatch(r.Context(), []domain.Event{failed}); pubErr != nil {
		slog.Error("failure event publish failed", "operation", operation, "error", pubErr)
		respondError(w, http.StatusInternalServerError, "EVENT_PUBLISH_FAILURE",
			"failed to publish failure event")
		return
	}

	respondError(w, status, code, message)
}

// extractTaskID extracts and validates the task ID path parameter.
// Returns (taskID, true) if valid, (Nil, false) if invalid (error already
// sent to the client).
func extractTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.PathValue("id")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return uuid.Nil, false
	}

	taskID, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task_id must be a valid UUID")
		return uuid.Nil, false
	}

	return taskID, true
}

// identityFromContext pulls the acting identity the middleware stored.
func identityFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "MISSING_IDENTITY", "identity header required")
		return uuid.Nil, false
	}
	return userID, true
}
