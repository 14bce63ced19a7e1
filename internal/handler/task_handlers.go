package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/command"
	"github.com/taskrelay/taskrelay/internal/handler/dto"
)

// handleCreateTask creates a new task.
// @Summary Create a new task
// @Description Creates a task with its initial assignment, relations (the first one becomes the main relation), and an optional seed comment.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "Task creation request"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	var assignment *command.AssignmentSpec
	if req.Assignment != nil {
		assignment = &command.AssignmentSpec{
			AssignedToID: req.Assignment.AssignedToID,
			Type:         req.Assignment.Type,
		}
	}

	relations := make([]command.RelationSpec, 0, len(req.Relations))
	for _, rel := range req.Relations {
		relations = append(relations, command.RelationSpec{
			EntityID:   rel.EntityID,
			EntityType: rel.EntityType,
		})
	}

	cmd := command.NewCreateTask(
		req.SourceID, req.SourceName, req.TaskType, req.Status, req.Data,
		req.Callback, req.Subject,
		req.TaskID, req.FourEyeSubjectID, userID,
		assignment, relations, req.Comment,
	)

	task, err := h.taskService.CreateTask(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, r, "CreateTask", req.TaskID, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(task))
}

// handleGetTask retrieves task details.
// @Summary Get task details
// @Description Get the full task including relations and comments
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), taskID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleUpdateTask is the v2 combined data+subject update.
// @Summary Update task data and subject
// @Description Replaces the task's data payload and subject in one mutation. Fires the configured callback.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.UpdateTaskRequest true "Update request"
// @Success 200 {object} dto.TaskResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /tasks/{id} [put]
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.taskService.Update(r.Context(), command.NewUpdateTask(taskID, req.Data, req.Subject, userID))
	if err != nil {
		h.respondCommandError(w, r, "UpdateTask", taskID, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleUpdateStatus sets a new status.
// @Summary Update task status
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.UpdateStatusRequest true "Status update request"
// @Success 200 {object} dto.TaskResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /tasks/{id}/status [patch]
func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateStatus(r.Context(), command.NewUpdateTaskStatus(taskID, req.Status, userID))
	if err != nil {
		h.respondCommandError(w, r, "UpdateStatus", taskID, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleFinalizeTask closes a task.
// @Summary Finalize a task
// @Description Closes the task with a final status. The four-eye subject recorded on the task cannot finalize it.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.FinalizeTaskRequest true "Finalize request"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /tasks/{id}/finalize [post]
func (h *Handler) handleFinalizeTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.FinalizeTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	cmd := command.NewFinalizeTask(taskID, req.Status, userID)
	if req.FinalState != nil {
		cmd.FinalState = *req.FinalState
	}

	task, err := h.taskService.Finalize(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, r, "FinalizeTask", taskID, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleUpdateData replaces the task data payload.
// @Summary Update task data
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.UpdateDataRequest true "Data update request"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks/{id}/data [patch]
func (h *Handler) handleUpdateData(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateData(r.Context(), command.NewUpdateTaskData(taskID, req.Data, userID))
	if err != nil {
		h.respondCommandError(w, r, "UpdateData", taskID, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleAssignTask replaces the current assignment.
// @Summary Assign a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.AssignTaskRequest true "Assignment request"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /tasks/{id}/assignment [post]
func (h *Handler) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.AssignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.taskService.Assign(r.Context(), command.NewAssignTask(taskID, req.AssignedToID, req.Type, userID))
	if err != nil {
		h.respondCommandError(w, r, "AssignTask", taskID, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleUnassignTask removes the current assignee.
// @Summary Unassign a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /tasks/{id}/assignment [delete]
func (h *Handler) handleUnassignTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.Unassign(r.Context(), command.NewUnassignTask(taskID, userID))
	if err != nil {
		h.respondCommandError(w, r, "UnassignTask", taskID, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleRelateTask links the task to an external entity.
// @Summary Relate a task to an entity
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.RelateTaskRequest true "Relation request"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /tasks/{id}/relations [post]
func (h *Handler) handleRelateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.RelateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.taskService.Relate(r.Context(), command.NewRelateTask(taskID, req.EntityID, req.EntityType, userID))
	if err != nil {
		h.respondCommandError(w, r, "RelateTask", taskID, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleStoreComment attaches a comment.
// @Summary Comment on a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.StoreCommentRequest true "Comment request"
// @Success 200 {object} dto.TaskResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks/{id}/comments [post]
func (h *Handler) handleStoreComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.StoreCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	created := time.Now().UTC()
	if req.CreatedDate != nil {
		created = *req.CreatedDate
	}

	task, err := h.taskService.StoreComment(r.Context(), command.NewStoreComment(taskID, req.Text, created, userID))
	if err != nil {
		h.respondCommandError(w, r, "StoreComment", taskID, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleCreateReport collects tasks changed in a datetime range.
// @Summary Create a task report
// @Description Accepts an open range, a past from date alone, or from strictly before to.
// @Tags reports
// @Accept json
// @Produce json
// @Param request body dto.CreateReportRequest true "Report request"
// @Success 200 {object} dto.ReportResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /reports [post]
func (h *Handler) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(w, r)
	if !ok {
		return
	}

	var req dto.CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	report, err := h.taskService.CreateReport(r.Context(), command.NewCreateReport(req.FromDatetime, req.ToDatetime, userID))
	if err != nil {
		h.respondCommandError(w, r, "CreateReport", uuid.Nil, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToReportResponse(report))
}
