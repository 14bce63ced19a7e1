package dto

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentRequest is the assignment payload nested in task requests.
type AssignmentRequest struct {
	AssignedToID uuid.UUID `json:"assigned_to_id"`
	Type         string    `json:"type"`
}

// RelationRequest is the relation payload nested in task requests.
type RelationRequest struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// CreateTaskRequest represents the request body for POST /tasks.
type CreateTaskRequest struct {
	TaskID           uuid.UUID          `json:"task_id,omitempty"`
	TaskType         string             `json:"task_type"`
	Status           string             `json:"status"`
	Data             string             `json:"data,omitempty"`
	Callback         string             `json:"callback,omitempty"`
	FourEyeSubjectID uuid.UUID          `json:"four_eye_subject_id"`
	Subject          string             `json:"subject,omitempty"`
	SourceID         string             `json:"source_id"`
	SourceName       string             `json:"source_name"`
	Assignment       *AssignmentRequest `json:"assignment,omitempty"`
	Relations        []RelationRequest  `json:"relations,omitempty"`
	Comment          string             `json:"comment,omitempty"`
}

// UpdateStatusRequest represents the request body for PATCH /tasks/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// FinalizeTaskRequest represents the request body for POST /tasks/:id/finalize.
// FinalState defaults to true; an explicit false applies the status change
// with the four-eye check but leaves the task open.
type FinalizeTaskRequest struct {
	Status     string `json:"status"`
	FinalState *bool  `json:"final_state,omitempty"`
}

// UpdateDataRequest represents the request body for PATCH /tasks/:id/data.
type UpdateDataRequest struct {
	Data string `json:"data"`
}

// UpdateTaskRequest represents the request body for PUT /tasks/:id.
type UpdateTaskRequest struct {
	Data    string `json:"data"`
	Subject string `json:"subject"`
}

// AssignTaskRequest represents the request body for POST /tasks/:id/assignment.
type AssignTaskRequest struct {
	AssignedToID uuid.UUID `json:"assigned_to_id"`
	Type         string    `json:"type"`
}

// RelateTaskRequest represents the request body for POST /tasks/:id/relations.
type RelateTaskRequest struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// StoreCommentRequest represents the request body for POST /tasks/:id/comments.
type StoreCommentRequest struct {
	Text        string     `json:"text"`
	CreatedDate *time.Time `json:"created_date,omitempty"`
}

// CreateReportRequest represents the request body for POST /reports.
type CreateReportRequest struct {
	FromDatetime *time.Time `json:"from_datetime,omitempty"`
	ToDatetime   *time.Time `json:"to_datetime,omitempty"`
}
