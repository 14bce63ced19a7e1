package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/service"
)

// AssignmentResponse is the assignment view on a task.
type AssignmentResponse struct {
	AssignedToID *uuid.UUID `json:"assigned_to_id"`
	Type         string     `json:"type,omitempty"`
}

// RelationResponse is the relation view on a task.
type RelationResponse struct {
	ID         uuid.UUID `json:"id"`
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	IsMain     bool      `json:"is_main"`
}

// CommentResponse is the comment view on a task.
type CommentResponse struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedDate time.Time `json:"created_date"`
}

// TaskResponse represents the full task object.
type TaskResponse struct {
	ID               uuid.UUID          `json:"id"`
	TaskType         string             `json:"task_type"`
	Callback         string             `json:"callback,omitempty"`
	FourEyeSubjectID uuid.UUID          `json:"four_eye_subject_id"`
	Subject          string             `json:"subject"`
	SourceID         string             `json:"source_id"`
	SourceName       string             `json:"source_name"`
	Status           string             `json:"status"`
	Data             string             `json:"data"`
	Change           string             `json:"change"`
	IsFinal          bool               `json:"is_final"`
	Assignment       AssignmentResponse `json:"assignment"`
	Relations        []RelationResponse `json:"relations"`
	Comments         []CommentResponse  `json:"comments"`
	CreatedBy        uuid.UUID          `json:"created_by"`
	CreatedDate      time.Time          `json:"created_date"`
	ChangedBy        uuid.UUID          `json:"changed_by"`
	ChangedDate      time.Time          `json:"changed_date"`
}

// ToTaskResponse maps the aggregate to its API view.
func ToTaskResponse(task *domain.Task) TaskResponse {
	relations := make([]RelationResponse, 0, len(task.Relations))
	for _, r := range task.Relations {
		relations = append(relations, RelationResponse{
			ID:         r.ID,
			EntityID:   r.EntityID,
			EntityType: r.EntityType,
			IsMain:     r.IsMain,
		})
	}

	comments := make([]CommentResponse, 0, len(task.Comments))
	for _, c := range task.Comments {
		comments = append(comments, CommentResponse{
			ID:          c.ID,
			Text:        c.Text,
			CreatedBy:   c.CreatedBy,
			CreatedDate: c.CreatedDate,
		})
	}

	callback := ""
	if task.Callback != nil {
		callback = task.Callback.URL
	}

	return TaskResponse{
		ID:               task.ID,
		TaskType:         task.TaskType,
		Callback:         callback,
		FourEyeSubjectID: task.FourEyeSubjectID,
		Subject:          task.Subject,
		SourceID:         task.Source.ID,
		SourceName:       task.Source.Name,
		Status:           task.Status,
		Data:             task.Data,
		Change:           string(task.Change),
		IsFinal:          task.IsFinal,
		Assignment: AssignmentResponse{
			AssignedToID: task.Assignment.AssignedToID,
			Type:         task.Assignment.Type,
		},
		Relations:   relations,
		Comments:    comments,
		CreatedBy:   task.CreatedBy,
		CreatedDate: task.CreatedDate,
		ChangedBy:   task.ChangedBy,
		ChangedDate: task.ChangedDate,
	}
}

// ReportResponse represents the response for POST /reports.
type ReportResponse struct {
	FromDatetime *time.Time     `json:"from_datetime,omitempty"`
	ToDatetime   *time.Time     `json:"to_datetime,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Total        int            `json:"total"`
	Tasks        []TaskResponse `json:"tasks"`
}

// ToReportResponse maps a report to its API view.
func ToReportResponse(report *service.Report) ReportResponse {
	tasks := make([]TaskResponse, 0, len(report.Tasks))
	for _, t := range report.Tasks {
		tasks = append(tasks, ToTaskResponse(t))
	}
	return ReportResponse{
		FromDatetime: report.From,
		ToDatetime:   report.To,
		GeneratedAt:  report.GeneratedAt,
		Total:        len(tasks),
		Tasks:        tasks,
	}
}
