// Package command defines the write-side command records and their
// validators. Each command is an immutable record carrying a generated
// command id and the acting identity; validation runs before any
// repository access.
package command

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/domain"
)

// AssignmentSpec is the assignment payload carried by commands.
type AssignmentSpec struct {
	AssignedToID uuid.UUID
	Type         string
}

// RelationSpec is the relation payload carried by commands.
type RelationSpec struct {
	EntityID   string
	EntityType string
}

// CreateTask carries the full creation payload. TaskID may be zero, in
// which case the handler generates one.
type CreateTask struct {
	CommandID        uuid.UUID
	TaskID           uuid.UUID
	TaskType         string
	Status           string
	Data             string
	CallbackURL      string
	FourEyeSubjectID uuid.UUID
	Subject          string
	SourceID         string
	SourceName       string
	Assignment       *AssignmentSpec
	Relations        []RelationSpec
	InitialComment   string
	InitiatedBy      uuid.UUID
}

// NewCreateTask builds a CreateTask with a generated command id.
func NewCreateTask(sourceID, sourceName, taskType, status, data, callbackURL, subject string,
	taskID, fourEyeSubjectID, initiatedBy uuid.UUID,
	assignment *AssignmentSpec, relations []RelationSpec, initialComment string,
) *CreateTask {
	return &CreateTask{
		CommandID:        uuid.New(),
		TaskID:           taskID,
		TaskType:         taskType,
		Status:           status,
		Data:             data,
		CallbackURL:      callbackURL,
		FourEyeSubjectID: fourEyeSubjectID,
		Subject:          subject,
		SourceID:         sourceID,
		SourceName:       sourceName,
		Assignment:       assignment,
		Relations:        relations,
		InitialComment:   initialComment,
		InitiatedBy:      initiatedBy,
	}
}

// AssignTask replaces a task's assignment.
type AssignTask struct {
	CommandID      uuid.UUID
	TaskID         uuid.UUID
	AssignedToID   uuid.UUID
	AssignmentType string
	InitiatedBy    uuid.UUID
}

// NewAssignTask builds an AssignTask with a generated command id.
func NewAssignTask(taskID, assignedToID uuid.UUID, assignmentType string, initiatedBy uuid.UUID) *AssignTask {
	return &AssignTask{
		CommandID:      uuid.New(),
		TaskID:         taskID,
		AssignedToID:   assignedToID,
		AssignmentType: assignmentType,
		InitiatedBy:    initiatedBy,
	}
}

// UnassignTask removes a task's current assignee.
type UnassignTask struct {
	CommandID   uuid.UUID
	TaskID      uuid.UUID
	InitiatedBy uuid.UUID
}

// NewUnassignTask builds an UnassignTask with a generated command id.
func NewUnassignTask(taskID, initiatedBy uuid.UUID) *UnassignTask {
	return &UnassignTask{CommandID: uuid.New(), TaskID: taskID, InitiatedBy: initiatedBy}
}

// UpdateTaskData replaces the opaque data payload.
type UpdateTaskData struct {
	CommandID   uuid.UUID
	TaskID      uuid.UUID
	Data        string
	InitiatedBy uuid.UUID
}

// NewUpdateTaskData builds an UpdateTaskData with a generated command id.
func NewUpdateTaskData(taskID uuid.UUID, data string, initiatedBy uuid.UUID) *UpdateTaskData {
	return &UpdateTaskData{CommandID: uuid.New(), TaskID: taskID, Data: data, InitiatedBy: initiatedBy}
}

// UpdateTaskStatus sets a new status on a task.
type UpdateTaskStatus struct {
	CommandID   uuid.UUID
	TaskID      uuid.UUID
	Status      string
	InitiatedBy uuid.UUID
}

// NewUpdateTaskStatus builds an UpdateTaskStatus with a generated command id.
func NewUpdateTaskStatus(taskID uuid.UUID, status string, initiatedBy uuid.UUID) *UpdateTaskStatus {
	return &UpdateTaskStatus{CommandID: uuid.New(), TaskID: taskID, Status: status, InitiatedBy: initiatedBy}
}

// FinalizeTask closes a task with a final status. FinalState defaults to
// true in the constructor.
type FinalizeTask struct {
	CommandID   uuid.UUID
	TaskID      uuid.UUID
	Status      string
	FinalState  bool
	InitiatedBy uuid.UUID
}

// NewFinalizeTask builds a FinalizeTask with a generated command id and
// FinalState set to true.
func NewFinalizeTask(taskID uuid.UUID, status string, initiatedBy uuid.UUID) *FinalizeTask {
	return &FinalizeTask{
		CommandID:   uuid.New(),
		TaskID:      taskID,
		Status:      status,
		FinalState:  true,
		InitiatedBy: initiatedBy,
	}
}

// RelateTask links a task to an external entity.
type RelateTask struct {
	CommandID   uuid.UUID
	TaskID      uuid.UUID
	EntityID    string
	EntityType  string
	InitiatedBy uuid.UUID
}

// NewRelateTask builds a RelateTask with a generated command id.
func NewRelateTask(taskID uuid.UUID, entityID, entityType string, initiatedBy uuid.UUID) *RelateTask {
	return &RelateTask{
		CommandID:   uuid.New(),
		TaskID:      taskID,
		EntityID:    entityID,
		EntityType:  entityType,
		InitiatedBy: initiatedBy,
	}
}

// StoreComment attaches a comment to a task.
type StoreComment struct {
	CommandID   uuid.UUID
	TaskID      uuid.UUID
	Text        string
	CreatedDate time.Time
	InitiatedBy uuid.UUID
}

// NewStoreComment builds a StoreComment with a generated command id.
func NewStoreComment(taskID uuid.UUID, text string, createdDate time.Time, initiatedBy uuid.UUID) *StoreComment {
	return &StoreComment{
		CommandID:   uuid.New(),
		TaskID:      taskID,
		Text:        text,
		CreatedDate: createdDate,
		InitiatedBy: initiatedBy,
	}
}

// UpdateTask is the v2 combined data+subject update.
type UpdateTask struct {
	CommandID   uuid.UUID
	TaskID      uuid.UUID
	Data        string
	Subject     string
	InitiatedBy uuid.UUID
}

// NewUpdateTask builds an UpdateTask with a generated command id.
func NewUpdateTask(taskID uuid.UUID, data, subject string, initiatedBy uuid.UUID) *UpdateTask {
	return &UpdateTask{
		CommandID:   uuid.New(),
		TaskID:      taskID,
		Data:        data,
		Subject:     subject,
		InitiatedBy: initiatedBy,
	}
}

// CreateReport requests a task report over an optional datetime range.
type CreateReport struct {
	CommandID    uuid.UUID
	FromDatetime *time.Time
	ToDatetime   *time.Time
	InitiatedBy  uuid.UUID
}

// NewCreateReport builds a CreateReport with a generated command id.
func NewCreateReport(from, to *time.Time, initiatedBy uuid.UUID) *CreateReport {
	return &CreateReport{CommandID: uuid.New(), FromDatetime: from, ToDatetime: to, InitiatedBy: initiatedBy}
}

// Assignment converts the payload into the domain value.
func (a *AssignmentSpec) Assignment() domain.Assignment {
	if a == nil {
		return domain.Assignment{}
	}
	id := a.AssignedToID
	return domain.Assignment{AssignedToID: &id, Type: a.Type}
}

// DomainRelations converts relation specs into domain relations.
func DomainRelations(specs []RelationSpec) []domain.Relation {
	relations := make([]domain.Relation, 0, len(specs))
	for _, s := range specs {
		relations = append(relations, domain.Relation{EntityID: s.EntityID, EntityType: s.EntityType})
	}
	return relations
}
