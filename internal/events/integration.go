// Package events translates domain events into externally published,
// versioned integration events and delivers them to the point notification
// sink and the streaming sink.
//
// Two wire shapes coexist for backward compatibility: the legacy shape
// types relation entity ids as UUIDs, the v2 shape keeps them as opaque
// strings. When every relation entity id on the aggregate parses as a
// UUID, both shapes are emitted; otherwise only v2 is, because the legacy
// shape cannot represent a non-UUID id.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/taskrelay/internal/domain"
)

// IntegrationEvent is an outbound, versioned DTO derived from a domain
// event. EventName is the wire-level type tag.
type IntegrationEvent interface {
	EventName() string
}

// Metadata carries the ambient correlation identifiers stamped on every
// outbound event.
type Metadata struct {
	CorrelationID string `json:"correlationId,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	CommandID     string `json:"commandId,omitempty"`
}

// RelationV1 is the legacy relation shape; entity ids must be UUIDs.
type RelationV1 struct {
	ID         uuid.UUID `json:"id"`
	EntityID   uuid.UUID `json:"entityId"`
	EntityType string    `json:"entityType"`
	IsMain     bool      `json:"isMain"`
}

// RelationV2 is the current relation shape with opaque string entity ids.
type RelationV2 struct {
	ID         uuid.UUID `json:"id"`
	EntityID   string    `json:"entityId"`
	EntityType string    `json:"entityType"`
	IsMain     bool      `json:"isMain"`
}

// TaskPayloadV1 is the legacy task snapshot embedded in v1 events.
type TaskPayloadV1 struct {
	ID          uuid.UUID    `json:"id"`
	TaskType    string       `json:"taskType"`
	Subject     string       `json:"subject"`
	SourceID    string       `json:"sourceId"`
	SourceName  string       `json:"sourceName"`
	Status      string       `json:"status"`
	Data        string       `json:"data"`
	Change      string       `json:"change"`
	IsFinal     bool         `json:"isFinal"`
	AssignedTo  *uuid.UUID   `json:"assignedTo,omitempty"`
	Relations   []RelationV1 `json:"relations"`
	ChangedBy   uuid.UUID    `json:"changedBy"`
	ChangedDate time.Time    `json:"changedDate"`
}

// TaskPayloadV2 is the current task snapshot embedded in v2 events.
type TaskPayloadV2 struct {
	ID             uuid.UUID    `json:"id"`
	TaskType       string       `json:"taskType"`
	Subject        string       `json:"subject"`
	SourceID       string       `json:"sourceId"`
	SourceName     string       `json:"sourceName"`
	Status         string       `json:"status"`
	Data           string       `json:"data"`
	Change         string       `json:"change"`
	IsFinal        bool         `json:"isFinal"`
	AssignedTo     *uuid.UUID   `json:"assignedTo,omitempty"`
	AssignmentType string       `json:"assignmentType,omitempty"`
	Relations      []RelationV2 `json:"relations"`
	ChangedBy      uuid.UUID    `json:"changedBy"`
	ChangedDate    time.Time    `json:"changedDate"`
}

// TaskEventV1 is the legacy succeeded-event envelope.
type TaskEventV1 struct {
	Name     string        `json:"name"`
	Task     TaskPayloadV1 `json:"task"`
	Metadata Metadata      `json:"metadata"`
}

func (e TaskEventV1) EventName() string { return e.Name }

// TaskEventV2 is the current succeeded-event envelope.
type TaskEventV2 struct {
	Name     string        `json:"name"`
	Task     TaskPayloadV2 `json:"task"`
	Metadata Metadata      `json:"metadata"`
}

func (e TaskEventV2) EventName() string { return e.Name }

// CommentEvent announces a stored comment.
type CommentEvent struct {
	Name      string    `json:"name"`
	TaskID    uuid.UUID `json:"taskId"`
	CommentID uuid.UUID `json:"commentId"`
	Text      string    `json:"text"`
	CreatedBy uuid.UUID `json:"createdBy"`
	Metadata  Metadata  `json:"metadata"`
}

func (e CommentEvent) EventName() string { return e.Name }

// FailedEvent carries the error code/message/target triple for a failed
// operation.
type FailedEvent struct {
	Name     string   `json:"name"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Target   string   `json:"target"`
	Metadata Metadata `json:"metadata"`
}

func (e FailedEvent) EventName() string { return e.Name }

// allRelationsUUID reports whether every relation entity id on the task
// parses as a UUID, which is the predicate selecting legacy+v2 dual
// publishing over v2-only.
func allRelationsUUID(task *domain.Task) bool {
	for _, r := range task.Relations {
		if _, ok := r.EntityUUID(); !ok {
			return false
		}
	}
	return true
}

func payloadV1(task *domain.Task) TaskPayloadV1 {
	relations := make([]RelationV1, 0, len(task.Relations))
	for _, r := range task.Relations {
		entityID, _ := r.EntityUUID()
		relations = append(relations, RelationV1{
			ID:         r.ID,
			EntityID:   entityID,
			EntityType: r.EntityType,
			IsMain:     r.IsMain,
		})
	}
	return TaskPayloadV1{
		ID:          task.ID,
		TaskType:    task.TaskType,
		Subject:     task.Subject,
		SourceID:    task.Source.ID,
		SourceName:  task.Source.Name,
		Status:      task.Status,
		Data:        task.Data,
		Change:      string(task.Change),
		IsFinal:     task.IsFinal,
		AssignedTo:  task.Assignment.AssignedToID,
		Relations:   relations,
		ChangedBy:   task.ChangedBy,
		ChangedDate: task.ChangedDate,
	}
}

func payloadV2(task *domain.Task) TaskPayloadV2 {
	relations := make([]RelationV2, 0, len(task.Relations))
	for _, r := range task.Relations {
		relations = append(relations, RelationV2{
			ID:         r.ID,
			EntityID:   r.EntityID,
			EntityType: r.EntityType,
			IsMain:     r.IsMain,
		})
	}
	return TaskPayloadV2{
		ID:             task.ID,
		TaskType:       task.TaskType,
		Subject:        task.Subject,
		SourceID:       task.Source.ID,
		SourceName:     task.Source.Name,
		Status:         task.Status,
		Data:           task.Data,
		Change:         string(task.Change),
		IsFinal:        task.IsFinal,
		AssignedTo:     task.Assignment.AssignedToID,
		AssignmentType: task.Assignment.Type,
		Relations:      relations,
		ChangedBy:      task.ChangedBy,
		ChangedDate:    task.ChangedDate,
	}
}

// succeededEvents builds the versioned fan-out for a succeeded operation:
// legacy+v2 when all relation entity ids are UUIDs, v2 only otherwise.
func succeededEvents(name string, task *domain.Task, meta Metadata) []IntegrationEvent {
	v2 := TaskEventV2{Name: name + "V2", Task: payloadV2(task), Metadata: meta}
	if !allRelationsUUID(task) {
		return []IntegrationEvent{v2}
	}
	v1 := TaskEventV1{Name: name, Task: payloadV1(task), Metadata: meta}
	return []IntegrationEvent{v1, v2}
}

// v2OnlyEvent builds the single v2-shaped event for operations that never
// had a legacy consumer.
func v2OnlyEvent(name string, task *domain.Task, meta Metadata) []IntegrationEvent {
	return []IntegrationEvent{TaskEventV2{Name: name + "V2", Task: payloadV2(task), Metadata: meta}}
}
